package search

import (
	"context"
	"encoding/json"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexStoryNotes pushes a story's current research notes into the index
// after a save (fire-and-forget to Meilisearch).
func (s *Service) IndexStoryNotes(ownerID, storyID, storyTitle string, document json.RawMessage) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	notes := extractNotes(ownerID, storyID, storyTitle, document)
	if len(notes) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexNotes(notes); err != nil {
			log.Printf("search: index notes for story %s: %v", storyID, err)
		}
	}()
}

// DeleteNote removes a note from the search index (fire-and-forget).
func (s *Service) DeleteNote(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			log.Printf("search: delete note %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes every research note from PostgreSQL into
// Meilisearch, called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	notes, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(notes) == 0 {
		return
	}
	if err := s.meili.IndexNotes(notes); err != nil {
		log.Printf("search: reindex notes: %v", err)
	}
}

// extractNotes pulls the researchNotes array out of a story document.
func extractNotes(ownerID, storyID, storyTitle string, document json.RawMessage) []NoteRecord {
	var doc struct {
		ResearchNotes []struct {
			ID      string   `json:"id"`
			Topic   string   `json:"topic"`
			Content string   `json:"content"`
			Tags    []string `json:"tags"`
		} `json:"researchNotes"`
	}
	if err := json.Unmarshal(document, &doc); err != nil {
		log.Printf("search: decode story %s document: %v", storyID, err)
		return nil
	}
	notes := make([]NoteRecord, 0, len(doc.ResearchNotes))
	for _, n := range doc.ResearchNotes {
		if n.ID == "" {
			continue
		}
		notes = append(notes, NoteRecord{
			ID:         n.ID,
			OwnerID:    ownerID,
			StoryID:    storyID,
			StoryTitle: storyTitle,
			Topic:      n.Topic,
			Content:    n.Content,
			Tags:       n.Tags,
		})
	}
	return notes
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
