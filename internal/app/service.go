package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"storyforge/api/internal/auth"
	"storyforge/api/internal/authpw"
	"storyforge/api/internal/config"
	"storyforge/api/internal/drafts"
	"storyforge/api/internal/export"
	"storyforge/api/internal/search"
	"storyforge/api/internal/session"
	"storyforge/api/internal/store"
	"storyforge/api/internal/story"
	"storyforge/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	ListStories(ctx context.Context, ownerID string) ([]store.StorySummary, error)
	GetStory(ctx context.Context, ownerID, storyID string) (store.Story, error)
	InsertStory(ctx context.Context, item store.Story) (store.Story, error)
	MergeStoryDocument(ctx context.Context, ownerID, storyID string, patch json.RawMessage) (store.Story, error)
	DeleteStory(ctx context.Context, ownerID, storyID string) error
	Ping(ctx context.Context) error
}

// sessionStore is the Redis fast path for refresh tokens. Postgres keeps
// a durable copy so sessions survive a cache flush.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type draftService interface {
	EnsureStoryRepo(storyID string, initial json.RawMessage, author string) error
	CommitSnapshot(storyID string, document json.RawMessage, author, message string) (drafts.Snapshot, error)
	ListSnapshots(storyID string, limit int) ([]drafts.Snapshot, error)
	GetSnapshot(storyID, hash string) (json.RawMessage, drafts.Snapshot, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexStoryNotes(ownerID, storyID, storyTitle string, document json.RawMessage)
	DeleteNote(id string)
}

type exporter interface {
	Export(ctx context.Context, title, author string, document json.RawMessage, updatedAt time.Time, format export.Format) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	drafts   draftService
	search   searchService
	exporter exporter
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, draftSvc *drafts.Service, searchSvc *search.Service, exportSvc *export.Service) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    dataStore,
		authpw:   authpw.NewService(dataStore),
		exporter: exportSvc,
	}
	if sessions != nil {
		svc.sessions = sessions
	}
	if draftSvc != nil {
		svc.drafts = draftSvc
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.lookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	s.revokeRefreshSession(ctx, tokenHash)
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		s.revokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	tokenHash := auth.HashToken(refresh)
	if err := s.store.SaveRefreshSession(ctx, tokenHash, user.ID, refreshExpires); err != nil {
		return Session{}, err
	}
	if s.sessions != nil {
		if err := s.sessions.SaveRefreshSession(ctx, tokenHash, user, refreshExpires); err != nil {
			log.Printf("redis session save failed: %v", err)
		}
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) lookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if s.sessions != nil {
		user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
		if err == nil {
			return user, nil
		}
	}
	return s.store.LookupRefreshSession(ctx, tokenHash)
}

func (s *Service) revokeRefreshSession(ctx context.Context, tokenHash string) {
	if err := s.store.RevokeRefreshSession(ctx, tokenHash); err != nil {
		log.Printf("revoke refresh session: %v", err)
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
			log.Printf("redis session revoke: %v", err)
		}
	}
}

// SessionFromToken validates a bearer token. Identity rides in the
// claims so routine requests skip the users table.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// ── Stories ──

func (s *Service) ListStories(ctx context.Context, ownerID string) ([]map[string]any, error) {
	stories, err := s.store.ListStories(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(stories))
	for _, item := range stories {
		items = append(items, map[string]any{
			"id":        item.ID,
			"title":     item.Title,
			"genre":     item.Genre,
			"progress":  item.Progress,
			"updatedAt": item.UpdatedAt,
		})
	}
	return items, nil
}

func (s *Service) CreateStory(ctx context.Context, session Session, title string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	state := story.NewState()
	state.Title = title
	document, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode story document: %w", err)
	}

	item, err := s.store.InsertStory(ctx, store.Story{
		ID:       uuid.NewString(),
		OwnerID:  session.UserID,
		Title:    title,
		Document: document,
	})
	if err != nil {
		return nil, err
	}

	if s.drafts != nil {
		if err := s.drafts.EnsureStoryRepo(item.ID, item.Document, session.UserName); err != nil {
			log.Printf("draft repo init for story=%s: %v", item.ID, err)
		}
	}

	return map[string]any{
		"id":        item.ID,
		"title":     item.Title,
		"createdAt": item.CreatedAt,
		"updatedAt": item.UpdatedAt,
	}, nil
}

// GetStoryDocument returns the stored document with the row ID injected,
// so clients hydrate from one object.
func (s *Service) GetStoryDocument(ctx context.Context, ownerID, storyID string) (map[string]any, error) {
	item, err := s.store.GetStory(ctx, ownerID, storyID)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(item.Document, &doc); err != nil {
		return nil, fmt.Errorf("decode story document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc["id"] = item.ID
	if _, ok := doc["title"]; !ok {
		doc["title"] = item.Title
	}
	return doc, nil
}

// SaveStory merges a partial payload into the document. Each top-level
// section in the patch replaces the stored one; untouched sections
// survive, which is the last-write-wins contract the autosave client
// relies on. Draft snapshots and search indexing follow the save and
// never fail it.
func (s *Service) SaveStory(ctx context.Context, session Session, storyID string, patch json.RawMessage) (map[string]any, error) {
	if len(patch) == 0 || string(patch) == "null" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "save payload is required", nil)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(patch, &probe); err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "save payload must be a JSON object", nil)
	}

	item, err := s.store.MergeStoryDocument(ctx, session.UserID, storyID, patch)
	if err != nil {
		return nil, err
	}

	if s.drafts != nil {
		if _, err := s.drafts.CommitSnapshot(item.ID, item.Document, session.UserName, ""); err != nil {
			log.Printf("draft snapshot for story=%s: %v", item.ID, err)
		}
	}
	if s.search != nil {
		if _, touched := probe["researchNotes"]; touched {
			s.search.IndexStoryNotes(session.UserID, item.ID, item.Title, item.Document)
		}
	}

	return map[string]any{
		"ok":        true,
		"id":        item.ID,
		"updatedAt": item.UpdatedAt,
	}, nil
}

func (s *Service) DeleteStory(ctx context.Context, ownerID, storyID string) error {
	item, err := s.store.GetStory(ctx, ownerID, storyID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStory(ctx, ownerID, storyID); err != nil {
		return err
	}
	if s.search != nil {
		for _, id := range researchNoteIDs(item.Document) {
			s.search.DeleteNote(id)
		}
	}
	return nil
}

func researchNoteIDs(document json.RawMessage) []string {
	var doc struct {
		ResearchNotes []struct {
			ID string `json:"id"`
		} `json:"researchNotes"`
	}
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil
	}
	ids := make([]string, 0, len(doc.ResearchNotes))
	for _, note := range doc.ResearchNotes {
		if note.ID != "" {
			ids = append(ids, note.ID)
		}
	}
	return ids
}

// ── Exports ──

func (s *Service) ExportStory(ctx context.Context, session Session, storyID string, format export.Format) (*export.Result, error) {
	item, err := s.store.GetStory(ctx, session.UserID, storyID)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, item.Title, session.UserName, item.Document, item.UpdatedAt, format)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusNotImplemented, "EXPORT_UNAVAILABLE", err.Error(), nil)
		}
		return nil, err
	}
	return result, nil
}

// ── Drafts ──

func (s *Service) ListDrafts(ctx context.Context, ownerID, storyID string, limit int) (map[string]any, error) {
	if s.drafts == nil {
		return nil, domainError(http.StatusNotImplemented, "DRAFTS_UNAVAILABLE", "Draft history not configured", nil)
	}
	if _, err := s.store.GetStory(ctx, ownerID, storyID); err != nil {
		return nil, err
	}
	snapshots, err := s.drafts.ListSnapshots(storyID, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"drafts": snapshots}, nil
}

func (s *Service) GetDraft(ctx context.Context, ownerID, storyID, hash string) (map[string]any, error) {
	if s.drafts == nil {
		return nil, domainError(http.StatusNotImplemented, "DRAFTS_UNAVAILABLE", "Draft history not configured", nil)
	}
	if _, err := s.store.GetStory(ctx, ownerID, storyID); err != nil {
		return nil, err
	}
	document, snapshot, err := s.drafts.GetSnapshot(storyID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Draft not found", nil)
	}
	return map[string]any{
		"snapshot": snapshot,
		"document": document,
	}, nil
}

// ── Search ──

func (s *Service) SearchNotes(ctx context.Context, ownerID, text, storyID string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return nil, domainError(http.StatusNotImplemented, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	resp := s.search.Search(search.Query{
		OwnerID: ownerID,
		Text:    text,
		StoryID: storyID,
		Limit:   limit,
		Offset:  offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}
