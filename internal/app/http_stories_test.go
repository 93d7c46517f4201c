package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyforge/api/internal/auth"
	"storyforge/api/internal/drafts"
	"storyforge/api/internal/search"
	"storyforge/api/internal/store"
)

func testBearer(t *testing.T) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:   "user-1",
		Name:  "Mira",
		Email: "mira@example.com",
		JTI:   "jti-test",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doAuthed(t *testing.T, server *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testBearer(t))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestListStoriesReturnsSummaries(t *testing.T) {
	fs := &fakeStore{
		listStoriesFn: func(_ context.Context, ownerID string) ([]store.StorySummary, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q", ownerID)
			}
			return []store.StorySummary{
				{ID: "story-1", Title: "Dune Scandal", Genre: []string{"Mystery"}, Progress: map[string]int{"concept": 40}},
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/stories", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Stories []map[string]any `json:"stories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Stories) != 1 {
		t.Fatalf("expected 1 story, got %d", len(payload.Stories))
	}
	if payload.Stories[0]["title"] != "Dune Scandal" {
		t.Errorf("title = %v", payload.Stories[0]["title"])
	}
	progress, _ := payload.Stories[0]["progress"].(map[string]any)
	if progress["concept"] != float64(40) {
		t.Errorf("progress = %v", progress)
	}
}

func TestPutStoryMergesAndAcknowledges(t *testing.T) {
	var gotPatch string
	fs := &fakeStore{
		mergeStoryDocumentFn: func(_ context.Context, ownerID, storyID string, patch json.RawMessage) (store.Story, error) {
			gotPatch = string(patch)
			return store.Story{ID: storyID, OwnerID: ownerID, Title: "Dune Scandal", Document: json.RawMessage(`{}`), UpdatedAt: time.Now()}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doAuthed(t, server, http.MethodPut, "/api/stories/story-1", `{"premise":"water conspiracy","progress":{"concept":40}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotPatch == "" {
		t.Fatal("merge was not called")
	}

	var probe map[string]any
	if err := json.Unmarshal([]byte(gotPatch), &probe); err != nil {
		t.Fatalf("patch reached store mangled: %v", err)
	}
	if probe["premise"] != "water conspiracy" {
		t.Errorf("premise = %v", probe["premise"])
	}
}

func TestPutStoryUnknownIDReturnsNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doAuthed(t, server, http.MethodPut, "/api/stories/nope", `{"premise":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetStoryReturnsDocument(t *testing.T) {
	fs := &fakeStore{
		getStoryFn: func(_ context.Context, ownerID, storyID string) (store.Story, error) {
			return store.Story{ID: storyID, Title: "Dune Scandal", Document: json.RawMessage(`{"premise":"water"}`)}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/stories/story-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if doc["id"] != "story-1" || doc["premise"] != "water" {
		t.Errorf("document = %v", doc)
	}
}

func TestCreateStoryEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doAuthed(t, server, http.MethodPost, "/api/stories", `{"title":"Dune Scandal"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if id, _ := payload["id"].(string); id == "" {
		t.Error("expected generated id")
	}
}

func TestExportEndpointRejectsUnknownFormat(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/stories/story-1/export?format=epub", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExportEndpointStreamsAttachment(t *testing.T) {
	fs := &fakeStore{
		getStoryFn: func(_ context.Context, ownerID, storyID string) (store.Story, error) {
			return store.Story{ID: storyID, Title: "Dune Scandal", Document: json.RawMessage(`{}`)}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/stories/story-1/export?format=json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if disposition := rr.Header().Get("Content-Disposition"); disposition == "" {
		t.Error("expected Content-Disposition header")
	}
}

func TestDraftsEndpointListsSnapshots(t *testing.T) {
	fs := &fakeStore{
		getStoryFn: func(_ context.Context, ownerID, storyID string) (store.Story, error) {
			return store.Story{ID: storyID, Document: json.RawMessage(`{}`)}, nil
		},
	}
	svc := newTestService(fs)
	svc.drafts = &fakeDrafts{
		listFn: func(storyID string, limit int) ([]drafts.Snapshot, error) {
			return []drafts.Snapshot{{Hash: "abc1234", Message: "Save draft", Author: "Mira"}}, nil
		},
	}
	server := NewHTTPServer(svc, "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/stories/story-1/drafts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Drafts []map[string]any `json:"drafts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Drafts) != 1 || payload.Drafts[0]["hash"] != "abc1234" {
		t.Errorf("drafts = %v", payload.Drafts)
	}
}

func TestSearchEndpointPassesOwnerAndQuery(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.search = &fakeSearch{resp: search.Response{
		Results: []search.Result{{NoteID: "n1", StoryID: "story-1", Topic: "Spice"}},
		Total:   1,
		Query:   "spice",
	}}
	server := NewHTTPServer(svc, "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/search?q=spice&limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Total != 1 || len(payload.Results) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestSearchEndpointRejectsBadLimit(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doAuthed(t, server, http.MethodGet, "/api/search?q=spice&limit=lots", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}
