package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPutStorySendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/stories/story-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:       server.URL,
		TokenProvider: func(context.Context) (string, error) { return "tok-123", nil },
	})

	if err := client.PutStory(context.Background(), "story-1", map[string]any{"title": "Dune"}); err != nil {
		t.Fatalf("PutStory failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotBody["title"] != "Dune" {
		t.Fatalf("expected payload title, got %v", gotBody)
	}
}

func TestNonSuccessStatusBecomesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"UPSTREAM","error":"bad gateway"}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	err := client.PutStory(context.Background(), "story-1", map[string]any{})
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if serr.Status != http.StatusBadGateway || serr.Code != "UPSTREAM" {
		t.Fatalf("unexpected error contents: %+v", serr)
	}
}

func TestNetworkFailureIsNotStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := New(Options{BaseURL: server.URL})
	err := client.PutStory(context.Background(), "story-1", map[string]any{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		t.Fatalf("network failure should not be a StatusError: %v", err)
	}
}

func TestGetStoryDecodesDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stories/story-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"title":"Hyperion","progress":{"concept":40}}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	doc, err := client.GetStory(context.Background(), "story-9")
	if err != nil {
		t.Fatalf("GetStory failed: %v", err)
	}
	if doc["title"] != "Hyperion" {
		t.Fatalf("unexpected document: %v", doc)
	}
}

func TestSignInSkipsTokenProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("signin must not carry a bearer token")
		}
		_, _ = w.Write([]byte(`{"token":"t","refreshToken":"r","userId":"u1","displayName":"Avery"}`))
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:       server.URL,
		TokenProvider: func(context.Context) (string, error) { return "should-not-be-used", nil },
	})
	creds, err := client.SignIn(context.Background(), "a@b.c", "hunter22")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if creds.Token != "t" || creds.DisplayName != "Avery" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}
