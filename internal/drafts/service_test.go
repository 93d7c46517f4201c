package drafts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestStoryRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := json.RawMessage(`{"title":"Dune","premise":"Spice is everything.","progress":{"concept":40}}`)

	if err := svc.EnsureStoryRepo("story-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureStoryRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "story-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	updated := json.RawMessage(`{"title":"Dune","premise":"The sleeper must awaken.","progress":{"concept":60}}`)
	snap, err := svc.CommitSnapshot("story-1", updated, "Avery", "Revise premise")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if snap.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.ListSnapshots("story-1", 10)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected baseline plus one snapshot, got %d", len(history))
	}

	document, got, err := svc.GetSnapshot("story-1", snap.Hash)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if got.Author != "Avery" {
		t.Fatalf("unexpected snapshot author: %+v", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal(document, &decoded); err != nil {
		t.Fatalf("decode snapshot document: %v", err)
	}
	if decoded["premise"] != "The sleeper must awaken." {
		t.Fatalf("unexpected snapshot content: %v", decoded)
	}
}

func TestEnsureStoryRepoIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	initial := json.RawMessage(`{"title":"Dune"}`)

	if err := svc.EnsureStoryRepo("story-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureStoryRepo() error = %v", err)
	}
	if err := svc.EnsureStoryRepo("story-1", json.RawMessage(`{"title":"Other"}`), "Avery"); err != nil {
		t.Fatalf("second EnsureStoryRepo() error = %v", err)
	}

	history, err := svc.ListSnapshots("story-1", 10)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single baseline commit, got %d", len(history))
	}
}

func TestUnchangedDocumentDoesNotCommit(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	doc := json.RawMessage(`{"title":"Dune","premise":"spice"}`)

	if err := svc.EnsureStoryRepo("story-1", doc, "Avery"); err != nil {
		t.Fatalf("EnsureStoryRepo() error = %v", err)
	}

	// Same content with different key order still counts as unchanged.
	same := json.RawMessage(`{"premise":"spice","title":"Dune"}`)
	if _, err := svc.CommitSnapshot("story-1", same, "Avery", "No-op save"); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}

	history, err := svc.ListSnapshots("story-1", 10)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected no new commit for identical content, got %d entries", len(history))
	}
}

func TestConcurrentSnapshots(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureStoryRepo("story-1", json.RawMessage(`{"title":"Dune"}`), "Avery"); err != nil {
		t.Fatalf("EnsureStoryRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			doc := json.RawMessage(fmt.Sprintf(`{"title":"Dune","rev":%d}`, idx))
			if _, err := svc.CommitSnapshot("story-1", doc, "Avery", fmt.Sprintf("Save %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitSnapshot() concurrent error = %v", err)
		}
	}

	history, err := svc.ListSnapshots("story-1", 100)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits in history, got %d", writers+1, len(history))
	}
}
