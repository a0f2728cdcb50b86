package feedback_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/mockmate/internal/feedback"
)

func TestFileStore_SaveAndList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "feedback.jsonl")
	s := feedback.NewFileStore(path)

	first := feedback.Feedback{SessionID: "a", Role: "SRE", Rating: 3, Summary: "ok", GeneratedBy: "placeholder", CreatedAt: time.Unix(100, 0).UTC()}
	second := feedback.Feedback{SessionID: "b", Role: "PM", Rating: 5, Summary: "great", GeneratedBy: "llm", CreatedAt: time.Unix(200, 0).UTC()}
	for _, fb := range []feedback.Feedback{first, second} {
		if err := s.Save(fb); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].SessionID != "a" || got[1].SessionID != "b" {
		t.Errorf("order = %s,%s", got[0].SessionID, got[1].SessionID)
	}
	if !got[1].CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("created_at = %v", got[1].CreatedAt)
	}
}

func TestFileStore_ListMissingFile(t *testing.T) {
	t.Parallel()

	s := feedback.NewFileStore(filepath.Join(t.TempDir(), "none.jsonl"))
	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestFileStore_ListSkipsCorruptLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	content := `{"role":"SRE","rating":4,"summary":"x"}` + "\n" + "not json\n\n" + `{"role":"PM","rating":2,"summary":"y"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := feedback.NewFileStore(path).List()
	if err == nil {
		t.Error("expected error reporting the corrupt line")
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}

func TestFileStore_ConcurrentSave(t *testing.T) {
	t.Parallel()

	s := feedback.NewFileStore(filepath.Join(t.TempDir(), "feedback.jsonl"))
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Save(feedback.Feedback{Rating: 1 + i%5, Summary: "s"}); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("got %d records, want 20", len(got))
	}
}

func TestFileStore_Writable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if err := feedback.NewFileStore(filepath.Join(dir, "feedback.jsonl")).Writable(); err != nil {
		t.Errorf("Writable in temp dir: %v", err)
	}
	if err := feedback.NewFileStore(filepath.Join(dir, "later", "feedback.jsonl")).Writable(); err != nil {
		t.Errorf("Writable with missing parent: %v", err)
	}
	if err := feedback.NewFileStore(dir).Writable(); err == nil {
		t.Error("Writable on a directory should fail")
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := feedback.NewFileStore(filepath.Join(file, "feedback.jsonl")).Writable(); err == nil {
		t.Error("Writable under a regular file should fail")
	}
}
