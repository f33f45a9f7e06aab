package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTraceWriteAndRead(t *testing.T) {
	dir := t.TempDir()

	w, err := NewTraceWriter(dir, "run-1")
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []TraceEntry{
		{Step: 0, IterationID: 0, Score: 1.6, BestScore: 1.6, Timestamp: now},
		{Step: 1, IterationID: 1, Score: 1.61, BestScore: 1.61, Modifier: "increment", ScoreChange: 0.01, Timestamp: now},
		{Step: 2, IterationID: 2, Score: 1.6, BestScore: 1.61, Modifier: "decrement", ScoreChange: -0.01, Timestamp: now},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	if w.Path() != filepath.Join(dir, "runs", "run-1", "trace.jsonl") {
		t.Errorf("Unexpected trace path %s", w.Path())
	}

	got, err := ReadTrace(dir, "run-1")
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Step != entries[i].Step || got[i].Modifier != entries[i].Modifier || got[i].ScoreChange != entries[i].ScoreChange {
			t.Errorf("Entry %d mismatch: want %+v, got %+v", i, entries[i], got[i])
		}
		if !got[i].Timestamp.Equal(now) {
			t.Errorf("Entry %d timestamp mismatch", i)
		}
	}
}

func TestTraceWriterTruncates(t *testing.T) {
	dir := t.TempDir()

	for round := 0; round < 2; round++ {
		w, err := NewTraceWriter(dir, "run-1")
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Write(TraceEntry{Step: round}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadTrace(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Step != 1 {
		t.Errorf("Expected only the second run's entry, got %+v", got)
	}
}

func TestTraceConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewTraceWriter(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := w.Write(TraceEntry{Step: i*10 + j}); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Errorf("Expected 100 entries, got %d", len(got))
	}
}

func TestTraceReaderEOFAndNotFound(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewTraceReader(dir, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	w, err := NewTraceWriter(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := NewTraceReader(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF on empty trace, got %v", err)
	}
}

func TestTraceReaderMalformedLine(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, "runs", "run-1")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "{\"step\":0}\nnot json\n"
	if err := os.WriteFile(filepath.Join(runDir, "trace.jsonl"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadTrace(dir, "run-1"); err == nil {
		t.Fatal("Expected error for malformed line")
	}
}

func TestDeleteTrace(t *testing.T) {
	dir := t.TempDir()
	w, err := NewTraceWriter(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	if err := DeleteTrace(dir, "run-1"); err != nil {
		t.Fatalf("DeleteTrace failed: %v", err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("Trace file still exists")
	}
	if err := DeleteTrace(dir, "run-1"); err != nil {
		t.Errorf("Deleting missing trace should succeed, got %v", err)
	}
}

func TestTraceWriterClosed(t *testing.T) {
	w, err := NewTraceWriter(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
	if err := w.Write(TraceEntry{Step: 1}); !errors.Is(err, ErrTraceClosed) {
		t.Errorf("Expected ErrTraceClosed, got %v", err)
	}
	if err := w.Flush(); !errors.Is(err, ErrTraceClosed) {
		t.Errorf("Expected ErrTraceClosed from Flush, got %v", err)
	}
}
