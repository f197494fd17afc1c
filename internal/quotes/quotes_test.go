package quotes

import (
	"os"
	"path/filepath"
	"testing"

	"frasebot/pkg/logx"
)

func writeQuotes(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frases.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadAndPick(t *testing.T) {
	t.Parallel()

	path := writeQuotes(t, `[
		{"quote": "A vida é bela.", "author": "Alguém"},
		{"quote": "Sigo em frente.", "author": "Outro"}
	]`)
	s := New(path, logx.Nop())
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		q, ok := s.Pick()
		if !ok {
			t.Fatal("pick on loaded store returned empty")
		}
		if q.Text != "A vida é bela." && q.Text != "Sigo em frente." {
			t.Fatalf("pick returned unknown quote %+v", q)
		}
		seen[q.Text] = true
	}
	if len(seen) != 2 {
		t.Fatalf("200 picks over 2 quotes saw only %d distinct", len(seen))
	}
}

func TestPickEmptyStore(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "missing.json"), logx.Nop())
	if err := s.Load(); err == nil {
		t.Fatal("load of missing file should report an error")
	}
	if _, ok := s.Pick(); ok {
		t.Fatal("pick on empty store should report false")
	}
	if got := s.Phrase(); got != EmptyReply {
		t.Fatalf("phrase on empty store = %q", got)
	}
}

func TestLoadEmptyList(t *testing.T) {
	t.Parallel()

	s := New(writeQuotes(t, `[]`), logx.Nop())
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Phrase(); got != EmptyReply {
		t.Fatalf("phrase on empty list = %q", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()

	s := New(writeQuotes(t, `{"quote": "not a list"}`), logx.Nop())
	if err := s.Load(); err == nil {
		t.Fatal("load of malformed file should report an error")
	}
	if got := s.Phrase(); got != EmptyReply {
		t.Fatalf("phrase after failed load = %q", got)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render(Quote{Text: "A vida é bela.", Author: "Alguém"})
	want := "🎉 \"A vida é bela.\" - Alguém ✨"
	if got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
}
