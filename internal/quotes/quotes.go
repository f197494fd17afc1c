// Package quotes holds the immutable quote collection loaded at startup.
package quotes

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"frasebot/pkg/logx"
)

// Quote is a single quotation with its author.
type Quote struct {
	Text   string `json:"quote"`
	Author string `json:"author"`
}

// EmptyReply is sent when no quotes are available (load failed or empty file).
const EmptyReply = "Desculpe, não há frases disponíveis. 😔"

// Store loads a JSON list of quotes once and serves uniformly random picks.
// The collection is never mutated after Load.
type Store struct {
	path string
	log  logx.Logger

	mu     sync.Mutex
	list   []Quote
	rng    *rand.Rand
	loaded bool
}

func New(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		path: path,
		log:  log,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load reads the backing file. Failure is non-fatal: the store stays empty
// and the bot degrades to EmptyReply.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("quote file load failed", logx.String("path", s.path), logx.Err(err))
		return fmt.Errorf("load quotes %s: %w", s.path, err)
	}
	var list []Quote
	if err := json.Unmarshal(b, &list); err != nil {
		s.log.Warn("quote file parse failed", logx.String("path", s.path), logx.Err(err))
		return fmt.Errorf("parse quotes %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.list = list
	s.loaded = true
	s.mu.Unlock()

	s.log.Info("quotes loaded", logx.Int("count", len(list)))
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// Pick returns a uniformly random quote, or false when the store is empty.
func (s *Store) Pick() (Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return Quote{}, false
	}
	return s.list[s.rng.Intn(len(s.list))], true
}

// Render formats a quote into the user-facing decorated string.
func Render(q Quote) string {
	return fmt.Sprintf("🎉 \"%s\" - %s ✨", q.Text, q.Author)
}

// Phrase is Pick+Render with the degraded empty-store reply.
func (s *Store) Phrase() string {
	q, ok := s.Pick()
	if !ok {
		return EmptyReply
	}
	return Render(q)
}
