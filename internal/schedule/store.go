package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"frasebot/pkg/logx"
)

// userDoc is the on-disk shape of one user's entry:
//
//	{ "<userID>": { "schedule": [ { "day": 2, "time": "07:30" }, ... ] } }
type userDoc struct {
	Rules []Rule `json:"schedule"`
}

// Store is the single owner of the user→rules mapping. Mutations are
// serialized and followed by a full-document rewrite of the backing file;
// a failed write rolls the mutation back so memory and disk never diverge.
type Store struct {
	path string
	log  logx.Logger

	mu    sync.RWMutex
	users map[int64][]Rule
}

func New(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		path:  path,
		log:   log,
		users: map[int64][]Rule{},
	}
}

// Load parses the backing file. Failure is non-fatal: the store starts empty
// and the next successful mutation recreates the file.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("schedule file load failed", logx.String("path", s.path), logx.Err(err))
		return fmt.Errorf("load schedules %s: %w", s.path, err)
	}
	var raw map[string]userDoc
	if err := json.Unmarshal(b, &raw); err != nil {
		s.log.Warn("schedule file parse failed", logx.String("path", s.path), logx.Err(err))
		return fmt.Errorf("parse schedules %s: %w", s.path, err)
	}

	users := make(map[int64][]Rule, len(raw))
	total := 0
	for k, doc := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.log.Warn("skipping schedule entry with bad user id", logx.String("key", k))
			continue
		}
		users[id] = append([]Rule(nil), doc.Rules...)
		total += len(doc.Rules)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.log.Info("schedules loaded", logx.Int("users", len(users)), logx.Int("rules", total))
	return nil
}

// Add validates and appends a rule for the user, then persists.
// dayToken is a fixed abbreviation (dom..sab) or empty for every day.
func (s *Store) Add(userID int64, dayToken, hhmm string) (Rule, error) {
	day, err := ParseDay(dayToken)
	if err != nil {
		return Rule{}, err
	}
	if err := ValidateTime(hhmm); err != nil {
		return Rule{}, err
	}
	r := Rule{Day: day, Time: hhmm}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.users[userID]
	s.users[userID] = append(append([]Rule(nil), prev...), r)
	if err := s.persistLocked(); err != nil {
		// roll back: memory and disk must agree
		if prev == nil {
			delete(s.users, userID)
		} else {
			s.users[userID] = prev
		}
		return Rule{}, err
	}
	return r, nil
}

// List returns a copy of the user's rules in insertion order.
// Unknown users get an empty slice.
func (s *Store) List(userID int64) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rule(nil), s.users[userID]...)
}

// Remove deletes the rule at the given 1-based index and persists.
// Later rules shift down, changing their visible index.
func (s *Store) Remove(userID int64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.users[userID]
	if index < 1 || index > len(prev) {
		return fmt.Errorf("%w: index %d of %d", ErrRuleNotFound, index, len(prev))
	}

	next := make([]Rule, 0, len(prev)-1)
	next = append(next, prev[:index-1]...)
	next = append(next, prev[index:]...)
	if len(next) == 0 {
		delete(s.users, userID)
	} else {
		s.users[userID] = next
	}

	if err := s.persistLocked(); err != nil {
		s.users[userID] = prev
		return err
	}
	return nil
}

// RemoveAll clears the user's rules and persists.
// Clearing an already-empty set is reported as ErrNoRules.
func (s *Store) RemoveAll(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.users[userID]
	if !ok || len(prev) == 0 {
		return ErrNoRules
	}
	delete(s.users, userID)

	if err := s.persistLocked(); err != nil {
		s.users[userID] = prev
		return err
	}
	return nil
}

// Snapshot returns a consistent deep copy of the whole mapping for tick
// evaluation. It never observes a mutation in progress.
func (s *Store) Snapshot() map[int64][]Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]Rule, len(s.users))
	for id, rules := range s.users {
		out[id] = append([]Rule(nil), rules...)
	}
	return out
}

// Users returns the user ids with at least one rule, sorted for stable logs.
func (s *Store) Users() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// persistLocked rewrites the whole document via temp file + rename.
// Call with s.mu held (write-locked): writes are ordered by mutation.
func (s *Store) persistLocked() error {
	raw := make(map[string]userDoc, len(s.users))
	for id, rules := range s.users {
		raw[strconv.FormatInt(id, 10)] = userDoc{Rules: rules}
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedules: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("persist schedules: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("persist schedules: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("persist schedules: %w", err)
	}
	return nil
}
