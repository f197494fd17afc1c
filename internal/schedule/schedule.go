// Package schedule owns per-user notification rules and their persistence.
//
// A rule is a (day, time) pair: day is a specific weekday or AnyDay, time is
// a canonical zero-padded "HH:MM" 24-hour string. Rule order is user-visible:
// listings are numbered 1..N and removal is by that 1-based index.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime  = errors.New("invalid time, expected HH:MM")
	ErrUnknownDay   = errors.New("unknown day abbreviation")
	ErrRuleNotFound = errors.New("schedule not found")
	ErrNoRules      = errors.New("no schedules for user")
)

// Day is a weekday (0=Sunday .. 6=Saturday) or AnyDay.
// It marshals to JSON as an integer, or null for AnyDay.
type Day int8

const AnyDay Day = -1

// dayAbbrevs is the fixed command-surface table (Sunday-first).
var dayAbbrevs = [7]string{"dom", "seg", "ter", "qua", "qui", "sex", "sab"}

// ParseDay resolves a day abbreviation. The empty token means AnyDay.
func ParseDay(token string) (Day, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return AnyDay, nil
	}
	for i, abbr := range dayAbbrevs {
		if token == abbr {
			return Day(i), nil
		}
	}
	return AnyDay, fmt.Errorf("%w: %q", ErrUnknownDay, token)
}

// Matches reports whether the rule day applies on the given weekday.
func (d Day) Matches(wd time.Weekday) bool {
	return d == AnyDay || int(d) == int(wd)
}

// Label returns the user-facing day name for listings.
func (d Day) Label() string {
	if d == AnyDay {
		return "Todos os dias"
	}
	if d < 0 || int(d) >= len(dayAbbrevs) {
		return "?"
	}
	return dayAbbrevs[d]
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d == AnyDay {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(d))), nil
}

func (d *Day) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = AnyDay
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if n < 0 || n > 6 {
		return fmt.Errorf("day out of range: %d", n)
	}
	*d = Day(n)
	return nil
}

// Rule is one recurring send-time for a user.
type Rule struct {
	Day  Day    `json:"day"`
	Time string `json:"time"`
}

// ValidateTime checks the canonical zero-padded "HH:MM" form.
// "7:30" is rejected; "07:30" is accepted.
func ValidateTime(s string) error {
	if len(s) != 5 || s[2] != ':' {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	// All four clock bytes must be ASCII digits; Atoi alone would let
	// signed forms like "+1:30" through.
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	h, _ := strconv.Atoi(s[:2])
	if h > 23 {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, _ := strconv.Atoi(s[3:])
	if m > 59 {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return nil
}

// FormatClock renders t as the canonical "HH:MM" matched against rules.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
