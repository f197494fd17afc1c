package core

import (
	"reflect"
	"testing"
)

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"/frase", []string{"/frase"}},
		{"/agendar seg 07:30", []string{"/agendar", "seg", "07:30"}},
		{"/agendar   07:30", []string{"/agendar", "07:30"}},
		{`/cmd "a b" c`, []string{"/cmd", "a b", "c"}},
		{`/cmd 'x y'`, []string{"/cmd", "x y"}},
		{`/cmd a\ b`, []string{"/cmd", "a b"}},
	}
	for _, tc := range cases {
		got := tokenizeCommandLine(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("tokenize(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestNewReqIDUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := newReqID()
		if id == "" {
			t.Fatal("empty request id")
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}
