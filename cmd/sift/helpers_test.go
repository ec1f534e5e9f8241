package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "short enough", in: "hello", maxLen: 10, want: "hello"},
		{name: "exact length", in: "hello", maxLen: 5, want: "hello"},
		{name: "truncated with ellipsis", in: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny budget", in: "hello", maxLen: 2, want: "he"},
		{name: "multi-byte subject", in: "Überweisungsbestätigung für Rechnung", maxLen: 12, want: "Überweisu..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateString(tt.in, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateString_NeverSplitsRunes(t *testing.T) {
	s := strings.Repeat("é", 50)
	for maxLen := 1; maxLen <= 50; maxLen++ {
		assert.True(t, utf8.ValidString(truncateString(s, maxLen)), "maxLen %d", maxLen)
	}
}
