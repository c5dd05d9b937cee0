package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
		{"héllo", 2},
		{"日本語です", 2},
		{"😀😀", 1},
		{"a😀😀", 2},
		{"😀😀😀😀😀", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.in), "EstimateTokens(%q)", tt.in)
	}
}

func TestTextLength(t *testing.T) {
	assert.Equal(t, 0, TextLength(""))
	assert.Equal(t, 5, TextLength("héllo"))
	assert.Equal(t, 2, TextLength("😀"))
	assert.Equal(t, 3, TextLength("a😀"))
}
