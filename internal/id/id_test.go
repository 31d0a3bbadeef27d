package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortedAndUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 100; i++ {
		s := New()
		assert.Len(t, s, 26)
		assert.False(t, seen[s], "duplicate id %s", s)
		assert.Less(t, prev, s)
		seen[s] = true
		prev = s
	}
}
