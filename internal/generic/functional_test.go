package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out := Filter(in, func(v int) bool { return v%2 == 1 })

	assert.Equal(t, []int{1, 3, 5}, out)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, in)
}

func TestFilter_NothingMatches(t *testing.T) {
	out := Filter([]string{"a", "b"}, func(string) bool { return false })
	assert.Empty(t, out)
}

func TestUnique(t *testing.T) {
	out := Unique([]string{"b:1", "", "a:1", "b:1", "c:1", "a:1"})
	assert.Equal(t, []string{"b:1", "a:1", "c:1"}, out)
}
