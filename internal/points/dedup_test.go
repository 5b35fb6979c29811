package points

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSet_AddAndContains(t *testing.T) {
	seen := NewSeenSet(10)

	assert.False(t, seen.Contains("red1"))
	seen.Add("red1")
	assert.True(t, seen.Contains("red1"))
	assert.Equal(t, 1, seen.Len())

	// Adding the same id again is a no-op.
	seen.Add("red1")
	assert.Equal(t, 1, seen.Len())
}

func TestSeenSet_CompactsToRecentHalf(t *testing.T) {
	seen := NewSeenSet(1000)

	for i := range 1001 {
		seen.Add(fmt.Sprintf("red%d", i))
	}

	// Crossing the limit compacts down to the most recent half.
	assert.Equal(t, 500, seen.Len())
	assert.True(t, seen.Contains("red1000"))
	assert.True(t, seen.Contains("red501"))
	assert.False(t, seen.Contains("red0"))
	assert.False(t, seen.Contains("red500"))
}

func TestSeenSet_NeverExceedsLimit(t *testing.T) {
	seen := NewSeenSet(1000)

	for i := range 5000 {
		seen.Add(fmt.Sprintf("red%d", i))
		assert.LessOrEqual(t, seen.Len(), 1000)
	}

	// The most recent id always survives.
	assert.True(t, seen.Contains("red4999"))
}

func TestSeenSet_DefaultLimit(t *testing.T) {
	seen := NewSeenSet(0)

	for i := range 1001 {
		seen.Add(fmt.Sprintf("red%d", i))
	}
	assert.Equal(t, 500, seen.Len())
}

func TestSeenSet_Clear(t *testing.T) {
	seen := NewSeenSet(10)
	seen.Add("red1")
	seen.Add("red2")

	seen.Clear()
	assert.Equal(t, 0, seen.Len())
	assert.False(t, seen.Contains("red1"))

	// The set remains usable after clearing.
	seen.Add("red3")
	assert.True(t, seen.Contains("red3"))
}
