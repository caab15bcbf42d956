package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset(t *testing.T) {
	b := NewBitset(130)
	assert.Len(t, b, 3)
	assert.False(t, b.Any())

	b.Set(0)
	b.Set(64)
	b.Set(129)

	assert.True(t, b.Test(64))
	assert.False(t, b.Test(63))
	assert.True(t, b.Any())
	assert.Equal(t, 3, b.Count())
}

func TestSignalEventCache_EmptyUntilClassified(t *testing.T) {
	// GIVEN a fresh cache
	c := NewSignalEventCache(2)
	assert.True(t, c.Empty())

	// WHEN a pass classifies events but none are signal
	c.MarkPopulated(10)

	// THEN the cache is populated, holds no entries and is not empty
	assert.True(t, c.Populated())
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Empty())

	// WHEN reset
	c.Reset()

	// THEN it is empty again
	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.Classified())
}

func TestSignalEventCache_Append_RequiresAscendingOrder(t *testing.T) {
	c := NewSignalEventCache(1)
	c.Append(SignalCacheEntry{Input: 0, Event: 3})
	c.Append(SignalCacheEntry{Input: 0, Event: 7})
	c.Append(SignalCacheEntry{Input: 1, Event: 0})

	assert.Panics(t, func() { c.Append(SignalCacheEntry{Input: 1, Event: 0}) })
	assert.Panics(t, func() { c.Append(SignalCacheEntry{Input: 0, Event: 9}) })
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 7, c.Entry(1).Event)
}
