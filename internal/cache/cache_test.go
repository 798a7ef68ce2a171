package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	_, ok := c.Get("what is Go?")
	assert.False(t, ok, "empty cache must miss")

	c.Put("what is Go?", "Go is a programming language.")

	got, ok := c.Get("what is Go?")
	require.True(t, ok)
	assert.Equal(t, "Go is a programming language.", got)
}

func TestCacheKeysAreCaseSensitive(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	c.Put("What is X?", "answer")

	_, ok := c.Get("what is x?")
	assert.False(t, ok, "keys hash the raw query, no normalization")

	_, ok = c.Get("What is X? ")
	assert.False(t, ok, "trailing whitespace is a different key")
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Second)
	defer c.Close()

	base := time.Now()
	c.now = func() time.Time { return base }

	c.Put("q", "cached answer")

	got, ok := c.Get("q")
	require.True(t, ok)
	assert.Equal(t, "cached answer", got)

	c.now = func() time.Time { return base.Add(1500 * time.Millisecond) }

	_, ok = c.Get("q")
	assert.False(t, ok, "entry past its TTL must miss")
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on Get")
}

func TestCacheDefaultTTL(t *testing.T) {
	c := New(0)
	defer c.Close()
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestCacheEagerEviction(t *testing.T) {
	c := New(time.Second)
	defer c.Close()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("a", "1")
	c.Put("b", "2")
	require.Equal(t, 2, c.Len())

	c.now = func() time.Time { return base.Add(2 * time.Second) }
	c.evictExpired()

	assert.Equal(t, 0, c.Len())
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("hello"), Key("hello"))
	assert.NotEqual(t, Key("hello"), Key("Hello"))
	assert.Len(t, Key(""), 64)
}
