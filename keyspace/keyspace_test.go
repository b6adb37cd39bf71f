package keyspace

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("k", []byte("v"))
	got, ok := k.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMissingKey(t *testing.T) {
	k := New()
	defer k.Close()

	_, ok := k.Get("nope")
	assert.False(t, ok)
}

func TestSetNxIdempotence(t *testing.T) {
	k := New()
	defer k.Close()

	assert.True(t, k.SetNx("k", []byte("first")))
	assert.False(t, k.SetNx("k", []byte("second")))

	got, ok := k.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got)
}

func TestDelReturnsCountRemoved(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("a", []byte("1"))
	k.Set("b", []byte("2"))

	n := k.Del([]string{"a", "b", "missing"})
	assert.Equal(t, 2, n)

	_, ok := k.Get("a")
	assert.False(t, ok)
}

func TestTTLMonotonicity(t *testing.T) {
	k := New()
	defer k.Close()

	k.SetEx("k", []byte("v"), 100)
	first := k.TTL("k")
	require.Greater(t, first, int64(0))

	time.Sleep(1100 * time.Millisecond)
	second := k.TTL("k")
	assert.Less(t, second, first)
	assert.GreaterOrEqual(t, second, int64(0))
}

func TestTTLNoExpiryIsMinusOne(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("k", []byte("v"))
	assert.Equal(t, int64(-1), k.TTL("k"))
}

func TestTTLMissingIsMinusTwo(t *testing.T) {
	k := New()
	defer k.Close()

	assert.Equal(t, int64(-2), k.TTL("nope"))
}

func TestExpireNonPositiveDeletesImmediately(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("k", []byte("v"))
	assert.True(t, k.Expire("k", 0))

	_, ok := k.Get("k")
	assert.False(t, ok)
}

func TestExpireMissingKeyReturnsFalse(t *testing.T) {
	k := New()
	defer k.Close()

	assert.False(t, k.Expire("nope", 10))
}

func TestPersistClearsExpiry(t *testing.T) {
	k := New()
	defer k.Close()

	k.SetEx("k", []byte("v"), 100)
	assert.True(t, k.Persist("k"))
	assert.Equal(t, int64(-1), k.TTL("k"))

	// Persisting again with no TTL left to clear reports false.
	assert.False(t, k.Persist("k"))
}

func TestIncrByFromAbsentStartsAtZero(t *testing.T) {
	k := New()
	defer k.Close()

	got, err := k.IncrBy("counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestIncrByClearsExistingTTL(t *testing.T) {
	k := New()
	defer k.Close()

	k.SetEx("counter", []byte("1"), 100)
	_, err := k.IncrBy("counter", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(-1), k.TTL("counter"))
}

func TestIncrByNonIntegerIsError(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("k", []byte("not-a-number"))
	_, err := k.IncrBy("k", 1)
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestIncrByOverflowIsError(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("k", []byte("9223372036854775807"))
	_, err := k.IncrBy("k", 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestIncrByConcurrentLinearizes(t *testing.T) {
	k := New()
	defer k.Close()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := k.IncrBy("counter", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, ok := k.Get("counter")
	require.True(t, ok)
	assert.Equal(t, "1000", string(got))
}

func TestMGetPreservesOrderAndMisses(t *testing.T) {
	k := New()
	defer k.Close()

	k.Set("a", []byte("1"))
	k.Set("c", []byte("3"))

	got := k.MGet([]string{"a", "b", "c"})
	require.Len(t, got, 3)
	assert.Equal(t, []byte("1"), got[0])
	assert.Nil(t, got[1])
	assert.Equal(t, []byte("3"), got[2])
}

func TestMSetStoresEveryPair(t *testing.T) {
	k := New()
	defer k.Close()

	k.MSet([]MSetPair{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}})

	a, _ := k.Get("a")
	b, _ := k.Get("b")
	assert.Equal(t, []byte("1"), a)
	assert.Equal(t, []byte("2"), b)
}

func TestKeysGlobPatterns(t *testing.T) {
	k := New()
	defer k.Close()

	for _, key := range []string{"user:1", "user:2", "order:1"} {
		k.Set(key, []byte("x"))
	}

	users := k.Keys("user:*")
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, users)

	one := k.Keys("user:?")
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, one)

	all := k.Keys("*")
	assert.ElementsMatch(t, []string{"user:1", "user:2", "order:1"}, all)

	exact := k.Keys("order:1")
	assert.Equal(t, []string{"order:1"}, exact)
}

func TestActiveExpirationWithoutAccess(t *testing.T) {
	k := New(WithSweepInterval(10 * time.Millisecond))
	defer k.Close()

	k.SetEx("k", []byte("v"), 0)
	// SetEx with 0 seconds expires essentially immediately; give the
	// active sweeper a few ticks to find and remove it without anyone
	// ever calling Get.
	require.Eventually(t, func() bool {
		k.mu.RLock()
		_, present := k.data["k"]
		k.mu.RUnlock()
		return !present
	}, time.Second, 20*time.Millisecond)
}

func TestMatchGlobDirect(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "", true},
		{"*", "anything", true},
		{"a*b", "ab", true},
		{"a*b", "axxxb", true},
		{"a*b", "axxxc", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"", "", true},
		{"", "a", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MatchGlob(c.pattern, c.name), "pattern=%q name=%q", c.pattern, c.name)
	}
}
