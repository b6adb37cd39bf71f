// Package keyspace implements the shared, concurrent key/value store at
// the heart of redistore: a map from string key to a byte-string value
// with an optional expiration instant, plus the lazy and active
// expiration discipline that keeps TTL'd keys from accumulating forever.
//
// A single Keyspace is created once at server start and shared by
// reference among every connection's driver goroutine and the active
// expiration sampler. All operations acquire either the shared read lock
// or the exclusive write lock for their duration; none hold it across an
// I/O suspension point, since nothing here ever performs I/O — values are
// cloned out to the caller before any lock is released.
//
// Grounded in cachemir-cachemir's pkg/cache.Cache (RWMutex-guarded map of
// *Value with a zero-value-means-no-expiry ExpiresAt), generalized to the
// sampling active-expiration sweep described for this store instead of
// that cache's simpler once-a-minute full-table scan.
package keyspace

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// entry is the internal record for one key: its byte-string payload and
// an optional expiration instant. hasExpiry reports whether expiresAt is
// set; when it is false the key has no TTL.
type entry struct {
	data      []byte
	expiresAt time.Time
	hasExpiry bool
}

func (e *entry) expired(now time.Time) bool {
	return e.hasExpiry && now.After(e.expiresAt)
}

// sweepSampleSize is how many keys active expiration samples per pass,
// matching Redis's own default active-expire-cycle sample size.
const sweepSampleSize = 20

// sweepExpiredThreshold is the fraction of a sample that must be expired
// for active expiration to immediately take another pass instead of
// waiting for the next tick.
const sweepExpiredThreshold = 0.25

// Keyspace is the shared, thread-safe key/value map.
type Keyspace struct {
	mu   sync.RWMutex
	data map[string]*entry

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepWG       sync.WaitGroup
	onSweepPanic  func(recovered interface{})
}

// Option configures a Keyspace at construction time.
type Option func(*Keyspace)

// WithSweepInterval overrides the default 100ms active-expiration tick.
func WithSweepInterval(d time.Duration) Option {
	return func(k *Keyspace) { k.sweepInterval = d }
}

// WithSweepPanicHandler installs a callback invoked (instead of crashing
// the process) if the active-expiration sweep panics. Intended for
// logging; the sweep goroutine resumes on its next tick regardless.
func WithSweepPanicHandler(f func(recovered interface{})) Option {
	return func(k *Keyspace) { k.onSweepPanic = f }
}

// New creates an empty Keyspace and starts its background active
// expiration sampler. Call Close to stop the sampler when the Keyspace is
// no longer needed (normally: never, for the lifetime of a server
// process).
func New(opts ...Option) *Keyspace {
	k := &Keyspace{
		data:          make(map[string]*entry),
		sweepInterval: 100 * time.Millisecond,
		stopSweep:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.sweepWG.Add(1)
	go k.runActiveExpiration()
	return k
}

// Close stops the background active expiration sampler. It does not
// clear the keyspace's contents.
func (k *Keyspace) Close() {
	close(k.stopSweep)
	k.sweepWG.Wait()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get returns a copy of the data stored at key, or (nil, false) if the
// key is absent or has expired. An observed-expired key is swept
// (removed) before returning.
func (k *Keyspace) Get(key string) ([]byte, bool) {
	k.mu.RLock()
	e, ok := k.data[key]
	if !ok {
		k.mu.RUnlock()
		return nil, false
	}
	expired := e.expired(time.Now())
	var data []byte
	if !expired {
		data = cloneBytes(e.data)
	}
	k.mu.RUnlock()

	if expired {
		k.lazyDelete(key)
		return nil, false
	}
	return data, true
}

// lazyDelete removes key if it is still present and still expired,
// re-checking under the write lock to avoid racing a concurrent writer
// that refreshed the key between the read-side check and this call.
func (k *Keyspace) lazyDelete(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if e, ok := k.data[key]; ok && e.expired(time.Now()) {
		delete(k.data, key)
	}
}

// Set unconditionally stores data at key with no expiry, clearing any
// previous TTL or value.
func (k *Keyspace) Set(key string, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = &entry{data: cloneBytes(data)}
}

// SetEx stores data at key with expiresAt = now + seconds.
func (k *Keyspace) SetEx(key string, data []byte, seconds int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = &entry{
		data:      cloneBytes(data),
		expiresAt: time.Now().Add(time.Duration(seconds) * time.Second),
		hasExpiry: true,
	}
}

// SetNx stores data at key with no expiry only if key is absent or
// expired, returning true if it stored. An expired entry is treated as
// absent for this check (and is overwritten, not merely reported absent).
func (k *Keyspace) SetNx(key string, data []byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if e, ok := k.data[key]; ok && !e.expired(time.Now()) {
		return false
	}
	k.data[key] = &entry{data: cloneBytes(data)}
	return true
}

// Del removes each listed key that is present (including entries that
// have expired but have not yet been swept — those count as present and
// are removed), returning the number actually removed.
func (k *Keyspace) Del(keys []string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, ok := k.data[key]; ok {
			delete(k.data, key)
			n++
		}
	}
	return n
}

// ErrNotInteger is returned by IncrBy when the stored value is not a
// valid signed 64-bit decimal.
var ErrNotInteger = fmt.Errorf("value is not an integer or out of range")

// ErrOverflow is returned by IncrBy when current + delta overflows a
// signed 64-bit integer.
var ErrOverflow = fmt.Errorf("increment or decrement would overflow")

// IncrBy reads the current value at key (absent or expired treated as
// 0), adds delta with overflow checking, and stores the decimal ASCII
// result as a fresh entry with no expiry — this clears any existing TTL,
// a deliberate divergence from canonical Redis, which keeps it.
// Returns the new value.
func (k *Keyspace) IncrBy(key string, delta int64) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var current int64
	if e, ok := k.data[key]; ok && !e.expired(time.Now()) {
		parsed, err := strconv.ParseInt(string(e.data), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = parsed
	}

	next, ok := addOverflowChecked(current, delta)
	if !ok {
		return 0, ErrOverflow
	}

	k.data[key] = &entry{data: []byte(strconv.FormatInt(next, 10))}
	return next, nil
}

func addOverflowChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// MGet returns one optional value per requested key, in request order,
// honoring expiration per key the same way Get does.
func (k *Keyspace) MGet(keys []string) [][]byte {
	results := make([][]byte, len(keys))
	for i, key := range keys {
		if data, ok := k.Get(key); ok {
			results[i] = data
		}
	}
	return results
}

// MSetPair is one key/value pair for MSet.
type MSetPair struct {
	Key   string
	Value []byte
}

// MSet applies every pair as an unconditional Set, atomically with
// respect to other writers: no other writer observes a partial MSet.
func (k *Keyspace) MSet(pairs []MSetPair) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range pairs {
		k.data[p.Key] = &entry{data: cloneBytes(p.Value)}
	}
}

// Expire implements the EXPIRE command's keyspace semantics:
//   - seconds <= 0: if key is present and not expired, remove it and
//     return true; otherwise false (cleaning up a stale entry if found).
//   - seconds > 0: if key is present and not expired, set its expiry and
//     return true; otherwise false.
func (k *Keyspace) Expire(key string, seconds int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.data[key]
	if !ok || e.expired(time.Now()) {
		if ok {
			delete(k.data, key)
		}
		return false
	}

	if seconds <= 0 {
		delete(k.data, key)
		return true
	}

	e.expiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	e.hasExpiry = true
	return true
}

// TTL returns -2 if key is absent or expired (sweeping it if expired),
// -1 if key exists with no expiry, or the floor of the remaining whole
// seconds until expiry.
func (k *Keyspace) TTL(key string) int64 {
	k.mu.RLock()
	e, ok := k.data[key]
	if !ok {
		k.mu.RUnlock()
		return -2
	}
	now := time.Now()
	expired := e.expired(now)
	hasExpiry := e.hasExpiry
	var remaining time.Duration
	if !expired && hasExpiry {
		remaining = e.expiresAt.Sub(now)
	}
	k.mu.RUnlock()

	if expired {
		k.lazyDelete(key)
		return -2
	}
	if !hasExpiry {
		return -1
	}
	return int64(remaining / time.Second)
}

// Persist clears key's expiry, returning true only if key was present,
// not expired, and had an expiry to clear.
func (k *Keyspace) Persist(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.data[key]
	if !ok || e.expired(time.Now()) {
		return false
	}
	if !e.hasExpiry {
		return false
	}
	e.hasExpiry = false
	e.expiresAt = time.Time{}
	return true
}

// Keys returns every key whose bytes match pattern (see MatchGlob),
// skipping expired entries and sweeping any seen expired entries
// opportunistically.
func (k *Keyspace) Keys(pattern string) []string {
	k.mu.RLock()
	now := time.Now()
	matched := make([]string, 0, len(k.data))
	var expiredKeys []string
	for key, e := range k.data {
		if e.expired(now) {
			expiredKeys = append(expiredKeys, key)
			continue
		}
		if MatchGlob(pattern, key) {
			matched = append(matched, key)
		}
	}
	k.mu.RUnlock()

	for _, key := range expiredKeys {
		k.lazyDelete(key)
	}
	return matched
}

// runActiveExpiration wakes every sweepInterval and performs the
// Redis-style sampling sweep: sample up to sweepSampleSize keys, count
// how many are expired, remove those, and loop immediately while the
// expired fraction is at least sweepExpiredThreshold; otherwise wait for
// the next tick. A panic inside one pass is recovered so a bad sweep
// never takes down the server.
func (k *Keyspace) runActiveExpiration() {
	defer k.sweepWG.Done()
	ticker := time.NewTicker(k.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stopSweep:
			return
		case <-ticker.C:
			k.sweepPass()
		}
	}
}

func (k *Keyspace) sweepPass() {
	defer func() {
		if r := recover(); r != nil && k.onSweepPanic != nil {
			k.onSweepPanic(r)
		}
	}()
	for {
		sampled, expired := k.sweepOnce()
		if sampled == 0 || float64(expired)/float64(sampled) < sweepExpiredThreshold {
			return
		}
	}
}

// sweepOnce samples up to sweepSampleSize keys in map iteration order,
// deletes the expired ones, and reports how many of each it saw.
func (k *Keyspace) sweepOnce() (sampled, expired int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	for key, e := range k.data {
		if sampled >= sweepSampleSize {
			break
		}
		sampled++
		if e.expired(now) {
			expired++
			delete(k.data, key)
		}
	}
	return sampled, expired
}
