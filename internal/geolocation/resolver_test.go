package geolocation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"memeatlas/internal/geocache"
	"memeatlas/internal/util"
	"memeatlas/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls  atomic.Int32
	lookup func(ip string) (models.GeoLocation, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Lookup(_ context.Context, ip string) (models.GeoLocation, error) {
	f.calls.Add(1)
	return f.lookup(ip)
}

type fakeShared struct {
	mu   sync.Mutex
	data map[string]SharedEntry
}

func (f *fakeShared) Get(_ context.Context, ip string) (SharedEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data[ip]
	return e, ok
}

func (f *fakeShared) Set(_ context.Context, ip string, e SharedEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[ip] = e
}

func (f *fakeShared) Delete(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, ip)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func parisLookup(ip string) (models.GeoLocation, error) {
	return models.GeoLocation{City: "Paris", Region: "Île-de-France", Country: "France"}, nil
}

func noSleepPolicy(delays *[]time.Duration) util.Policy {
	p := DefaultRetryPolicy
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestResolver_CacheHitWithinTTL(t *testing.T) {
	provider := &fakeProvider{lookup: parisLookup}
	r := NewResolver(geocache.New(10, time.Hour), provider)
	ctx := context.Background()

	first := r.Resolve(ctx, "203.0.113.10")
	second := r.Resolve(ctx, "203.0.113.10")

	assert.Equal(t, int32(1), provider.calls.Load(), "second resolution must not call the provider")
	assert.Equal(t, first, second)
	assert.Equal(t, "203.0.113.10", second.IP)
	assert.Equal(t, "Paris", second.City)
}

func TestResolver_RefreshAfterTTL(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	cache := geocache.New(10, time.Hour, geocache.WithClock(c.Now))

	city := "Paris"
	provider := &fakeProvider{lookup: func(string) (models.GeoLocation, error) {
		return models.GeoLocation{City: city, Region: "Île-de-France", Country: "France"}, nil
	}}
	r := NewResolver(cache, provider)
	ctx := context.Background()

	assert.Equal(t, "Paris", r.Resolve(ctx, "203.0.113.11").City)

	city = "Versailles"
	c.t = c.t.Add(time.Hour + time.Second)

	geo := r.Resolve(ctx, "203.0.113.11")
	assert.Equal(t, int32(2), provider.calls.Load())
	assert.Equal(t, "Versailles", geo.City)

	cached, ok := cache.Get("203.0.113.11")
	require.True(t, ok)
	assert.Equal(t, "Versailles", cached.City, "fresh lookup overwrites the cache entry")
}

func TestResolver_NormalizesMissingFields(t *testing.T) {
	provider := &fakeProvider{lookup: func(string) (models.GeoLocation, error) {
		return models.GeoLocation{Country: "Iceland"}, nil
	}}
	r := NewResolver(geocache.New(10, time.Hour), provider)

	geo := r.Resolve(context.Background(), "198.51.100.20")
	assert.Equal(t, models.UnknownCity, geo.City)
	assert.Equal(t, models.UnknownRegion, geo.Region)
	assert.Equal(t, "Iceland", geo.Country)
}

func TestResolver_SustainedTransientFailure(t *testing.T) {
	provider := &fakeProvider{lookup: func(string) (models.GeoLocation, error) {
		return models.GeoLocation{}, &StatusError{Code: 503}
	}}
	var delays []time.Duration
	cache := geocache.New(10, time.Hour)
	r := NewResolver(cache, provider, WithRetryPolicy(noSleepPolicy(&delays)))

	geo := r.Resolve(context.Background(), "198.51.100.30")

	assert.Equal(t, int32(5), provider.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
		assert.LessOrEqual(t, delays[i], 30*time.Second)
	}
	assert.True(t, geo.IsUnknown())
	assert.Equal(t, "198.51.100.30", geo.IP)
	assert.Equal(t, 0, cache.Len(), "failed resolutions are not cached")
}

func TestResolver_MalformedResponseNotRetried(t *testing.T) {
	provider := &fakeProvider{lookup: func(string) (models.GeoLocation, error) {
		return models.GeoLocation{}, ErrMalformedResponse
	}}
	var delays []time.Duration
	r := NewResolver(geocache.New(10, time.Hour), provider, WithRetryPolicy(noSleepPolicy(&delays)))

	geo := r.Resolve(context.Background(), "198.51.100.31")

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Empty(t, delays)
	assert.True(t, geo.IsUnknown())
}

func TestResolver_RecoversAfterTransientErrors(t *testing.T) {
	var n atomic.Int32
	provider := &fakeProvider{lookup: func(ip string) (models.GeoLocation, error) {
		if n.Add(1) < 3 {
			return models.GeoLocation{}, errors.Join(errors.New("dial"), &StatusError{Code: 502})
		}
		return parisLookup(ip)
	}}
	var delays []time.Duration
	r := NewResolver(geocache.New(10, time.Hour), provider, WithRetryPolicy(noSleepPolicy(&delays)))

	geo := r.Resolve(context.Background(), "198.51.100.32")
	assert.Equal(t, "Paris", geo.City)
	assert.Equal(t, int32(3), provider.calls.Load())
	assert.Len(t, delays, 2)
}

func TestResolver_EmptyIP(t *testing.T) {
	provider := &fakeProvider{lookup: parisLookup}
	r := NewResolver(geocache.New(10, time.Hour), provider)

	geo := r.Resolve(context.Background(), "")
	assert.True(t, geo.IsUnknown())
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestResolver_SharedTier(t *testing.T) {
	shared := &fakeShared{data: map[string]SharedEntry{
		"192.0.2.50": {
			Geo:        models.GeoLocation{IP: "192.0.2.50", City: "Lyon", Region: "Auvergne-Rhône-Alpes", Country: "France"},
			InsertedAt: time.Now(),
		},
	}}
	provider := &fakeProvider{lookup: parisLookup}
	cache := geocache.New(10, time.Hour)
	r := NewResolver(cache, provider, WithSharedCache(shared))
	ctx := context.Background()

	t.Run("shared hit skips provider and fills process cache", func(t *testing.T) {
		geo := r.Resolve(ctx, "192.0.2.50")
		assert.Equal(t, "Lyon", geo.City)
		assert.Equal(t, int32(0), provider.calls.Load())
		_, ok := cache.Get("192.0.2.50")
		assert.True(t, ok)
	})

	t.Run("provider result is written to shared tier", func(t *testing.T) {
		r.Resolve(ctx, "192.0.2.51")
		e, ok := shared.Get(ctx, "192.0.2.51")
		require.True(t, ok)
		assert.Equal(t, "Paris", e.Geo.City)
		assert.False(t, e.InsertedAt.IsZero())
	})
}

func TestResolver_SharedHitKeepsOriginalAge(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	cache := geocache.New(10, time.Hour, geocache.WithClock(c.Now))
	shared := &fakeShared{data: map[string]SharedEntry{
		"192.0.2.60": {
			Geo:        models.GeoLocation{IP: "192.0.2.60", City: "Lyon", Region: "Auvergne-Rhône-Alpes", Country: "France"},
			InsertedAt: c.t.Add(-59 * time.Minute),
		},
	}}
	provider := &fakeProvider{lookup: parisLookup}
	r := NewResolver(cache, provider, WithSharedCache(shared))
	ctx := context.Background()

	assert.Equal(t, "Lyon", r.Resolve(ctx, "192.0.2.60").City)
	assert.Equal(t, int32(0), provider.calls.Load())

	// once the shared copy is gone, the local copy must expire one hour after
	// the original resolution, not one hour after it was copied
	shared.Delete("192.0.2.60")
	c.t = c.t.Add(2 * time.Minute)

	geo := r.Resolve(ctx, "192.0.2.60")
	assert.Equal(t, "Paris", geo.City)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestResolver_ExpiredSharedEntryIgnored(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	cache := geocache.New(10, time.Hour, geocache.WithClock(c.Now))
	shared := &fakeShared{data: map[string]SharedEntry{
		"192.0.2.61": {
			Geo:        models.GeoLocation{IP: "192.0.2.61", City: "Lyon"},
			InsertedAt: c.t.Add(-2 * time.Hour),
		},
	}}
	provider := &fakeProvider{lookup: parisLookup}
	r := NewResolver(cache, provider, WithSharedCache(shared))

	geo := r.Resolve(context.Background(), "192.0.2.61")
	assert.Equal(t, "Paris", geo.City)
	assert.Equal(t, int32(1), provider.calls.Load())
}

type ctxProvider struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *ctxProvider) Name() string { return "ctx" }

func (p *ctxProvider) Lookup(ctx context.Context, ip string) (models.GeoLocation, error) {
	p.once.Do(func() { close(p.started) })
	<-p.release
	if err := ctx.Err(); err != nil {
		return models.GeoLocation{}, err
	}
	return parisLookup(ip)
}

func TestResolver_SharedLookupOutlivesFirstCaller(t *testing.T) {
	provider := &ctxProvider{started: make(chan struct{}), release: make(chan struct{})}
	r := NewResolver(geocache.New(10, time.Hour), provider)

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan models.GeoLocation)
	go func() { first <- r.Resolve(firstCtx, "192.0.2.70") }()
	<-provider.started

	second := make(chan models.GeoLocation)
	go func() { second <- r.Resolve(context.Background(), "192.0.2.70") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(provider.release)

	assert.Equal(t, "Paris", (<-first).City)
	assert.Equal(t, "Paris", (<-second).City)
}

func TestResolver_ConcurrentMissesShareLookup(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{lookup: func(ip string) (models.GeoLocation, error) {
		<-release
		return parisLookup(ip)
	}}
	r := NewResolver(geocache.New(10, time.Hour), provider)

	var wg sync.WaitGroup
	results := make([]models.GeoLocation, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "192.0.2.99")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, provider.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, provider.calls.Load(), int32(1))
	for _, geo := range results {
		assert.Equal(t, "Paris", geo.City)
	}
}
