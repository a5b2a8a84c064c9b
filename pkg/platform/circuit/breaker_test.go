package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock, opts ...Option) *Breaker {
	return New("review-cache", append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestBreakerDefaults(t *testing.T) {
	b := New("checkout-verifier")
	assert.Equal(t, "checkout-verifier", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())

	for i := 0; i < 4; i++ {
		useFallback, _ := b.RecordFailure()
		assert.False(t, useFallback, "failure %d", i+1)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
}

func TestBreakerTransitions(t *testing.T) {
	type step struct {
		fail        bool
		advance     time.Duration
		wantAllow   bool
		wantOpen    bool
		wantOpened  bool
		wantClosed  bool
		wantPrimary bool
	}
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on consecutive failures",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, wantAllow: true},
				{fail: true, wantAllow: true, wantOpen: true, wantOpened: true},
			},
		},
		{
			name: "success between failures restarts the count",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, wantAllow: true},
				{fail: false, wantAllow: true, wantPrimary: true},
				{fail: true, wantAllow: true},
				{fail: true, wantAllow: true, wantOpen: true, wantOpened: true},
			},
		},
		{
			name: "closes after enough trial successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute)},
			steps: []step{
				{fail: true, wantAllow: true, wantOpen: true, wantOpened: true},
				{fail: false, advance: time.Minute, wantAllow: true, wantOpen: true},
				{fail: false, wantAllow: true, wantClosed: true, wantPrimary: true},
			},
		},
		{
			name: "failed trial call re-arms the cooldown",
			opts: []Option{WithFailureThreshold(1), WithCooldown(time.Minute)},
			steps: []step{
				{fail: true, wantAllow: true, wantOpen: true, wantOpened: true},
				{fail: true, advance: time.Minute, wantAllow: true, wantOpen: true},
				{fail: false, advance: 30 * time.Second, wantAllow: false, wantOpen: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
			b := newTestBreaker(clock, tt.opts...)
			for i, s := range tt.steps {
				clock.Advance(s.advance)
				require.Equal(t, s.wantAllow, b.Allow(), "step %d allow", i)
				if s.fail {
					_, change := b.RecordFailure()
					assert.Equal(t, s.wantOpened, change.Opened, "step %d opened", i)
				} else {
					usePrimary, change := b.RecordSuccess()
					assert.Equal(t, s.wantPrimary, usePrimary, "step %d primary", i)
					assert.Equal(t, s.wantClosed, change.Closed, "step %d closed", i)
				}
				assert.Equal(t, s.wantOpen, b.IsOpen(), "step %d open", i)
			}
		})
	}
}

func TestBreakerCooldownGatesTrialCalls(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(1), WithCooldown(10*time.Second))

	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.Advance(9 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("review-cache", WithFailureThreshold(0), WithSuccessThreshold(-1), WithClock(nil))
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(1), WithCooldown(time.Hour))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
}

func TestBreakerConcurrentRecords(t *testing.T) {
	b := New("review-cache", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.True(t, b.IsOpen())
}
