package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

// scriptedFetcher returns queued results in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []domain.FetchResult
	calls   int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i]
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	last   any
}

func (p *recordingPublisher) Publish(topic, sender string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.last = payload
}

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (r *updateRecorder) notify(u domain.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newTestSupervisor(spec domain.ModuleSpec, f ports.Fetcher, pub ports.Publisher, rec *updateRecorder) *Supervisor {
	cfg := SupervisorConfig{
		Spec:      spec,
		Fetcher:   f,
		Logger:    &mockLogger{},
		Publisher: pub,
		Now:       func() time.Time { return testNow },
	}
	if rec != nil {
		cfg.Notify = rec.notify
	}
	return NewSupervisor(cfg)
}

// fetchNow runs one fetch to completion.
func fetchNow(t *testing.T, s *Supervisor) {
	t.Helper()
	require.True(t, s.Trigger(context.Background()), "trigger skipped")
	s.WaitFetches()
}

func calendarEvents(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		start := testNow.Add(time.Duration(i+1) * 24 * time.Hour)
		items[i] = domain.Item{ID: string(rune('a' + i)), SortKey: start, Start: start, Title: "event"}
	}
	return items
}

func TestSupervisor_NewsfeedKeepsThreeNewest(t *testing.T) {
	items := []domain.Item{
		newsItem("1", 5*time.Hour, "oldest"),
		newsItem("2", 1*time.Hour, "newest"),
		newsItem("3", 3*time.Hour, ""),
		newsItem("4", 2*time.Hour, ""),
		newsItem("5", 4*time.Hour, ""),
	}
	spec := domain.ModuleSpec{
		ID:     "module_0_newsfeed",
		Kind:   domain.KindNewsfeed,
		Policy: domain.BufferPolicy{MaxItems: 3, Order: domain.OrderNewestFirst},
	}
	s := newTestSupervisor(spec, &scriptedFetcher{results: []domain.FetchResult{domain.Ok(items, testNow)}}, nil, nil)

	fetchNow(t, s)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, []string{"2", "4", "3"}, ids(snap.Visible))
	assert.True(t, snap.Loaded)
	assert.Equal(t, domain.ModuleIdle, snap.State)
}

func TestSupervisor_FailureKeepsLastGoodContent(t *testing.T) {
	netErr := domain.NewFetchError(domain.ErrorNetwork, testNow, "no route to host")
	f := &scriptedFetcher{results: []domain.FetchResult{
		domain.Ok(calendarEvents(4), testNow),
		domain.Failed(netErr),
	}}
	spec := domain.ModuleSpec{ID: "module_1_calendar", Kind: domain.KindCalendar, ShowErrors: true}
	rec := &updateRecorder{}
	s := newTestSupervisor(spec, f, nil, rec)

	fetchNow(t, s)
	before := s.Snapshot()
	fetchNow(t, s)
	after := s.Snapshot()

	assert.Equal(t, 4, after.Total)
	assert.True(t, domain.ItemsEqual(before.Visible, after.Visible))
	require.NotNil(t, after.Error)
	assert.Equal(t, domain.ErrorNetwork, after.Error.Kind)
	assert.Equal(t, 1, s.Failures())
	assert.Equal(t, 2, rec.Len(), "first load and error change are both reported")
}

func TestSupervisor_ErrorHiddenWithoutShowErrors(t *testing.T) {
	f := &scriptedFetcher{results: []domain.FetchResult{
		domain.Failed(domain.NewFetchError(domain.ErrorUnauthorized, testNow, "invalid api key")),
	}}
	s := newTestSupervisor(domain.ModuleSpec{ID: "w"}, f, nil, nil)

	fetchNow(t, s)

	snap := s.Snapshot()
	assert.Nil(t, snap.Error)
	assert.True(t, snap.Loaded)
	assert.True(t, snap.Empty())
}

func TestSupervisor_IdenticalResultsNotifyOnce(t *testing.T) {
	f := &scriptedFetcher{results: []domain.FetchResult{domain.Ok(calendarEvents(2), testNow)}}
	rec := &updateRecorder{}
	s := newTestSupervisor(domain.ModuleSpec{ID: "c"}, f, nil, rec)

	fetchNow(t, s)
	fetchNow(t, s)
	fetchNow(t, s)

	assert.Equal(t, 1, rec.Len())
}

func TestSupervisor_SingleInFlightFetch(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	release := make(chan struct{})

	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return domain.Ok(nil, testNow)
	})
	s := newTestSupervisor(domain.ModuleSpec{ID: "n", FetchTimeout: time.Minute}, f, nil, nil)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Trigger(context.Background()) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	s.WaitFetches()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())

	assert.True(t, s.Trigger(context.Background()), "trigger accepted once the fetch finished")
	s.WaitFetches()
}

func TestSupervisor_SuppressesRepeatedErrors(t *testing.T) {
	err := domain.NewFetchError(domain.ErrorRateLimited, testNow, "429 Too Many Requests")
	f := &scriptedFetcher{results: []domain.FetchResult{domain.Failed(err)}}
	pub := &recordingPublisher{}
	spec := domain.ModuleSpec{ID: "w", SuppressErrorsAfter: 2}
	s := newTestSupervisor(spec, f, pub, nil)
	logger := s.logger.(*mockLogger)

	for i := 0; i < 5; i++ {
		fetchNow(t, s)
	}

	assert.Equal(t, 2, pub.Count())
	assert.Len(t, logger.Warnings(), 2)
	assert.Equal(t, 5, s.Failures())

	payload, ok := pub.last.(ports.ModuleError)
	require.True(t, ok)
	assert.Equal(t, "RateLimited", payload.Kind)
}

func TestSupervisor_NewErrorIsReportedAfterSuppression(t *testing.T) {
	first := domain.NewFetchError(domain.ErrorNetwork, testNow, "reset")
	second := domain.NewFetchError(domain.ErrorTimeout, testNow, "deadline")
	f := &scriptedFetcher{results: []domain.FetchResult{
		domain.Failed(first), domain.Failed(first), domain.Failed(first), domain.Failed(second),
	}}
	pub := &recordingPublisher{}
	s := newTestSupervisor(domain.ModuleSpec{ID: "w", SuppressErrorsAfter: 1}, f, pub, nil)

	for i := 0; i < 4; i++ {
		fetchNow(t, s)
	}

	assert.Equal(t, 2, pub.Count())
}

func TestSupervisor_SuccessResetsFailures(t *testing.T) {
	f := &scriptedFetcher{results: []domain.FetchResult{
		domain.Failed(domain.NewFetchError(domain.ErrorNetwork, testNow, "down")),
		domain.Ok(nil, testNow),
	}}
	s := newTestSupervisor(domain.ModuleSpec{ID: "x"}, f, nil, nil)

	fetchNow(t, s)
	require.Equal(t, 1, s.Failures())
	fetchNow(t, s)
	assert.Equal(t, 0, s.Failures())
}

func TestSupervisor_FetcherIgnoringContextTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		<-block
		return domain.Ok(nil, testNow)
	})
	spec := domain.ModuleSpec{ID: "slow", FetchTimeout: 20 * time.Millisecond, ShowErrors: true}
	s := newTestSupervisor(spec, f, nil, nil)

	fetchNow(t, s)

	snap := s.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, domain.ErrorTimeout, snap.Error.Kind)
}

func TestSupervisor_TimedOutFetcherKeepsModuleBusy(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		if calls.Add(1) == 1 {
			<-block
			return domain.Ok(calendarEvents(3), testNow)
		}
		return domain.Failed(domain.NewFetchError(domain.ErrorNetwork, testNow, "down"))
	})
	spec := domain.ModuleSpec{ID: "slow", FetchTimeout: 20 * time.Millisecond, ShowErrors: true}
	s := newTestSupervisor(spec, f, nil, nil)

	fetchNow(t, s)
	assert.False(t, s.Trigger(context.Background()), "first fetcher still running")
	assert.Equal(t, int32(1), calls.Load())

	close(block)
	require.Eventually(t, func() bool {
		return s.Trigger(context.Background())
	}, time.Second, 5*time.Millisecond)
	s.WaitFetches()

	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, s.Snapshot().Total, "late result is dropped")
}

func TestSupervisor_StopCancelsTriggeredFetch(t *testing.T) {
	canceled := make(chan error, 1)
	var calls atomic.Int32
	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		if calls.Add(1) == 1 {
			return domain.Ok(nil, testNow)
		}
		<-ctx.Done()
		canceled <- ctx.Err()
		return domain.Failed(domain.ClassifyError(ctx.Err(), testNow))
	})
	spec := domain.ModuleSpec{ID: "s", ReloadInterval: time.Hour, FetchTimeout: time.Minute}
	s := newTestSupervisor(spec, f, nil, nil)
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return calls.Load() == 1 && s.Trigger(context.Background())
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the triggered fetch")
	}
	s.WaitFetches()
}

func TestSupervisor_PanicBecomesParseError(t *testing.T) {
	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		panic("unexpected token")
	})
	s := newTestSupervisor(domain.ModuleSpec{ID: "p", ShowErrors: true}, f, nil, nil)

	fetchNow(t, s)

	snap := s.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, domain.ErrorParse, snap.Error.Kind)
}

func TestSupervisor_NoMutationAfterStop(t *testing.T) {
	release := make(chan struct{})
	f := ports.FetcherFunc(func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
		<-release
		return domain.Ok(calendarEvents(3), testNow)
	})
	rec := &updateRecorder{}
	s := newTestSupervisor(domain.ModuleSpec{ID: "s", FetchTimeout: time.Minute}, f, nil, rec)

	require.True(t, s.Trigger(context.Background()))
	s.Stop()
	close(release)
	s.WaitFetches()

	snap := s.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Zero(t, snap.Total)
	assert.Zero(t, rec.Len())
	assert.False(t, s.Trigger(context.Background()))
}

func TestSupervisor_ComplimentsRotation(t *testing.T) {
	f := &scriptedFetcher{results: []domain.FetchResult{domain.Ok(fiveCompliments(), testNow)}}
	rec := &updateRecorder{}
	spec := domain.ModuleSpec{ID: "module_2_compliments", Kind: domain.KindCompliments, PageSize: 1}
	s := newTestSupervisor(spec, f, nil, rec)

	fetchNow(t, s)
	for i := 0; i < 3; i++ {
		assert.True(t, s.Rotate())
	}
	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Cursor)
	require.Len(t, snap.Visible, 1)
	assert.Equal(t, "Looking sharp!", snap.Visible[0].Title)

	s.Rotate()
	s.Rotate()
	assert.Equal(t, 0, s.Snapshot().Cursor)
	assert.Equal(t, 6, rec.Len())
}

func TestSupervisor_ChangedContentResetsCursor(t *testing.T) {
	items := fiveCompliments()
	f := &scriptedFetcher{results: []domain.FetchResult{
		domain.Ok(items, testNow),
		domain.Ok(items, testNow),
		domain.Ok(items[:4], testNow),
	}}
	s := newTestSupervisor(domain.ModuleSpec{ID: "c", PageSize: 1}, f, nil, nil)

	fetchNow(t, s)
	s.Rotate()
	s.Rotate()

	fetchNow(t, s)
	assert.Equal(t, 2, s.Snapshot().Cursor, "unchanged content keeps the cursor")

	fetchNow(t, s)
	assert.Equal(t, 0, s.Snapshot().Cursor)
}

func TestSupervisor_RotateEmptyBuffer(t *testing.T) {
	s := newTestSupervisor(domain.ModuleSpec{ID: "e", PageSize: 1}, &scriptedFetcher{results: []domain.FetchResult{domain.Ok(nil, testNow)}}, nil, nil)
	fetchNow(t, s)
	assert.False(t, s.Rotate())
	assert.True(t, s.Snapshot().Empty())
}

func TestSupervisor_DescriptionTrimmedInSnapshotOnly(t *testing.T) {
	item := domain.Item{ID: "1", Description: "A long description of the news"}
	f := &scriptedFetcher{results: []domain.FetchResult{domain.Ok([]domain.Item{item}, testNow)}}
	s := newTestSupervisor(domain.ModuleSpec{ID: "n", LengthDescription: 6}, f, nil, nil)

	fetchNow(t, s)

	snap := s.Snapshot()
	require.Len(t, snap.Visible, 1)
	assert.Equal(t, "A lon…", snap.Visible[0].Description)

	s.mu.Lock()
	stored := s.buffer.Items()[0].Description
	s.mu.Unlock()
	assert.Equal(t, item.Description, stored)
}

func TestSupervisor_StartFetchesImmediately(t *testing.T) {
	f := &scriptedFetcher{results: []domain.FetchResult{domain.Ok(calendarEvents(1), testNow)}}
	rec := &updateRecorder{}
	s := newTestSupervisor(domain.ModuleSpec{ID: "c", ReloadInterval: time.Hour}, f, nil, rec)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return rec.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_FetchTimeout(t *testing.T) {
	tests := []struct {
		name string
		spec domain.ModuleSpec
		want time.Duration
	}{
		{"explicit", domain.ModuleSpec{FetchTimeout: 5 * time.Second, ReloadInterval: time.Second}, 5 * time.Second},
		{"short reload interval", domain.ModuleSpec{ReloadInterval: 10 * time.Second}, 10 * time.Second},
		{"long reload interval", domain.ModuleSpec{ReloadInterval: time.Hour}, DefaultFetchTimeout},
		{"unset", domain.ModuleSpec{}, DefaultFetchTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSupervisor(SupervisorConfig{Spec: tt.spec})
			assert.Equal(t, tt.want, s.fetchTimeout())
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "Grü…", truncateRunes("Grüße aus Berlin", 4))
	assert.Equal(t, "G", truncateRunes("Grüße", 1))
}
