package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// DefaultFetchTimeout bounds a fetch when the module spec sets no timeout.
const DefaultFetchTimeout = 30 * time.Second

// SupervisorConfig holds the dependencies of one module supervisor.
type SupervisorConfig struct {
	Spec    domain.ModuleSpec
	Fetcher ports.Fetcher
	Logger  log.Logger

	// Publisher receives unsuppressed fetch errors. Optional.
	Publisher ports.Publisher

	// Notify is called with the module lock held whenever the rendered
	// state changes. It must not block.
	Notify func(domain.Update)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Supervisor owns one module: its fetcher, refresh timer, content buffer
// and rotation state. Buffer replacement and cursor movement are
// serialized by a single mutex; nothing is shared with other modules.
type Supervisor struct {
	spec      domain.ModuleSpec
	fetcher   ports.Fetcher
	logger    log.Logger
	publisher ports.Publisher
	notify    func(domain.Update)
	now       func() time.Time

	mu           sync.Mutex
	buffer       *Buffer
	rotation     *Rotation
	state        domain.ModuleState
	stopped      bool
	failures     int
	lastReported *domain.FetchError

	inFlight atomic.Bool
	fetches  sync.WaitGroup
	loops    sync.WaitGroup
	runCtx   context.Context
	cancel   context.CancelFunc
}

// NewSupervisor creates a supervisor in the Idle state. Call Start to run it.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(domain.Update) {}
	}
	return &Supervisor{
		spec:      cfg.Spec,
		fetcher:   cfg.Fetcher,
		logger:    logger.With(log.String("module", cfg.Spec.ID), log.String("kind", string(cfg.Spec.Kind))),
		publisher: cfg.Publisher,
		notify:    notify,
		now:       now,
		buffer:    NewBuffer(cfg.Spec.Policy),
		rotation:  NewRotation(cfg.Spec.PageSize),
		state:     domain.ModuleIdle,
	}
}

// ID returns the module instance id.
func (s *Supervisor) ID() string {
	return s.spec.ID
}

// Spec returns the module spec.
func (s *Supervisor) Spec() domain.ModuleSpec {
	return s.spec
}

// Start launches the refresh and rotation loops. The first fetch is
// triggered immediately.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCtx, s.cancel = runCtx, cancel
	s.mu.Unlock()

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		NewRefreshTimer(s.spec.ReloadInterval, s.now).Run(runCtx, func() {
			if !s.Trigger(runCtx) {
				s.logger.Debug("refresh tick skipped, fetch still in flight")
			}
		})
	}()

	if s.spec.PageSize > 0 && s.spec.UpdateInterval > 0 {
		s.loops.Add(1)
		go func() {
			defer s.loops.Done()
			s.rotateLoop(runCtx)
		}()
	}
}

// Stop cancels the loops and any in-flight fetch. It returns once the loops
// have exited; in-flight fetches are abandoned, not awaited, and can no
// longer change the buffer.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.loops.Wait()
}

// Trigger starts a fetch unless one is already in flight. It returns false
// when the trigger was skipped. Once the supervisor is started the fetch
// runs under its run context, so Stop cancels it whatever ctx is; ctx only
// bounds fetches triggered before Start.
func (s *Supervisor) Trigger(ctx context.Context) bool {
	if s.fetcher == nil {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.inFlight.Store(false)
		return false
	}
	if s.runCtx != nil {
		ctx = s.runCtx
	}
	s.state = domain.ModuleFetching
	s.mu.Unlock()

	s.fetches.Add(1)
	go s.fetch(ctx)
	return true
}

// WaitFetches blocks until every started fetch goroutine returned.
func (s *Supervisor) WaitFetches() {
	s.fetches.Wait()
}

func (s *Supervisor) fetch(ctx context.Context) {
	defer s.fetches.Done()

	start := s.now()
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout())
	defer cancel()

	done := s.runFetcher(fctx)
	var res domain.FetchResult
	select {
	case res = <-done:
		defer s.inFlight.Store(false)
	case <-fctx.Done():
		res = domain.Failed(domain.ClassifyError(fmt.Errorf("fetch %s: %w", s.spec.ID, fctx.Err()), s.now()))
		// The module stays in flight until the fetcher returns; its late
		// result is dropped.
		go func() {
			<-done
			s.inFlight.Store(false)
		}()
	}

	if ctx.Err() != nil {
		s.logger.Debug("fetch abandoned", log.Duration("elapsed", s.now().Sub(start)))
		return
	}
	s.apply(res)
}

// runFetcher runs the fetcher on its own goroutine so that a fetcher that
// ignores its context still cannot hold the module past the timeout. The
// returned channel receives exactly one result, when the fetcher returns.
func (s *Supervisor) runFetcher(ctx context.Context) <-chan domain.FetchResult {
	done := make(chan domain.FetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.Failed(domain.NewFetchError(domain.ErrorParse, s.now(), "fetcher panic: %v", r))
			}
		}()
		done <- s.fetcher.Fetch(ctx, s.spec)
	}()
	return done
}

func (s *Supervisor) fetchTimeout() time.Duration {
	if s.spec.FetchTimeout > 0 {
		return s.spec.FetchTimeout
	}
	if s.spec.ReloadInterval > 0 && s.spec.ReloadInterval < DefaultFetchTimeout {
		return s.spec.ReloadInterval
	}
	return DefaultFetchTimeout
}

// apply folds one result into the buffer and notifies on change.
func (s *Supervisor) apply(res domain.FetchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	now := s.now()
	wasLoaded := s.buffer.Loaded()
	prevErr := s.buffer.LastError()

	if res.OK() {
		s.state = domain.ModuleApplying
	} else {
		s.state = domain.ModuleFailed
	}

	changed := s.buffer.Apply(res, now)

	if res.OK() {
		s.failures = 0
		s.lastReported = nil
		if changed {
			s.rotation.Reset()
		}
		s.logger.Debug("fetch applied",
			log.Int("items", s.buffer.Len()),
			log.Int("dropped", res.Dropped),
			log.Int("filtered", s.buffer.LastStats().Total()),
			log.Bool("changed", changed),
		)
	} else {
		s.failures++
		s.reportFailure(res.Err)
	}

	s.state = domain.ModuleIdle

	errorChanged := s.spec.ShowErrors && !prevErr.Same(s.buffer.LastError())
	if changed || errorChanged || !wasLoaded {
		s.notify(domain.Update{ModuleID: s.spec.ID, Snapshot: s.snapshotLocked()})
	}
}

func (s *Supervisor) reportFailure(err *domain.FetchError) {
	if s.spec.SuppressErrorsAfter > 0 && s.failures > s.spec.SuppressErrorsAfter && err.Same(s.lastReported) {
		s.logger.Debug("fetch failed, repeated error suppressed",
			log.String("error_kind", err.Kind.String()),
			log.Int("failures", s.failures),
		)
		return
	}

	s.logger.Warn("fetch failed",
		log.String("error_kind", err.Kind.String()),
		log.String("error", err.Message),
		log.Int("failures", s.failures),
		log.Int("kept_items", s.buffer.Len()),
	)
	s.lastReported = err

	if s.publisher != nil {
		s.publisher.Publish(ports.TopicModuleError, s.spec.ID, ports.ModuleError{
			ModuleID: s.spec.ID,
			Kind:     err.Kind.String(),
			Message:  err.Message,
			Failures: s.failures,
		})
	}
}

func (s *Supervisor) rotateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.spec.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Rotate()
		}
	}
}

// Rotate advances the rotation cursor once and notifies when the visible
// slice moved. It reports whether the cursor advanced.
func (s *Supervisor) Rotate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	_, advanced := s.rotation.Tick(s.buffer.Items(), s.now())
	if advanced {
		s.notify(domain.Update{ModuleID: s.spec.ID, Snapshot: s.snapshotLocked()})
	}
	return advanced
}

// Snapshot returns the current renderable view of the module.
func (s *Supervisor) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Failures returns the number of consecutive failed fetches.
func (s *Supervisor) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Supervisor) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		ModuleID:      s.spec.ID,
		Name:          s.spec.Name,
		Kind:          s.spec.Kind,
		Position:      s.spec.Position,
		Index:         s.spec.Index,
		Header:        s.spec.Header,
		Visible:       prepareVisible(s.rotation.Visible(s.buffer.Items()), s.spec.LengthDescription),
		Cursor:        s.rotation.Cursor(),
		Total:         s.buffer.Len(),
		State:         s.state,
		LastFetchedAt: s.buffer.LastFetchedAt(),
		Loaded:        s.buffer.Loaded(),
	}
	if s.spec.ShowErrors {
		snap.Error = s.buffer.LastError()
	}
	return snap
}

// prepareVisible applies render-time trimming. The buffer keeps full text.
func prepareVisible(items []domain.Item, maxDescription int) []domain.Item {
	if maxDescription <= 0 {
		return items
	}
	for i := range items {
		items[i].Description = truncateRunes(items[i].Description, maxDescription)
	}
	return items
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
