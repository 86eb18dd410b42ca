// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tracedeck/tracedeck/lib/bicp"
	"github.com/tracedeck/tracedeck/lib/clock"
	"github.com/tracedeck/tracedeck/lib/daycache"
	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// LivePollInterval is the fixed cadence of the live-set refresh. It
// is deliberately not configurable: the live set is cheap to list and
// a constant keeps the backend's load predictable across consoles.
const LivePollInterval = 5 * time.Second

// Backend is the slice of the BICP session the loop consumes. It is
// implemented by *bicp.Session; tests substitute a fake. A backend
// that also has Invalidate and Initialize (as *bicp.Session does) is
// torn down and re-handshaken after a transport failure.
type Backend interface {
	ListLiveTraces(ctx context.Context) ([]tracestore.Trace, error)
	ListHistoricalTraces(ctx context.Context, day tracestore.DayKey) ([]tracestore.Trace, error)
	ListTraceDates(ctx context.Context) (bicp.TraceDates, error)
	ClearTraces(ctx context.Context) error
}

// Config holds the loop's collaborators.
type Config struct {
	// Backend issues the RPC calls. Required.
	Backend Backend
	// Store receives every mutation. Required; the loop must be its
	// only writer.
	Store *tracestore.Store
	// Clock drives the poll ticker and supplies "today". If nil,
	// clock.Real() is used.
	Clock clock.Clock
	// Cache, when non-nil, serves past-day expansions from disk and
	// is refilled after backend fetches. Nil disables caching.
	Cache *daycache.Cache
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Loop is the trace sync loop. Create with New, then Start; Close
// stops the poll ticker and the event goroutine deterministically.
type Loop struct {
	backend Backend
	store   *tracestore.Store
	clock   clock.Clock
	cache   *daycache.Cache
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events  chan any
	updates chan struct{}
	done    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   bool

	// Everything below is owned by the event goroutine.
	liveGen uint64
	dateGen uint64
	dayGens map[tracestore.DayKey]uint64

	// loadGen identifies the current combined load (activation or
	// manual refresh-all). Results tagged with an older generation
	// belong to a superseded load and must not touch the counter.
	loadGen uint64

	// initialPending counts the fetches of the current combined load;
	// their failures aggregate into one visible error once the last
	// completes.
	initialPending int
	initialErrs    []error
	initialErr     error
	opError        error

	mu       sync.Mutex
	snapshot Snapshot
}

// Commands posted by the UI.
type expandCmd struct{ day tracestore.DayKey }
type refreshAllCmd struct{}
type clearLiveCmd struct{}

// Fetch completions posted by child goroutines. A non-zero load ties
// the result to the combined load it was issued under; zero marks a
// steady-state fetch (poll, expand).
type liveResult struct {
	gen    uint64
	load   uint64
	traces []tracestore.Trace
	err    error
}

type datesResult struct {
	gen   uint64
	load  uint64
	dates bicp.TraceDates
	err   error
}

type dayResult struct {
	day       tracestore.DayKey
	gen       uint64
	load      uint64
	traces    []tracestore.Trace
	err       error
	fromCache bool
}

type clearResult struct{ err error }

// New creates a stopped loop.
func New(config Config) (*Loop, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("tracesync: Backend is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("tracesync: Store is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		backend: config.Backend,
		store:   config.Store,
		clock:   clk,
		cache:   config.Cache,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan any, 16),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		dayGens: make(map[tracestore.DayKey]uint64),
	}, nil
}

// Start launches the event goroutine, kicks off the initial combined
// load, and starts the live poll ticker. Safe to call once.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.started = true
		go l.run()
	})
}

// Close cancels outstanding calls, stops the poll ticker, and waits
// for the event goroutine to exit. Safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		close(l.done)
	})
	if l.started {
		<-l.stopped
	}
}

// Updates delivers a (coalesced) signal after every state change.
// Readers take the signal and then call Snapshot.
func (l *Loop) Updates() <-chan struct{} { return l.updates }

// Snapshot returns the most recently published view. The contained
// slices are never mutated after publication and may be read freely.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}

// Expand requests a day bucket the operator opened. A day already
// loading or loaded is left alone — a manual refresh is required to
// re-fetch it.
func (l *Loop) Expand(day tracestore.DayKey) { l.post(expandCmd{day: day}) }

// RefreshAll re-fetches the live set, the date list, today's bucket,
// and every currently loaded day. Collapsed (unloaded) days are
// skipped to bound cost to what the operator is looking at.
func (l *Loop) RefreshAll() { l.post(refreshAllCmd{}) }

// ClearLive asks the backend to drop the live set and empties the
// local copy immediately, without waiting for the call to complete.
func (l *Loop) ClearLive() { l.post(clearLiveCmd{}) }

// post hands an event to the loop goroutine, giving up when the loop
// is closed.
func (l *Loop) post(event any) {
	select {
	case l.events <- event:
	case <-l.done:
	}
}

func (l *Loop) run() {
	defer close(l.stopped)

	ticker := l.clock.NewTicker(LivePollInterval)
	defer ticker.Stop()

	l.activate()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.startLiveFetch(0)
			l.publish()
		case event := <-l.events:
			l.handle(event)
		}
	}
}

// activate runs the initial combined load: live set, date list, and
// today's historical bucket, all concurrently.
func (l *Loop) activate() {
	l.beginCombinedLoad()
	l.publish()
}

func (l *Loop) beginCombinedLoad() {
	l.loadGen++
	l.initialPending = 3
	l.initialErrs = nil
	l.startLiveFetch(l.loadGen)
	l.startDatesFetch(l.loadGen)
	l.startDayFetch(l.today(), l.loadGen, false)
}

func (l *Loop) handle(event any) {
	switch e := event.(type) {
	case expandCmd:
		l.handleExpand(e.day)
	case refreshAllCmd:
		l.handleRefreshAll()
	case clearLiveCmd:
		l.handleClearLive()
	case liveResult:
		l.handleLiveResult(e)
	case datesResult:
		l.handleDatesResult(e)
	case dayResult:
		l.handleDayResult(e)
	case clearResult:
		l.handleClearResult(e)
	default:
		l.logger.Warn("dropping unknown loop event", "type", fmt.Sprintf("%T", event))
	}
}

func (l *Loop) handleExpand(day tracestore.DayKey) {
	if !day.Valid() {
		l.logger.Warn("ignoring expand of invalid day", "day", day)
		return
	}
	switch l.store.DayState(day) {
	case tracestore.Loading, tracestore.Loaded:
		// Already satisfied; expansion never re-fetches.
		return
	}
	l.startDayFetch(day, 0, true)
	l.publish()
}

func (l *Loop) handleRefreshAll() {
	today := l.today()
	loaded := l.store.LoadedDays()

	// A manual refresh is a new combined load: its outcome replaces
	// the initial-load error banner.
	l.beginCombinedLoad()
	for _, day := range loaded {
		if day == today {
			continue // already part of the combined load
		}
		l.startDayFetch(day, 0, false)
	}
	l.publish()
}

func (l *Loop) handleClearLive() {
	// Bump the live generation first: any live fetch already in
	// flight predates the clear and must not repopulate the set.
	l.liveGen++
	l.store.ClearLive()

	go func() {
		err := l.backend.ClearTraces(l.ctx)
		l.post(clearResult{err: err})
	}()
	l.publish()
}

func (l *Loop) handleLiveResult(r liveResult) {
	if r.gen != l.liveGen {
		l.logger.Debug("dropping stale live fetch", "gen", r.gen, "current", l.liveGen)
		l.finishCombined(r.load, nil)
		l.publish()
		return
	}
	if r.err != nil {
		l.logger.Warn("live fetch failed", "error", r.err)
		l.finishCombined(r.load, fmt.Errorf("live traces: %w", r.err))
		l.recoverSession(r.err)
		l.publish()
		return
	}
	l.store.ReplaceLive(r.traces)
	l.finishCombined(r.load, nil)
	l.publish()
}

func (l *Loop) handleDatesResult(r datesResult) {
	if r.gen != l.dateGen {
		l.finishCombined(r.load, nil)
		l.publish()
		return
	}
	if r.err != nil {
		l.logger.Warn("date list fetch failed", "error", r.err)
		l.finishCombined(r.load, fmt.Errorf("trace dates: %w", r.err))
		l.recoverSession(r.err)
		l.publish()
		return
	}
	if r.dates.Enabled {
		l.store.SetKnownDates(r.dates.Dates)
	} else {
		// The server has archiving disabled: its date list means
		// nothing. Today is still injected by the store.
		l.logger.Info("historical trace dates disabled by server")
	}
	l.finishCombined(r.load, nil)
	l.publish()
}

func (l *Loop) handleDayResult(r dayResult) {
	if r.gen != l.dayGens[r.day] {
		l.logger.Debug("dropping stale day fetch", "day", r.day, "gen", r.gen)
		l.finishCombined(r.load, nil)
		l.publish()
		return
	}
	if r.err != nil {
		l.logger.Warn("day fetch failed", "day", r.day, "error", r.err)
		l.store.MarkDayFailed(r.day)
		l.finishCombined(r.load, fmt.Errorf("traces for %s: %w", r.day, r.err))
		l.recoverSession(r.err)
		l.publish()
		return
	}

	l.store.ReplaceDay(r.day, r.traces)
	l.finishCombined(r.load, nil)

	// Completed days are immutable server-side; refill the disk
	// cache after a genuine backend fetch.
	if !r.fromCache && r.day != l.today() && l.cache != nil {
		day, traces, savedAt := r.day, r.traces, l.clock.Now().UnixMilli()
		go func() {
			if err := l.cache.Put(day, savedAt, traces); err != nil {
				l.logger.Warn("day cache write failed", "day", day, "error", err)
			}
		}()
	}
	l.publish()
}

func (l *Loop) handleClearResult(r clearResult) {
	if r.err != nil {
		// Surfaced, but the optimistic empty stands: the next poll
		// reflects whatever the backend still holds.
		l.logger.Warn("clear live traces failed", "error", r.err)
		l.opError = fmt.Errorf("clear live traces: %w", r.err)
		l.recoverSession(r.err)
	} else {
		l.opError = nil
	}
	l.publish()
}

// startLiveFetch issues a live-set fetch under a fresh generation,
// superseding any still in flight.
func (l *Loop) startLiveFetch(load uint64) {
	l.liveGen++
	gen := l.liveGen
	go func() {
		traces, err := l.backend.ListLiveTraces(l.ctx)
		l.post(liveResult{gen: gen, load: load, traces: traces, err: err})
	}()
}

func (l *Loop) startDatesFetch(load uint64) {
	l.dateGen++
	gen := l.dateGen
	go func() {
		dates, err := l.backend.ListTraceDates(l.ctx)
		l.post(datesResult{gen: gen, load: load, dates: dates, err: err})
	}()
}

// startDayFetch marks the bucket loading and fetches it. When
// tryCache is set and the day is in the past, the disk cache is
// consulted before the backend.
func (l *Loop) startDayFetch(day tracestore.DayKey, load uint64, tryCache bool) {
	l.store.MarkDayLoading(day)
	l.dayGens[day]++
	gen := l.dayGens[day]

	useCache := tryCache && day != l.today() && l.cache != nil
	go func() {
		if useCache {
			if traces, ok := l.cache.Get(day); ok {
				l.post(dayResult{day: day, gen: gen, load: load, traces: traces, fromCache: true})
				return
			}
		}
		traces, err := l.backend.ListHistoricalTraces(l.ctx, day)
		l.post(dayResult{day: day, gen: gen, load: load, traces: traces, err: err})
	}()
}

// finishCombined records one combined-load completion. When the last
// one lands, the collected failures (if any) become the single
// aggregated error the UI banners. Steady-state fetches carry load
// zero and results from a superseded load carry an older generation;
// neither may touch the counter, or a refresh issued mid-load would
// see it hit zero early and recompute the error from partial results.
func (l *Loop) finishCombined(load uint64, err error) {
	if load == 0 || load != l.loadGen {
		return
	}
	if err != nil {
		l.initialErrs = append(l.initialErrs, err)
	}
	l.initialPending--
	if l.initialPending > 0 {
		return
	}
	if len(l.initialErrs) > 0 {
		l.initialErr = errors.Join(l.initialErrs...)
	} else {
		l.initialErr = nil
	}
	l.initialErrs = nil
}

// sessionResetter is the optional teardown surface of the backend.
// *bicp.Session implements it.
type sessionResetter interface {
	Invalidate(err error)
	Initialize(ctx context.Context) error
}

// recoverSession tears the session down after a transport failure and
// kicks an asynchronous re-handshake. A fetch that fails with
// ErrNotReady (the session is already torn down) retries the
// handshake too, so a console that lost its backend keeps attempting
// to reconnect on the poll cadence.
func (l *Loop) recoverSession(err error) {
	resetter, ok := l.backend.(sessionResetter)
	if !ok {
		return
	}

	var transport *bicp.TransportError
	switch {
	case errors.As(err, &transport):
		resetter.Invalidate(err)
	case errors.Is(err, bicp.ErrNotReady):
	default:
		return
	}

	go func() {
		if err := resetter.Initialize(l.ctx); err != nil {
			l.logger.Warn("reconnect handshake failed", "error", err)
		}
	}()
}

func (l *Loop) today() tracestore.DayKey {
	return tracestore.DayOf(l.clock.Now())
}
