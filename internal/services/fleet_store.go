package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"binsight-backend/internal/metrics"
	"binsight-backend/internal/models"
)

// DefaultRefreshInterval is how often the fleet snapshot is pulled
const DefaultRefreshInterval = 10 * time.Second

var (
	// ErrStaleRefresh is returned when a refresh finished after a newer one was applied
	ErrStaleRefresh = errors.New("refresh superseded by a newer one")
	// ErrStoreClosed is returned when a refresh finished after Close
	ErrStoreClosed = errors.New("fleet store closed")
)

// TelemetrySource provides the full current fleet
type TelemetrySource interface {
	FetchBins(ctx context.Context) ([]models.BinReading, error)
}

// Ticker is the part of time.Ticker the refresh loop needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Snapshot is an immutable view of the fleet at one point in time.
// Bins keep the order the telemetry source returned them in.
type Snapshot struct {
	Version   uint64
	FetchedAt time.Time

	bins  []models.BinReading
	index map[string]int
}

func newSnapshot(bins []models.BinReading, version uint64, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		Version:   version,
		FetchedAt: fetchedAt,
		bins:      make([]models.BinReading, 0, len(bins)),
		index:     make(map[string]int, len(bins)),
	}
	for _, b := range bins {
		if _, dup := s.index[b.BinID]; dup {
			log.Printf("⚠️  Duplicate bin_id %q in telemetry response, keeping first", b.BinID)
			continue
		}
		s.index[b.BinID] = len(s.bins)
		s.bins = append(s.bins, b)
	}
	return s
}

// Len returns the number of bins
func (s *Snapshot) Len() int {
	return len(s.bins)
}

// Bins returns a copy of the bins in source order
func (s *Snapshot) Bins() []models.BinReading {
	out := make([]models.BinReading, len(s.bins))
	copy(out, s.bins)
	return out
}

// Lookup finds a bin by id
func (s *Snapshot) Lookup(binID string) (models.BinReading, bool) {
	i, ok := s.index[binID]
	if !ok {
		return models.BinReading{}, false
	}
	return s.bins[i], true
}

// SortedByFill returns a copy ordered fullest first, ties by bin id
func (s *Snapshot) SortedByFill() []models.BinReading {
	out := s.Bins()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FillPercent != out[j].FillPercent {
			return out[i].FillPercent > out[j].FillPercent
		}
		return out[i].BinID < out[j].BinID
	})
	return out
}

// FleetStore owns the authoritative fleet snapshot and keeps it fresh.
//
// Refresh is the only writer. Every refresh takes a sequence number when it
// starts, and a result is applied only if no newer refresh has been applied
// already, so a slow response can never overwrite a fresher snapshot.
type FleetStore struct {
	source    TelemetrySource
	interval  time.Duration
	newTicker TickerFunc
	now       func() time.Time

	started atomic.Uint64

	mu          sync.RWMutex
	snapshot    *Snapshot
	applied     uint64
	closed      bool
	lastErr     error
	lastSuccess time.Time
	observers   []func(*Snapshot)

	// notifyMu serializes observer delivery; notified is the newest
	// version handed to observers, older snapshots are never delivered after it.
	notifyMu sync.Mutex
	notified uint64

	// afterApply runs between applying a snapshot and notifying observers (tests only)
	afterApply func(*Snapshot)
}

// FleetStoreOption configures a FleetStore
type FleetStoreOption func(*FleetStore)

// WithRefreshInterval overrides DefaultRefreshInterval
func WithRefreshInterval(d time.Duration) FleetStoreOption {
	return func(s *FleetStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker injects the ticker used by Run
func WithTicker(fn TickerFunc) FleetStoreOption {
	return func(s *FleetStore) { s.newTicker = fn }
}

// WithClock injects the clock used to stamp snapshots
func WithClock(now func() time.Time) FleetStoreOption {
	return func(s *FleetStore) { s.now = now }
}

// NewFleetStore creates a store with an empty snapshot
func NewFleetStore(source TelemetrySource, opts ...FleetStoreOption) *FleetStore {
	s := &FleetStore{
		source:    source,
		interval:  DefaultRefreshInterval,
		newTicker: NewTimeTicker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot = newSnapshot(nil, 0, time.Time{})
	return s
}

// Interval returns the refresh period
func (s *FleetStore) Interval() time.Duration {
	return s.interval
}

// Snapshot returns the current snapshot. Never nil.
func (s *FleetStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Version returns the version of the current snapshot
func (s *FleetStore) Version() uint64 {
	return s.Snapshot().Version
}

// LastError returns the error of the most recent failed refresh, nil after a success
func (s *FleetStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastSuccess returns when a snapshot was last applied
func (s *FleetStore) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// Subscribe registers fn to be called with applied snapshots in increasing
// version order. A snapshot superseded before its delivery is skipped.
// fn runs on the refreshing goroutine and must not block.
func (s *FleetStore) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Refresh pulls the whole fleet and replaces the snapshot. On failure the
// previous snapshot is kept and a *FetchError is returned. After Close every
// result, successful or not, is discarded with ErrStoreClosed.
func (s *FleetStore) Refresh(ctx context.Context) error {
	seq := s.started.Add(1)

	bins, err := s.source.FetchBins(ctx)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{Kind: FetchFailure, Op: "refresh", Err: err}
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			metrics.FleetRefreshes.WithLabelValues("closed").Inc()
			return ErrStoreClosed
		}
		if seq > s.applied {
			s.lastErr = fe
		}
		s.mu.Unlock()

		metrics.FleetRefreshes.WithLabelValues(string(fe.Kind)).Inc()
		return fe
	}

	snap := newSnapshot(bins, seq, s.now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.FleetRefreshes.WithLabelValues("closed").Inc()
		return ErrStoreClosed
	}
	if seq <= s.applied {
		s.mu.Unlock()
		metrics.FleetRefreshes.WithLabelValues("stale").Inc()
		return ErrStaleRefresh
	}
	s.snapshot = snap
	s.applied = seq
	s.lastErr = nil
	s.lastSuccess = snap.FetchedAt
	s.mu.Unlock()

	metrics.FleetRefreshes.WithLabelValues("ok").Inc()
	if s.afterApply != nil {
		s.afterApply(snap)
	}
	s.notify(snap)
	return nil
}

// notify hands snap to observers unless a newer snapshot already went out
func (s *FleetStore) notify(snap *Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Version <= s.notified {
		return
	}
	s.notified = snap.Version

	s.mu.RLock()
	observers := make([]func(*Snapshot), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	recordSnapshotGauges(snap)
	for _, fn := range observers {
		fn(snap)
	}
}

// Run refreshes once immediately and then on every tick until ctx is done.
// Refreshes started by Run never overlap; a tick that fires while a fetch
// is in flight is dropped by the ticker.
func (s *FleetStore) Run(ctx context.Context) {
	log.Printf("🔄 Fleet refresh loop started (every %s)", s.interval)

	s.refreshAndLog(ctx)

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Fleet refresh loop stopped")
			return
		case <-ticker.C():
			s.refreshAndLog(ctx)
		}
	}
}

// Close ends the session; results of in-flight refreshes are discarded
func (s *FleetStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = nil
}

func (s *FleetStore) refreshAndLog(ctx context.Context) {
	err := s.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRefresh), errors.Is(err, ErrStoreClosed):
		log.Printf("⏭️  Fleet refresh discarded: %v", err)
	case ctx.Err() != nil:
	default:
		log.Printf("❌ Fleet refresh failed, keeping snapshot v%d: %v", s.Version(), err)
	}
}

func recordSnapshotGauges(snap *Snapshot) {
	counts := CountBySeverity(snap.bins)
	metrics.FleetBins.Set(float64(snap.Len()))
	for _, band := range AllSeverityBands {
		metrics.FleetBinsBySeverity.WithLabelValues(band.String()).Set(float64(counts[band]))
	}
}
