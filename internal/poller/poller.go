// Package poller refreshes aggregate service health and the session list on a
// fixed cadence.
//
// Each tick runs three independent fetches concurrently: frontend health,
// backend health and the session list. A failing fetch is logged and recorded
// in Health.LastErrors. It never blocks the other fetches and never stops the
// next tick.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/session"
)

const (
	// DefaultInterval is the cadence between ticks.
	DefaultInterval = 10 * time.Second

	// DefaultFetchTimeout bounds each individual fetch.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultSessionLimit is the page size requested for the session list.
	DefaultSessionLimit = 50
)

// Fetch names used as keys of Health.LastErrors.
const (
	FetchFrontend = "frontend"
	FetchBackend  = "backend"
	FetchSessions = "sessions"
)

// Source is the subset of the API client the poller reads from.
type Source interface {
	GetFrontendStatus(ctx context.Context) (*api.ServiceStatus, error)
	GetBackendStatus(ctx context.Context) (*api.ServiceStatus, error)
	ListSessions(ctx context.Context, limit int) ([]api.Session, error)
}

// Health is the aggregate status observed by the most recent ticks.
type Health struct {
	// FrontendRunning is the last successfully fetched frontend state.
	FrontendRunning bool

	// BackendRunning is the last successfully fetched backend state.
	BackendRunning bool

	// SessionCount is the number of sessions in the last successful list.
	SessionCount int

	// LastPolledAt is when the most recent tick finished.
	LastPolledAt time.Time

	// Ticks counts completed ticks.
	Ticks int

	// LastErrors holds the error message of each fetch that failed on the
	// most recent tick, keyed by fetch name.
	LastErrors map[string]string
}

// Options configures a Poller.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	SessionLimit int

	// OnTick is called after every tick with a copy of the Health.
	OnTick func(Health)
}

// Poller periodically refreshes a Registry from a Source.
type Poller struct {
	source   Source
	registry *session.Registry
	opts     Options

	mu     sync.RWMutex
	health Health

	// intervals carries cadence changes into a running Run loop.
	intervals chan time.Duration
}

// New creates a Poller. Zero option values take the package defaults.
func New(source Source, registry *session.Registry, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.SessionLimit <= 0 {
		opts.SessionLimit = DefaultSessionLimit
	}
	return &Poller{
		source:    source,
		registry:  registry,
		opts:      opts,
		intervals: make(chan time.Duration, 1),
	}
}

// Run ticks immediately and then every Interval until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: ctx.Err() once cancelled
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		case d := <-p.intervals:
			ticker.Reset(d)
			log.Debug("Poll interval changed", "interval", d)
		}
	}
}

// SetInterval changes the cadence of a running (or future) Run loop. Only the
// latest pending value is kept; non-positive values are ignored.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.opts.Interval = d
	p.mu.Unlock()

	select {
	case <-p.intervals:
	default:
	}
	select {
	case p.intervals <- d:
	default:
	}
}

// Interval returns the current tick cadence.
func (p *Poller) Interval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opts.Interval
}

// Tick runs one round of the three fetches and waits for all of them.
func (p *Poller) Tick(ctx context.Context) Health {
	var (
		mu       sync.Mutex
		errs     = make(map[string]string)
		frontend *api.ServiceStatus
		backend  *api.ServiceStatus
		sessions []api.Session
		listed   bool
	)
	record := func(name string, err error) {
		log.Warn("Status poll failed", "fetch", name, "err", err)
		mu.Lock()
		errs[name] = err.Error()
		mu.Unlock()
	}

	// Goroutines never return an error so one failure cannot cancel the rest.
	g := new(errgroup.Group)
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
		s, err := p.source.GetFrontendStatus(fctx)
		if err != nil {
			record(FetchFrontend, err)
			return nil
		}
		frontend = s
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
		s, err := p.source.GetBackendStatus(fctx)
		if err != nil {
			record(FetchBackend, err)
			return nil
		}
		backend = s
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
		list, err := p.source.ListSessions(fctx, p.opts.SessionLimit)
		if err != nil {
			record(FetchSessions, err)
			return nil
		}
		sessions, listed = list, true
		return nil
	})
	_ = g.Wait()

	if listed {
		p.registry.UpsertAll(sessions)
	}

	p.mu.Lock()
	if frontend != nil {
		p.health.FrontendRunning = frontend.Running
	}
	if backend != nil {
		p.health.BackendRunning = backend.Running
	}
	if listed {
		p.health.SessionCount = len(sessions)
	}
	p.health.LastPolledAt = time.Now()
	p.health.Ticks++
	p.health.LastErrors = errs
	h := p.copyHealthLocked()
	p.mu.Unlock()

	log.Debug("Status poll complete", "frontend", h.FrontendRunning, "backend", h.BackendRunning, "sessions", h.SessionCount, "failures", len(errs))
	if p.opts.OnTick != nil {
		p.opts.OnTick(h)
	}
	return h
}

// Health returns a copy of the latest aggregate status.
func (p *Poller) Health() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyHealthLocked()
}

func (p *Poller) copyHealthLocked() Health {
	h := p.health
	h.LastErrors = make(map[string]string, len(p.health.LastErrors))
	for k, v := range p.health.LastErrors {
		h.LastErrors[k] = v
	}
	return h
}
