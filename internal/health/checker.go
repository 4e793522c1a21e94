// Package health tracks the readiness of the engine's external dependencies.
//
// Each dependency registers a named probe. The checker runs all probes on an
// interval; a probe must fail FailThreshold consecutive times before its
// dependency is reported unready, and a single success recovers it. Readiness
// is the conjunction of all probes.
package health

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds readiness check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// ProbeFunc checks one dependency, returning nil when it is usable.
type ProbeFunc func(ctx context.Context) error

type probe struct {
	name  string
	check ProbeFunc
}

// Status is the latest observation for one dependency.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic dependency probes and aggregates readiness.
type Checker struct {
	probes []probe
	cfg    Config
	logger *zap.Logger

	mu         sync.RWMutex
	statuses   map[string]Status
	failCounts map[string]int
}

// New creates a Checker. Probes are registered with AddProbe before Start.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		cfg:        cfg,
		logger:     logger,
		statuses:   make(map[string]Status),
		failCounts: make(map[string]int),
	}
}

// AddProbe registers a named dependency probe. Until its first run the
// dependency is considered healthy, so a slow first check does not block
// startup.
func (c *Checker) AddProbe(name string, fn ProbeFunc) {
	c.probes = append(c.probes, probe{name: name, check: fn})
	c.mu.Lock()
	c.statuses[name] = Status{Name: name, Healthy: true}
	c.mu.Unlock()
}

// Start runs the probe loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll runs every registered probe once, concurrently.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, p := range c.probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			err := p.check(probeCtx)
			cancel()

			now := time.Now().UTC()

			c.mu.Lock()
			prevCount := c.failCounts[p.name]
			if err == nil {
				c.failCounts[p.name] = 0
			} else {
				c.failCounts[p.name]++
			}
			count := c.failCounts[p.name]

			st := Status{Name: p.name, Healthy: count < c.cfg.FailThreshold, CheckedAt: now}
			if err != nil {
				st.Error = err.Error()
			}
			c.statuses[p.name] = st
			c.mu.Unlock()

			switch {
			case err == nil && prevCount >= c.cfg.FailThreshold:
				c.logger.Info("health: dependency recovered", zap.String("probe", p.name))
			case err != nil && count == c.cfg.FailThreshold:
				c.logger.Warn("health: dependency unready",
					zap.String("probe", p.name),
					zap.Int("fail_count", count),
					zap.Error(err),
				)
			}
		}(p)
	}

	wg.Wait()
}

// Ready reports whether every dependency is currently healthy.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, st := range c.statuses {
		if !st.Healthy {
			return false
		}
	}
	return true
}

// Snapshot returns the latest status of every probe, sorted by name.
func (c *Checker) Snapshot() []Status {
	c.mu.RLock()
	out := make([]Status, 0, len(c.statuses))
	for _, st := range c.statuses {
		out = append(out, st)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
