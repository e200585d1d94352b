package ops

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"toucan/internal/risk"
	"toucan/internal/schema"
	"toucan/internal/state"
)

// RuntimeConfig holds the risk limits that may be swapped while the engine runs. It is a
// risk.RiskManager checking against the latest limits.
type RuntimeConfig struct {
	limits atomic.Value // *risk.Limits
}

var _ risk.RiskManager = (*RuntimeConfig)(nil)

// NewRuntimeConfig starts with cfg.
func NewRuntimeConfig(cfg risk.Config) *RuntimeConfig {
	r := &RuntimeConfig{}
	r.SetRisk(cfg)
	return r
}

// Risk returns the active limits.
func (r *RuntimeConfig) Risk() risk.Config {
	return r.current().Config()
}

// SetRisk swaps the active limits.
func (r *RuntimeConfig) SetRisk(cfg risk.Config) {
	r.limits.Store(risk.NewLimits(cfg))
}

func (r *RuntimeConfig) current() *risk.Limits {
	return r.limits.Load().(*risk.Limits)
}

func (r *RuntimeConfig) Check(s *state.EngineState, cancels []schema.OrderRequestCancel, opens []schema.OrderRequestOpen) risk.CheckResult {
	return r.current().Check(s, cancels, opens)
}

// Reload reads the risk section of path and swaps it in. Invalid limits leave the active
// ones untouched.
func (r *RuntimeConfig) Reload(path string) error {
	cfg, err := LoadRisk(path)
	if err != nil {
		return err
	}
	r.SetRisk(cfg)
	return nil
}

// Watch takes the modification time of path, then reloads it in the background every
// time that changes until ctx is done. The returned channel closes when watching stops.
func (r *RuntimeConfig) Watch(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = time.Second
	}
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.watch(ctx, path, interval, lastMod)
	}()
	return done
}

func (r *RuntimeConfig) watch(ctx context.Context, path string, interval time.Duration, lastMod time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("stat config %s, err: %+v", path, err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			if err := r.Reload(path); err != nil {
				logs.Errorf("reload risk config %s, err: %+v", path, err)
				continue
			}
			logs.Infof("risk config reloaded, version: %d", r.Risk().Version)
		}
	}
}
