// internal/agent/run.go
package agent

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/config"
)

// Run drives the agent on its configured interval until the context is
// cancelled. The config file is watched and a changed file swaps in a fresh
// agent between cycles.
func Run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Watch the directory, not the file: editors and atomic writers replace
	// the file, which drops a watch set on the path itself.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(cfgPath)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	log.Printf("Agent starting: hostname=%s endpoint=%s interval=%s",
		cfg.Hostname, cfg.Endpoint, cfg.Interval)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start.
	if err := a.Cycle(ctx); err != nil {
		log.Printf("Cycle error: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Agent shutting down")
			return nil
		case <-ticker.C:
			if err := a.Cycle(ctx); err != nil {
				log.Printf("Cycle error: %v", err)
			}
		case ev := <-watcher.Events:
			if ev.Name != cfgPath || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			next, err := reload(cfgPath, a)
			if err != nil {
				log.Printf("WARNING: config reload failed, keeping previous: %v", err)
				continue
			}
			if next.cfg.Interval != cfg.Interval {
				ticker.Reset(next.cfg.Interval)
			}
			cfg = next.cfg
			a = next
			log.Printf("Config reloaded: endpoint=%s interval=%s", cfg.Endpoint, cfg.Interval)
		case err := <-watcher.Errors:
			log.Printf("WARNING: config watcher: %v", err)
		}
	}
}

// reload builds a replacement agent and only then retires the old one.
func reload(cfgPath string, old *Agent) (*Agent, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	next, err := New(cfg)
	if err != nil {
		return nil, err
	}
	old.Close()
	return next, nil
}
