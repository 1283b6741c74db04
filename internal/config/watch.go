package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces the event burst an atomic save produces (create +
// one or more writes on a fresh inode) into a single reload.
const settleDelay = 100 * time.Millisecond

// Watch monitors the config file at path and calls onChange with each
// successfully reloaded Config. Reloads go through Load, so defaults and
// validation apply; a reload that fails to parse or validate is logged and
// onChange is not called, leaving the previous config in effect. Watch
// blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	settle := time.NewTimer(settleDelay)
	stopSettle(settle)
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			stopSettle(settle)
			settle.Reset(settleDelay)

		case <-settle.C:
			// An atomic save replaces the inode; the old watch dies with
			// it, so re-arm before reading.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload rejected, keeping previous config",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded",
				"path", path,
				"collect_interval", cfg.Server.CollectInterval,
				"alert_rules", len(cfg.Server.Alerts.Rules),
				"cert_endpoints", len(cfg.Server.Certs.Endpoints),
			)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// stopSettle stops the timer and drains a pending fire so Reset re-arms it
// cleanly.
func stopSettle(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
