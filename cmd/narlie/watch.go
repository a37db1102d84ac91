package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/kolkov/narlie"
	"github.com/kolkov/narlie/internal/observability"
)

// rebuildInterval bounds how often a changing file is recompiled.
const rebuildInterval = 250 * time.Millisecond

// watch compiles and runs path, then does so again every time the file
// is written, until ctx is cancelled. Compile and runtime errors are
// reported and watching continues.
func watch(ctx context.Context, path string, cfg *narlie.Config, out io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(rebuildInterval), 1)
	rebuild(ctx, path, cfg, out)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			observability.WatchEventsTotal.Inc()
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			drain(w.Events)
			rebuild(ctx, path, cfg, out)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "path", path, "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// drain discards events queued while waiting for the limiter.
func drain(events <-chan fsnotify.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func rebuild(ctx context.Context, path string, cfg *narlie.Config, out io.Writer) {
	slog.Debug("rebuilding", "path", path)
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(out, "narlie: %v\n", err)
		return
	}
	prog, err := narlie.CompileContext(ctx, string(src), cfg)
	if err != nil {
		fmt.Fprintf(out, "narlie: %v\n", err)
		return
	}

	bw := bufio.NewWriter(out)
	run := *cfg
	run.Stdout = bw
	_, err = prog.Run(ctx, &run)
	_ = bw.Flush()
	if err != nil {
		fmt.Fprintf(out, "narlie: %v\n", err)
	}
}
