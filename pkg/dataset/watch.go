package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay is how long Watch waits for writes to settle.
const DefaultReloadDelay = 250 * time.Millisecond

// Watch reloads the dataset whenever one of its files changes and passes
// the result to onLoad. Bursts of events within delay cause a single
// reload. Watch blocks until ctx is done.
//
// Parent directories are watched instead of the files themselves so that
// editors replacing a file by rename are picked up.
func Watch(ctx context.Context, p Paths, opts LoadOptions, delay time.Duration, onLoad func(*Dataset, error)) error {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	var files, dirs []string
	for _, f := range p.Files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("watch %s: %w", f, err)
		}
		files = append(files, abs)
		if d := filepath.Dir(abs); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	debounced := debounce.New(delay)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		onLoad(Load(p, opts))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !slices.Contains(files, name) {
				continue
			}
			debounced(reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onLoad(nil, fmt.Errorf("watch: %w", err))
		}
	}
}
