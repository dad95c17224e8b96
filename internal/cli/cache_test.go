package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/rostermap/pkg/cache"
)

func TestCacheDir(t *testing.T) {
	dir, err := cache.DefaultDir()
	if err != nil {
		t.Skipf("no user cache dir: %v", err)
	}
	if !strings.HasSuffix(dir, appName) {
		t.Errorf("DefaultDir() = %q, should end with %q", dir, appName)
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	keyer := newKeyer()
	for i := range 3 {
		key := keyer.FrameKey("hash", cache.FrameKeyOpts{Step: i, Format: "svg"})
		if err := fc.Set(ctx, key, []byte("<svg/>"), 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := clearCache(dir)
	if err != nil {
		t.Fatalf("clearCache() error: %v", err)
	}
	if n != 3 {
		t.Errorf("clearCache() = %d, want 3", n)
	}
	if n, _ := clearCache(dir); n != 0 {
		t.Errorf("second clearCache() = %d, want 0", n)
	}
}

func TestClearCacheMissingDir(t *testing.T) {
	n, err := clearCache(filepath.Join(t.TempDir(), "missing"))
	if err != nil || n != 0 {
		t.Errorf("clearCache(missing) = %d, %v, want 0, nil", n, err)
	}
}
