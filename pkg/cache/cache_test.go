package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set() error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get() = %q, %v, %v, want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	key := NewDefaultKeyer().FrameKey("abc", FrameKeyOpts{Step: 1, Format: "svg"})

	if _, hit, _ := c.Get(ctx, key); hit {
		t.Fatal("empty cache should miss")
	}
	if err := c.Set(ctx, key, []byte("<svg/>"), time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "<svg/>" {
		t.Errorf("Get() = %q, %v, %v, want <svg/> hit", data, hit, err)
	}
	if !strings.Contains(c.path(key), "frame") {
		t.Errorf("path(%q) = %q, want it under frame/", key, c.path(key))
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("Get() after Delete should miss")
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}

	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl should hit")
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	k := NewDefaultKeyer()
	_ = c.Set(ctx, k.FrameKey("a", FrameKeyOpts{}), []byte("1"), 0)
	_ = c.Set(ctx, k.NetworkKey("a", NetworkKeyOpts{}), []byte("2"), 0)

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if _, hit, _ := c.Get(ctx, k.FrameKey("a", FrameKeyOpts{})); hit {
		t.Error("Get() after Clear should miss")
	}
}

func TestCompressed(t *testing.T) {
	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	c, err := NewCompressed(fc)
	if err != nil {
		t.Fatalf("NewCompressed() error: %v", err)
	}
	defer c.Close()

	value := []byte(strings.Repeat(`<path d="M0,0L1,1Z"/>`, 200))
	if err := c.Set(ctx, "k", value, time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	raw, _, _ := fc.Get(ctx, "k")
	if len(raw) >= len(value) {
		t.Errorf("stored %d bytes, want fewer than %d", len(raw), len(value))
	}
	got, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(got) != string(value) {
		t.Errorf("Get() round trip failed: hit=%v err=%v", hit, err)
	}

	_ = fc.Set(ctx, "garbage", []byte("not zstd"), 0)
	if _, hit, err := c.Get(ctx, "garbage"); hit || err != nil {
		t.Errorf("Get(garbage) = %v, %v, want miss", hit, err)
	}
	if _, hit, _ := fc.Get(ctx, "garbage"); hit {
		t.Error("undecodable entry should be dropped")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("len(Hash) = %d, want 64", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	base := FrameKeyOpts{Metric: "salary", Step: 2, Progress: 0.5, Direction: "down", Format: "svg", Width: 960, Height: 600}
	other := base
	other.Progress = 0.6

	if k.FrameKey("h", base) != k.FrameKey("h", base) {
		t.Error("FrameKey should be deterministic")
	}
	if k.FrameKey("h", base) == k.FrameKey("h", other) {
		t.Error("different progress should produce different keys")
	}
	if k.FrameKey("h", base) == k.FrameKey("h2", base) {
		t.Error("different datasets should produce different keys")
	}
	if nk := k.NetworkKey("h", NetworkKeyOpts{Step: 2, Format: "svg"}); !strings.HasPrefix(nk, "network:") {
		t.Errorf("NetworkKey = %q, want network: prefix", nk)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(nil, "v1:")
	key := scoped.FrameKey("h", FrameKeyOpts{})
	if want := "v1:" + NewDefaultKeyer().FrameKey("h", FrameKeyOpts{}); key != want {
		t.Errorf("FrameKey = %q, want %q", key, want)
	}
	if KeyType(key) != KeyTypeFrame {
		t.Errorf("KeyType(%q) = %q, want frame", key, KeyType(key))
	}
	if KeyType(scoped.NetworkKey("h", NetworkKeyOpts{})) != KeyTypeNetwork {
		t.Error("KeyType should see through the scope prefix")
	}
	if KeyType("unrelated") != "other" {
		t.Error("KeyType(unrelated) should be other")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	err := Retryable(ErrUnavailable)
	if !IsRetryable(err) {
		t.Error("IsRetryable should see the wrapper")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapper should unwrap to the cause")
	}
	if IsRetryable(ErrUnavailable) {
		t.Error("bare errors are not retryable")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	retryDelay = time.Millisecond
	ctx := context.Background()

	tests := []struct {
		name      string
		fail      int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, true, 1, false},
		{"recovers", 2, true, 3, false},
		{"gives up", 5, true, 3, true},
		{"permanent", 5, false, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(ctx, func() error {
				calls++
				if calls <= tt.fail {
					if tt.retryable {
						return Retryable(ErrUnavailable)
					}
					return ErrUnavailable
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error { return Retryable(ErrUnavailable) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
