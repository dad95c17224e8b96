package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

func testPaths() Paths {
	return Paths{
		Members:     filepath.Join("testdata", "members.csv"),
		Territories: filepath.Join("testdata", "territories.csv"),
		Steps:       filepath.Join("testdata", "steps.json"),
		Background:  filepath.Join("testdata", "background.geojson"),
	}
}

func TestLoad(t *testing.T) {
	ds, err := Load(testPaths(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(ds.Members) != 10 {
		t.Errorf("len(Members) = %d, want 10", len(ds.Members))
	}
	if len(ds.Territories) != 6 {
		t.Errorf("len(Territories) = %d, want 6", len(ds.Territories))
	}
	if len(ds.Steps) != 2 {
		t.Errorf("len(Steps) = %d, want 2", len(ds.Steps))
	}
	if ds.Width != DefaultWidth || ds.Height != DefaultHeight {
		t.Errorf("size = %vx%v, want %vx%v", ds.Width, ds.Height, DefaultWidth, DefaultHeight)
	}
	if ds.Background == nil || len(ds.Background.Features) != 1 {
		t.Fatal("background not loaded")
	}

	e := DefaultExtent(ds.Width, ds.Height)
	for _, tr := range ds.Territories {
		if ds.IsReserved(tr.ID) {
			continue
		}
		a := tr.Anchor
		if a[0] < e.Min[0]-1e-6 || a[0] > e.Max[0]+1e-6 || a[1] < e.Min[1]-1e-6 || a[1] > e.Max[1]+1e-6 {
			t.Errorf("%s anchor %v outside extent %v", tr.ID, a, e)
		}
	}

	// East is right, north is up.
	bos, _ := ds.Territory("BOS")
	lal, _ := ds.Territory("LAL")
	mem, _ := ds.Territory("MEM")
	if bos.Anchor[0] <= lal.Anchor[0] {
		t.Errorf("BOS x %v should be right of LAL x %v", bos.Anchor[0], lal.Anchor[0])
	}
	if bos.Anchor[1] >= mem.Anchor[1] {
		t.Errorf("BOS y %v should be above MEM y %v", bos.Anchor[1], mem.Anchor[1])
	}
}

func TestLoadOptionalFiles(t *testing.T) {
	p := testPaths()
	p.Steps, p.Background = "", ""
	ds, err := Load(p, LoadOptions{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ds.Background != nil || len(ds.Steps) != 0 {
		t.Error("optional files should stay empty")
	}
}

func TestLoadErrors(t *testing.T) {
	p := testPaths()
	p.Members = filepath.Join("testdata", "missing.csv")
	if _, err := Load(p, LoadOptions{}); !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want FILE_NOT_FOUND", err)
	}
	if _, err := Load(Paths{}, LoadOptions{}); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("Load(empty) error = %v, want INVALID_INPUT", err)
	}
	p = testPaths()
	p.Members = "../../etc/passwd"
	if _, err := Load(p, LoadOptions{}); err == nil {
		t.Error("Load(traversal) should fail")
	}
}

func TestNewUnknownEntity(t *testing.T) {
	territories := []Territory{{ID: "A", Fill: "#fff", Stroke: "#fff"}}
	tests := []struct {
		name    string
		members []Member
		steps   []Step
	}{
		{"member territory", []Member{{ID: "m", Territory: "B"}}, nil},
		{"step member", []Member{{ID: "m", Territory: "A"}}, GroupSteps([]Transaction{{Date: "d", Moves: []Move{{MemberID: "x", From: "A", To: "FA"}}}})},
		{"step territory", []Member{{ID: "m", Territory: "A"}}, GroupSteps([]Transaction{{Date: "d", Moves: []Move{{MemberID: "m", From: "A", To: "Z"}}}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.members, territories, tt.steps, nil, LoadOptions{})
			if !errs.Is(err, errs.ErrCodeUnknownEntity) {
				t.Errorf("New() error = %v, want UNKNOWN_ENTITY", err)
			}
		})
	}
}

func TestResized(t *testing.T) {
	ds, err := Load(testPaths(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	small := ds.Resized(480, 300)
	if small.Width != 480 || small.Height != 300 {
		t.Errorf("size = %vx%v, want 480x300", small.Width, small.Height)
	}
	a, _ := ds.Territory("BOS")
	b, _ := small.Territory("BOS")
	if a.Anchor == b.Anchor {
		t.Error("resizing did not move anchors")
	}
	if ds.Width != DefaultWidth {
		t.Error("Resized modified the receiver")
	}
}

func TestFitMercator(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}
	e := Extent{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}
	p := FitMercator(b, e)

	sw := p.Project(b.Min)
	ne := p.Project(b.Max)
	// Mercator stretches latitude, so the height is the binding side.
	if math.Abs(sw[1]-100) > 1e-6 {
		t.Errorf("south-west = %v, want on the bottom edge", sw)
	}
	if ne[0] <= sw[0] || ne[1] >= sw[1] {
		t.Errorf("north-east %v should be right of and above south-west %v", ne, sw)
	}
	c := p.Project(orb.Point{0, 0})
	if math.Abs(c[0]-50) > 1e-9 || math.Abs(c[1]-50) > 1e-9 {
		t.Errorf("center = %v, want [50 50]", c)
	}
}

func TestPathsHash(t *testing.T) {
	dir := t.TempDir()
	m := filepath.Join(dir, "m.csv")
	if err := os.WriteFile(m, []byte("id,team_id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := Paths{Members: m}
	h1, err := p.Hash()
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	h2, _ := p.Hash()
	if h1 != h2 {
		t.Error("Hash() is not stable")
	}
	if err := os.WriteFile(m, []byte("id,team_id\np,A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if h3, _ := p.Hash(); h3 == h1 {
		t.Error("Hash() did not change with the content")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Members:     filepath.Join(dir, "members.csv"),
		Territories: filepath.Join(dir, "territories.csv"),
	}
	write := func(path, body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(p.Territories, "id,longitude,latitude\nA,1,2\n")
	write(p.Members, "id,team_id,salary\nm1,A,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loaded := make(chan *Dataset, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, LoadOptions{}, 20*time.Millisecond, func(ds *Dataset, err error) {
			if err == nil {
				loaded <- ds
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write(p.Members, "id,team_id,salary\nm1,A,1\nm2,A,2\n")

	select {
	case ds := <-loaded:
		if len(ds.Members) != 2 {
			t.Errorf("reloaded %d members, want 2", len(ds.Members))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
