package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
)

func testPaths() dataset.Paths {
	return dataset.Paths{
		Members:     "testdata/members.csv",
		Territories: "testdata/territories.csv",
		Steps:       "testdata/steps.json",
		Background:  "testdata/background.geojson",
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr errs.Code
	}{
		{"defaults", func(*Options) {}, ""},
		{"initial step", func(o *Options) { o.Step = InitialStep }, ""},
		{"missing data", func(o *Options) { o.Data = dataset.Paths{} }, errs.ErrCodeInvalidInput},
		{"bad metric", func(o *Options) { o.Metric = "ppg" }, errs.ErrCodeInvalidMetric},
		{"bad format", func(o *Options) { o.Format = "gif" }, errs.ErrCodeInvalidFormat},
		{"bad direction", func(o *Options) { o.Direction = "sideways" }, errs.ErrCodeInvalidInput},
		{"bad step", func(o *Options) { o.Step = -2 }, errs.ErrCodeInvalidInput},
		{"too many frames", func(o *Options) { o.Frames = MaxFrames + 1 }, errs.ErrCodeInvalidInput},
		{"bad map color", func(o *Options) { o.Map.Fill = "grey" }, errs.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options{Data: testPaths()}
			tt.modify(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if !errs.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %s", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var o Options
	o.SetDefaults()
	if o.Metric != "salary" || o.Width != DefaultWidth || o.Seed != DefaultSeed || o.Format != "svg" || o.Direction != "down" {
		t.Errorf("SetDefaults() = %+v", o)
	}
	if o.Map.Fill == "" || o.Logger == nil {
		t.Error("SetDefaults() should fill map style and logger")
	}

	so := o.SceneOptions()
	if so.Packing.Seed != DefaultSeed || so.Voronoi.Seed != DefaultSeed || so.Metric != "salary" {
		t.Errorf("SceneOptions() = %+v", so)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"rostermap.toml": "metric = \"vorp\"\nwidth = 1200\n\n[data]\nmembers = \"m.csv\"\nterritories = \"/abs/t.csv\"\n\n[map]\nfill = \"#dddddd\"\nopacity = 0.5\n",
		"rostermap.yaml": "metric: vorp\nwidth: 1200\ndata:\n  members: m.csv\n  territories: /abs/t.csv\nmap:\n  fill: \"#dddddd\"\n  opacity: 0.5\n",
		"rostermap.json": `{"metric":"vorp","width":1200,"data":{"members":"m.csv","territories":"/abs/t.csv"},"map":{"fill":"#dddddd","opacity":0.5}}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			o, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error: %v", err)
			}
			if o.Metric != "vorp" || o.Width != 1200 || o.Map.Fill != "#dddddd" || o.Map.Opacity != 0.5 {
				t.Errorf("LoadConfig() = %+v", o)
			}
			if want := filepath.Join(dir, "m.csv"); o.Data.Members != want {
				t.Errorf("Data.Members = %q, want %q", o.Data.Members, want)
			}
			if o.Data.Territories != "/abs/t.csv" {
				t.Errorf("Data.Territories = %q, want /abs/t.csv", o.Data.Territories)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
		want errs.Code
	}{
		{"missing", filepath.Join(dir, "nope.toml"), errs.ErrCodeFileNotFound},
		{"unknown toml key", write("a.toml", "colour = \"red\"\n"), errs.ErrCodeInvalidFormat},
		{"unknown yaml key", write("b.yaml", "colour: red\n"), errs.ErrCodeInvalidFormat},
		{"bad toml", write("c.toml", "metric = \n"), errs.ErrCodeInvalidFormat},
		{"extension", write("d.ini", "metric=vorp\n"), errs.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(tt.path); !errs.Is(err, tt.want) {
				t.Errorf("LoadConfig() = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()
	if got := FindConfig(dir); got != "" {
		t.Errorf("FindConfig(empty) = %q", got)
	}
	yml := filepath.Join(dir, "rostermap.yml")
	_ = os.WriteFile(yml, []byte("metric: per\n"), 0o644)
	if got := FindConfig(dir); got != yml {
		t.Errorf("FindConfig() = %q, want %q", got, yml)
	}
}

func TestWriteConfig(t *testing.T) {
	o := Options{Data: testPaths(), Metric: "per"}
	data, err := WriteConfig(o)
	if err != nil {
		t.Fatalf("WriteConfig() error: %v", err)
	}
	if !strings.Contains(string(data), `metric = "per"`) || !strings.Contains(string(data), "[data]") {
		t.Errorf("WriteConfig() = %s", data)
	}
}

func TestProgressValues(t *testing.T) {
	got := ProgressValues(5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ProgressValues(5)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := ProgressValues(1); len(got) != 1 || got[0] != 1 {
		t.Errorf("ProgressValues(1) = %v, want [1]", got)
	}
}

func TestStepTitle(t *testing.T) {
	step := dataset.Step{Index: 0, Date: "2023-06-22", Transactions: []dataset.Transaction{
		{Text: "Trade"}, {Text: ""}, {Text: "Signing"},
	}}
	title, sub := StepTitle(step)
	if title != "2023-06-22" || sub != "Trade · Signing" {
		t.Errorf("StepTitle() = %q, %q", title, sub)
	}
	if title, _ := StepTitle(dataset.Step{Index: InitialStep}); title != "" {
		t.Errorf("StepTitle(initial) = %q, want empty", title)
	}
}

func TestRunnerRenderFrame(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	opts := Options{Data: testPaths(), Step: 0, Progress: 0.5, Interactive: true}

	res, err := r.RenderFrame(ctx, opts)
	if err != nil {
		t.Fatalf("RenderFrame() error: %v", err)
	}
	if res.CacheHit {
		t.Error("first render should miss")
	}
	svg := string(res.Data)
	for _, want := range []string{
		`id="member-smartma01"`,
		`id="territory-BOS"`,
		`class="map"`,
		`2023-06-22`,
		`<title>Jayson Tatum (Boston Celtics)`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if strings.Contains(svg, `id="member-porzikr01"`) == false {
		t.Error("entering member should be drawn mid-transition")
	}

	again, err := r.RenderFrame(ctx, opts)
	if err != nil {
		t.Fatalf("RenderFrame() error: %v", err)
	}
	if !again.CacheHit || string(again.Data) != svg {
		t.Error("second render should be served from cache")
	}

	opts.Refresh = true
	if res, _ := r.RenderFrame(ctx, opts); res.CacheHit {
		t.Error("refresh should bypass the cache")
	}
}

func TestRunnerRenderFrames(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	opts := Options{Data: testPaths(), Step: 1, Frames: 5, Format: "json"}

	results, stats, err := r.RenderFrames(context.Background(), opts)
	if err != nil {
		t.Fatalf("RenderFrames() error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	if stats.CacheHits != 0 {
		t.Errorf("CacheHits = %d, want 0 with caching disabled", stats.CacheHits)
	}
	for i, res := range results {
		var doc struct {
			Step      int               `json:"step"`
			Progress  float64           `json:"progress"`
			Drawables []json.RawMessage `json:"drawables"`
		}
		if err := json.Unmarshal(res.Data, &doc); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if doc.Step != 1 || doc.Progress != res.Progress {
			t.Errorf("frame %d: step=%d progress=%v, want 1 and %v", i, doc.Step, doc.Progress, res.Progress)
		}
		if len(doc.Drawables) == 0 {
			t.Errorf("frame %d has no drawables", i)
		}
	}
}

func TestRunnerInitialStep(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	res, err := r.RenderFrame(context.Background(), Options{Data: testPaths(), Step: InitialStep, Format: "json"})
	if err != nil {
		t.Fatalf("RenderFrame() error: %v", err)
	}
	if strings.Contains(string(res.Data), `"step"`) {
		t.Error("initial frame should not carry a step")
	}
	if strings.Contains(string(res.Data), "porzikr01") {
		t.Error("free agent should not be drawn in the initial layout")
	}
}

func TestRunnerStepNotFound(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	_, err := r.RenderFrame(context.Background(), Options{Data: testPaths(), Step: 99})
	if !errs.Is(err, errs.ErrCodeStepNotFound) {
		t.Errorf("RenderFrame() = %v, want STEP_NOT_FOUND", err)
	}
}

func TestRunnerRenderNetwork(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	res, err := r.RenderNetwork(context.Background(), Options{Data: testPaths(), Step: 0}, true)
	if err != nil {
		t.Fatalf("RenderNetwork() error: %v", err)
	}
	if !strings.Contains(string(res.Data), "<svg") || !strings.Contains(string(res.Data), "Marcus Smart") {
		t.Error("network svg incomplete")
	}

	_, err = r.RenderNetwork(context.Background(), Options{Data: testPaths(), Step: 0, Format: "json"}, false)
	if !errs.Is(err, errs.ErrCodeUnsupported) {
		t.Errorf("RenderNetwork(json) = %v, want UNSUPPORTED", err)
	}
}
