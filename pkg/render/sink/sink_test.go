package sink

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/rostermap/pkg/geom"
	"github.com/matzehuels/rostermap/pkg/transition"
)

func testFrame() transition.Frame {
	return transition.Frame{Drawables: []transition.Drawable{
		{MemberID: "a", TerritoryID: "BOS", Polygon: geom.Ring{{0, 0}, {10, 0}, {10, 10}}, Fill: "#ff0000", Stroke: "#000000", Opacity: 1},
		{MemberID: "b&c", TerritoryID: "BOS", Polygon: geom.Ring{{10, 0}, {20, 0}, {20, 10}}, Fill: "#ff0000", Stroke: "#000000", Opacity: 0.3, Z: 1, Role: transition.RoleReshuffle},
		{MemberID: "gone", TerritoryID: "MEM", Polygon: geom.Ring{{0, 0}, {1, 0}, {1, 1}}, Fill: "#0000ff", Stroke: "#000000", Opacity: 0},
	}}
}

func TestRenderSVG(t *testing.T) {
	svg := string(RenderSVG(testFrame(), WithSize(200, 100)))

	tests := []struct {
		name string
		want string
	}{
		{"header", `viewBox="0 0 200.0 100.0" width="200" height="100"`},
		{"path", `d="M0.00,0.00L10.00,0.00L10.00,10.00Z"`},
		{"escaped id", `id="member-b&amp;c"`},
		{"territory", `data-territory="BOS"`},
		{"opacity", `opacity="0.300"`},
		{"role", `class="cell role-reshuffle"`},
	}
	for _, tt := range tests {
		if !strings.Contains(svg, tt.want) {
			t.Errorf("%s: svg missing %q", tt.name, tt.want)
		}
	}
	if strings.Contains(svg, "member-gone") {
		t.Error("fully transparent drawable should not be drawn")
	}
	if strings.Contains(svg, "<script") {
		t.Error("interaction script present without WithInteraction")
	}
	if !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("svg not terminated")
	}
}

func TestRenderSVGOptions(t *testing.T) {
	bg := geojson.NewFeatureCollection()
	bg.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {50, 0}, {50, 50}, {0, 0}}}))

	svg := string(RenderSVG(testFrame(),
		WithBackground(bg),
		WithMapStyle(MapStyle{Fill: "#abcdef", Stroke: "#ffffff", Opacity: 0.5}),
		WithTerritories(Outline{ID: "BOS", Label: "Boston <C>", Center: geom.Point{10, 10}, Radius: 20, Stroke: "#000000"}),
		WithTitle("2023-06-22", "Celtics trade"),
		WithTooltips(map[string]string{"a": "Jane Doe: $1"}),
		WithInteraction(),
	))

	for _, want := range []string{
		`fill="#abcdef"`,
		`<path d="M0.00,0.00L50.00,0.00L50.00,50.00Z"/>`,
		`<circle id="territory-BOS" cx="10.00" cy="10.00" r="20.00"`,
		`Boston &lt;C&gt;`,
		`2023-06-22</text>`,
		`<title>Jane Doe: $1</title>`,
		`<script type="text/javascript">`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if i, j := strings.Index(svg, `class="map"`), strings.Index(svg, `class="cells"`); i < 0 || i > j {
		t.Error("background should be drawn before the cells")
	}
}

func TestRenderSVGDerivedSize(t *testing.T) {
	svg := string(RenderSVG(testFrame()))
	if !strings.Contains(svg, `viewBox="0 0 40.0 30.0"`) {
		t.Errorf("derived viewBox wrong: %s", svg[:80])
	}
}

func TestRenderJSON(t *testing.T) {
	data, err := RenderJSON(testFrame(),
		WithJSONSize(200, 100),
		WithJSONStep(3, 0.5, transition.Up),
		WithJSONMetric("salary"),
	)
	if err != nil {
		t.Fatalf("RenderJSON() error: %v", err)
	}
	var doc struct {
		Width     float64 `json:"width"`
		Step      int     `json:"step"`
		Progress  float64 `json:"progress"`
		Direction string  `json:"direction"`
		Metric    string  `json:"metric"`
		Drawables []struct {
			MemberID string       `json:"member_id"`
			Polygon  [][2]float64 `json:"polygon"`
			Role     string       `json:"role"`
		} `json:"drawables"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Width != 200 || doc.Step != 3 || doc.Progress != 0.5 || doc.Direction != "up" || doc.Metric != "salary" {
		t.Errorf("header = %+v", doc)
	}
	if len(doc.Drawables) != 3 {
		t.Fatalf("len(drawables) = %d, want 3", len(doc.Drawables))
	}
	if doc.Drawables[1].Role != "reshuffle" {
		t.Errorf("role = %q, want reshuffle", doc.Drawables[1].Role)
	}
	if doc.Drawables[0].Polygon[1] != [2]float64{10, 0} {
		t.Errorf("polygon[1] = %v, want [10 0]", doc.Drawables[0].Polygon[1])
	}
}

func TestRenderJSONEmpty(t *testing.T) {
	data, err := RenderJSON(transition.Frame{})
	if err != nil {
		t.Fatalf("RenderJSON() error: %v", err)
	}
	if got := string(data); got != `{"drawables":[]}` {
		t.Errorf("RenderJSON(empty) = %s", got)
	}
}

func TestDiff(t *testing.T) {
	prev := testFrame()
	next := testFrame()
	next.Drawables = next.Drawables[:2]
	next.Drawables[0].Polygon = geom.Ring{{1, 1}, {10, 0}, {10, 10}}
	next.Drawables = append(next.Drawables, transition.Drawable{
		MemberID: "new", TerritoryID: "MEM", Polygon: geom.Ring{{5, 5}, {6, 5}, {6, 6}}, Opacity: 1, Z: 2, Role: transition.RoleEntering,
	})

	ops := Diff(prev, next)
	var kinds []string
	for _, op := range ops {
		kinds = append(kinds, string(op.Kind)+":"+op.MemberID)
	}
	want := []string{"exit:gone", "update:a", "enter:new"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("Diff() = %v, want %v", kinds, want)
	}

	if got := Apply(prev, ops); !reflect.DeepEqual(got, next) {
		t.Errorf("Apply(prev, Diff(prev, next)) = %+v, want %+v", got, next)
	}
	if ops := Diff(next, next); len(ops) != 0 {
		t.Errorf("Diff(next, next) = %v, want none", ops)
	}
}
