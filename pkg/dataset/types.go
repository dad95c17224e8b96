package dataset

import (
	"maps"
	"math"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/rostermap/pkg/geom"
)

// Reserved territory ids. Their members are off the map.
const (
	FreeAgents = "FA"
	Retired    = "RET"
)

// DefaultReserved lists the unassigned pools excluded from layout.
var DefaultReserved = []string{FreeAgents, Retired}

// Member is one animated individual. Members are values: the With* methods
// return modified copies and never touch the receiver's maps.
type Member struct {
	ID        string
	Name      string
	Territory string

	// Metrics holds raw metric values. A missing key or NaN is the
	// "unavailable" sentinel.
	Metrics map[string]float64

	// Samples holds companion sample sizes (e.g. minutes played).
	Samples map[string]float64
}

// Metric returns the raw value of name and whether it is available.
func (m Member) Metric(name string) (float64, bool) {
	v, ok := m.Metrics[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Sample returns the sample size stored under name, or 0.
func (m Member) Sample(name string) float64 {
	return m.Samples[name]
}

// WithTerritory returns a copy of m assigned to territory.
func (m Member) WithTerritory(territory string) Member {
	m.Territory = territory
	return m
}

// WithMetric returns a copy of m with the metric set to v, or marked
// unavailable when v is nil.
func (m Member) WithMetric(name string, v *float64) Member {
	metrics := maps.Clone(m.Metrics)
	if metrics == nil {
		metrics = make(map[string]float64)
	}
	if v == nil {
		metrics[name] = math.NaN()
	} else {
		metrics[name] = *v
	}
	m.Metrics = metrics
	return m
}

// Territory is one grouping entity drawn as a circle on the map.
type Territory struct {
	ID     string
	Name   string
	Fill   string
	Stroke string
	Lon    float64
	Lat    float64

	// Anchor is the projected geographic position in screen space.
	Anchor geom.Point
}

// Move reassigns one member and optionally adjusts its metrics.
// From and To are the territories before and after the step.
type Move struct {
	MemberID string         `json:"player_id"`
	From     string         `json:"from_team"`
	To       string         `json:"to_team"`
	Metrics  []MetricChange `json:"metrics,omitempty"`
}

// MetricChange adjusts one metric of a moving member. A nil value means
// unavailable.
type MetricChange struct {
	Name string   `json:"name"`
	From *float64 `json:"from"`
	To   *float64 `json:"to"`
}

// Transaction is a single narrative event (trade, signing, waiver ...).
type Transaction struct {
	Date          string   `json:"date"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	AffectedTeams []string `json:"affected_teams"`
	Moves         []Move   `json:"players"`
}

// Step is one discrete narrative unit: every transaction of a date.
type Step struct {
	Index        int
	Date         string
	Transactions []Transaction
}

// Moves flattens the step's transactions into one ordered move list.
func (s Step) Moves() []Move {
	var out []Move
	for _, tx := range s.Transactions {
		out = append(out, tx.Moves...)
	}
	return out
}

// Affected returns the union of the transactions' affected teams, sorted.
func (s Step) Affected() []string {
	seen := make(map[string]bool)
	for _, tx := range s.Transactions {
		for _, t := range tx.AffectedTeams {
			seen[t] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Dataset is everything loaded for one map.
type Dataset struct {
	Members     []Member
	Territories []Territory
	Steps       []Step
	Reserved    []string

	// Background is the optional outline map drawn under the territories,
	// already projected into screen space.
	Background *geojson.FeatureCollection

	Width  float64
	Height float64

	// geoBackground is Background before projection.
	geoBackground *geojson.FeatureCollection
}

// IsReserved reports whether id names an unassigned pool.
func (d *Dataset) IsReserved(id string) bool {
	return slices.Contains(d.Reserved, id)
}

// Territory looks up a territory by id.
func (d *Dataset) Territory(id string) (Territory, bool) {
	for _, t := range d.Territories {
		if t.ID == id {
			return t, true
		}
	}
	return Territory{}, false
}

// Step returns the step at index.
func (d *Dataset) Step(index int) (Step, bool) {
	if index < 0 || index >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[index], true
}
