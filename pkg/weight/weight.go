// Package weight derives member weights and territory radii from a sizing
// metric.
//
// A [Model] fixes two linear scales when it is built: metric value to visual
// weight, and territory weight total to circle radius. Later membership or
// metric changes are evaluated against the same scales so that sizes stay
// comparable across a whole narrative. Switching the metric builds a new
// model.
//
// Weights are always finite and non-negative. A member whose metric is
// unavailable, or whose sample is too small for a rate metric, weighs 0.
package weight

import (
	"math"
	"slices"

	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/geom"
)

const (
	// DefaultEpsilon is the weight of the smallest observed value.
	DefaultEpsilon = 1.0

	// DefaultMaxWeight is the weight of the largest observed value.
	DefaultMaxWeight = 100.0

	// DefaultMaxRadius is the radius of the heaviest territory.
	DefaultMaxRadius = 57.0
)

// Options tunes the output ranges. Zero fields take defaults.
type Options struct {
	Epsilon   float64
	MaxWeight float64
	MaxRadius float64
}

func (o *Options) setDefaults() {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.MaxWeight <= 0 {
		o.MaxWeight = DefaultMaxWeight
	}
	if o.MaxRadius <= 0 {
		o.MaxRadius = DefaultMaxRadius
	}
}

// Scale is a linear map from [D0, D1] to [R0, R1]. It does not clamp.
type Scale struct {
	D0, D1 float64
	R0, R1 float64
}

// Apply maps v through the scale. A degenerate domain maps everything to R1.
func (s Scale) Apply(v float64) float64 {
	if s.D1 == s.D0 {
		return s.R1
	}
	return s.R0 + (v-s.D0)*(s.R1-s.R0)/(s.D1-s.D0)
}

// Model holds the scales for one active metric.
type Model struct {
	Spec     MetricSpec
	Value    Scale
	Radius   Scale
	MaxTotal float64

	opts     Options
	reserved []string
}

// Build fixes the value scale from the eligible metric values of all
// members and the radius scale from the heaviest non-reserved territory.
func Build(members []dataset.Member, metric string, reserved []string, opts Options) (*Model, error) {
	spec, err := Lookup(metric)
	if err != nil {
		return nil, err
	}
	opts.setDefaults()

	m := &Model{
		Spec:     spec,
		opts:     opts,
		reserved: slices.Clone(reserved),
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, mem := range members {
		v, ok := m.eligible(mem)
		if !ok {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	if spec.Domain == DomainZeroMax {
		lo = 0
		hi = math.Max(hi, 0)
	}
	m.Value = Scale{D0: lo, D1: hi, R0: opts.Epsilon, R1: opts.MaxWeight}

	for _, total := range m.Totals(members, m.Weights(members)) {
		m.MaxTotal = math.Max(m.MaxTotal, total)
	}
	m.Radius = Scale{D0: 0, D1: m.MaxTotal, R0: 0, R1: opts.MaxRadius}
	return m, nil
}

// eligible returns the member's raw value when it may carry weight.
func (m *Model) eligible(mem dataset.Member) (float64, bool) {
	v, ok := mem.Metric(m.Spec.Name)
	if !ok {
		return 0, false
	}
	if m.Spec.Rate && m.Spec.SampleField != "" && mem.Sample(m.Spec.SampleField) < m.Spec.MinSample {
		return 0, false
	}
	return v, true
}

// Weight returns the member's visual weight under the model's scales.
func (m *Model) Weight(mem dataset.Member) float64 {
	v, ok := m.eligible(mem)
	if !ok {
		return 0
	}
	w := m.Value.Apply(v)
	if !(w > 0) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

// Weights returns the weight of every member keyed by member id.
func (m *Model) Weights(members []dataset.Member) map[string]float64 {
	out := make(map[string]float64, len(members))
	for _, mem := range members {
		out[mem.ID] = m.Weight(mem)
	}
	return out
}

// Totals sums weights per non-reserved territory. Territories with no
// members do not appear.
func (m *Model) Totals(members []dataset.Member, weights map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, mem := range members {
		if mem.Territory == "" || m.IsReserved(mem.Territory) {
			continue
		}
		out[mem.Territory] += weights[mem.ID]
	}
	return out
}

// TerritoryRadius maps a territory's weight total to its circle radius.
// The scale is not clamped, so a territory that grows past the heaviest
// total at build time grows past MaxRadius.
func (m *Model) TerritoryRadius(total float64) float64 {
	if !(total > 0) || m.MaxTotal <= 0 {
		return 0
	}
	return m.Radius.Apply(total)
}

// TokenRadius returns the radius of a member's travelling token: half the
// radius of a circle with the member's share of the heaviest territory.
func (m *Model) TokenRadius(w float64) float64 {
	if m.MaxTotal <= 0 {
		return 0
	}
	return geom.PackRadius(w, 0.5*m.opts.MaxRadius/math.Sqrt(m.MaxTotal))
}

// IsReserved reports whether territory is an unassigned pool.
func (m *Model) IsReserved(territory string) bool {
	return slices.Contains(m.reserved, territory)
}

// Reserved returns the reserved territory ids.
func (m *Model) Reserved() []string {
	return slices.Clone(m.reserved)
}
