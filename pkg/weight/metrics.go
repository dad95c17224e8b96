package weight

import (
	"slices"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

// Domain selects how a metric's input domain is derived from observed values.
type Domain int

const (
	// DomainExtent maps the observed [min, max] onto the weight range.
	DomainExtent Domain = iota
	// DomainZeroMax maps [0, max] onto the weight range.
	DomainZeroMax
)

// MetricSpec describes one entry of the closed metric vocabulary.
type MetricSpec struct {
	Name  string
	Label string

	// Rate marks per-game style metrics that are only meaningful above a
	// minimum sample size.
	Rate   bool
	Domain Domain

	// SampleField names the companion sample-size value checked against
	// MinSample for rate metrics.
	SampleField string
	MinSample   float64

	// Format is the fmt verb used in tooltips and tables.
	Format string
}

// Metric names.
const (
	MetricSalary = "salary"
	MetricVORP   = "vorp"
	MetricPER    = "per"
)

// DefaultMetric is the metric a new scene is sized by.
const DefaultMetric = MetricSalary

// Metrics is the closed vocabulary of sizing metrics.
var Metrics = map[string]MetricSpec{
	MetricSalary: {
		Name:   MetricSalary,
		Label:  "Salary",
		Domain: DomainExtent,
		Format: "$%.0f",
	},
	MetricVORP: {
		Name:   MetricVORP,
		Label:  "VORP",
		Domain: DomainExtent,
		Format: "%.1f",
	},
	MetricPER: {
		Name:        MetricPER,
		Label:       "PER",
		Rate:        true,
		Domain:      DomainZeroMax,
		SampleField: "minutes",
		MinSample:   500,
		Format:      "%.1f",
	},
}

// Lookup returns the MetricSpec for name or an INVALID_METRIC error.
func Lookup(name string) (MetricSpec, error) {
	spec, ok := Metrics[name]
	if !ok {
		return MetricSpec{}, errs.New(errs.ErrCodeInvalidMetric, "unknown metric %q (must be one of: %v)", name, MetricNames())
	}
	return spec, nil
}

// MetricNames returns the vocabulary in sorted order.
func MetricNames() []string {
	names := make([]string, 0, len(Metrics))
	for n := range Metrics {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
