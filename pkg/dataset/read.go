package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

// Column aliases accepted in CSV headers. The first name is canonical.
var (
	colID        = []string{"id", "player_id", "team_id"}
	colName      = []string{"name", "player", "team_name"}
	colTerritory = []string{"territory", "team", "team_id"}
	colLon       = []string{"longitude", "lon", "lng"}
	colLat       = []string{"latitude", "lat"}
	colFill      = []string{"fill", "color_1"}
	colStroke    = []string{"stroke", "color_2"}
)

// MetricColumns names the member CSV columns read into Member.Metrics.
// Every other numeric column is a sample field.
var MetricColumns = []string{"salary", "vorp", "per"}

// missing cell values read as "unavailable".
var missing = []string{"", "na", "n/a", "nan", "null", "-"}

func isReserved(reserved []string, id string) bool {
	return slices.Contains(reserved, id)
}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, errs.New(errs.ErrCodeInvalidFormat, "empty csv")
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "read header")
	}
	h := make(header, len(row))
	for i, c := range row {
		h[strings.ToLower(strings.TrimSpace(c))] = i
	}
	return h, nil
}

// find returns the index of the first alias present, or -1.
func (h header) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}

func (h header) require(aliases []string) (int, error) {
	if i := h.find(aliases); i >= 0 {
		return i, nil
	}
	return -1, errs.New(errs.ErrCodeInvalidFormat, "missing column %q", aliases[0])
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseValue parses a numeric cell. ok is false for the missing markers.
func parseValue(s string) (v float64, ok bool, err error) {
	if slices.Contains(missing, strings.ToLower(s)) {
		return 0, false, nil
	}
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

// ReadTerritories decodes territories from CSV.
//
// Required columns are id (or team_id), longitude and latitude. Optional
// columns are name, fill (color_1) and stroke (color_2). Colors must be hex.
// Reserved pools may be listed with empty coordinates.
func ReadTerritories(r io.Reader) ([]Territory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	idCol, err := h.require(colID)
	if err != nil {
		return nil, err
	}
	lonCol, err := h.require(colLon)
	if err != nil {
		return nil, err
	}
	latCol, err := h.require(colLat)
	if err != nil {
		return nil, err
	}
	nameCol, fillCol, strokeCol := h.find(colName), h.find(colFill), h.find(colStroke)

	var out []Territory
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d", line)
		}
		t := Territory{
			ID:     cell(row, idCol),
			Name:   cell(row, nameCol),
			Fill:   cell(row, fillCol),
			Stroke: cell(row, strokeCol),
		}
		if err := errs.ValidateID(t.ID); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d", line)
		}
		if seen[t.ID] {
			return nil, errs.New(errs.ErrCodeInvalidFormat, "line %d: duplicate territory %q", line, t.ID)
		}
		seen[t.ID] = true
		if t.Name == "" {
			t.Name = t.ID
		}
		if t.Fill == "" {
			t.Fill = "#cccccc"
		}
		if t.Stroke == "" {
			t.Stroke = t.Fill
		}
		for _, c := range []string{t.Fill, t.Stroke} {
			if err := errs.ValidateHexColor(c); err != nil {
				return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d", line)
			}
		}
		lon, okLon, err := parseValue(cell(row, lonCol))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d: longitude", line)
		}
		lat, okLat, err := parseValue(cell(row, latCol))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d: latitude", line)
		}
		if okLon && okLat {
			if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
				return nil, errs.New(errs.ErrCodeInvalidFormat, "line %d: coordinates out of range (%v, %v)", line, lon, lat)
			}
			t.Lon, t.Lat = lon, lat
		} else if !isReserved(DefaultReserved, t.ID) {
			return nil, errs.New(errs.ErrCodeInvalidFormat, "line %d: territory %s has no coordinates", line, t.ID)
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadMembers decodes members from CSV.
//
// Required columns are id (or player_id) and territory (or team_id). The
// name column is optional. Columns listed in [MetricColumns] fill
// Member.Metrics; every other column parses as a number into
// Member.Samples and is skipped if it is not numeric. Empty cells and
// markers such as "NA" mean unavailable.
func ReadMembers(r io.Reader) ([]Member, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	idCol, err := h.require(colID[:2])
	if err != nil {
		return nil, err
	}
	terrCol, err := h.require(colTerritory)
	if err != nil {
		return nil, err
	}
	nameCol := h.find(colName)

	type valueCol struct {
		name   string
		idx    int
		metric bool
	}
	var cols []valueCol
	for name, i := range h {
		if i == idCol || i == terrCol || i == nameCol {
			continue
		}
		cols = append(cols, valueCol{name: name, idx: i, metric: slices.Contains(MetricColumns, name)})
	}
	slices.SortFunc(cols, func(a, b valueCol) int { return a.idx - b.idx })

	var out []Member
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d", line)
		}
		m := Member{
			ID:        cell(row, idCol),
			Name:      cell(row, nameCol),
			Territory: cell(row, terrCol),
			Metrics:   make(map[string]float64),
			Samples:   make(map[string]float64),
		}
		if err := errs.ValidateID(m.ID); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d", line)
		}
		if seen[m.ID] {
			return nil, errs.New(errs.ErrCodeInvalidFormat, "line %d: duplicate member %q", line, m.ID)
		}
		seen[m.ID] = true
		if m.Territory == "" {
			m.Territory = FreeAgents
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		for _, c := range cols {
			v, ok, err := parseValue(cell(row, c.idx))
			switch {
			case err != nil && c.metric:
				return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "line %d: column %s", line, c.name)
			case err != nil || !ok:
				continue
			case c.metric:
				m.Metrics[c.name] = v
			default:
				m.Samples[c.name] = v
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ReadSteps decodes a JSON array of transactions and groups them into steps
// by date, in order of first appearance. The document is validated against
// the embedded steps schema before decoding.
func ReadSteps(r io.Reader) ([]Step, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if err := ValidateSteps(data); err != nil {
		return nil, err
	}
	var txs []Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode steps")
	}
	return GroupSteps(txs), nil
}

// GroupSteps groups transactions sharing a date into one step each.
func GroupSteps(txs []Transaction) []Step {
	var steps []Step
	index := make(map[string]int)
	for _, tx := range txs {
		i, ok := index[tx.Date]
		if !ok {
			i = len(steps)
			index[tx.Date] = i
			steps = append(steps, Step{Index: i, Date: tx.Date})
		}
		steps[i].Transactions = append(steps[i].Transactions, tx)
	}
	return steps
}

// ReadBackground decodes a GeoJSON feature collection in lon/lat.
func ReadBackground(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode geojson")
	}
	return fc, nil
}

func importFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	if err := errs.ValidatePath(path); err != nil {
		return zero, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return zero, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
