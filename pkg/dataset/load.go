package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

// Default screen size.
const (
	DefaultWidth  = 960.0
	DefaultHeight = 600.0
)

// Paths names the files a dataset is loaded from. Steps and Background are
// optional.
type Paths struct {
	Members     string `toml:"members" yaml:"members" json:"members"`
	Territories string `toml:"territories" yaml:"territories" json:"territories"`
	Steps       string `toml:"steps" yaml:"steps" json:"steps,omitempty"`
	Background  string `toml:"background" yaml:"background" json:"background,omitempty"`
}

// Files returns the non-empty paths.
func (p Paths) Files() []string {
	var out []string
	for _, f := range []string{p.Members, p.Territories, p.Steps, p.Background} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Hash returns a digest of the contents of every file, for cache keys.
func (p Paths) Hash() (string, error) {
	h := sha256.New()
	for _, f := range p.Files() {
		r, err := os.Open(f)
		if err != nil {
			return "", errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", f)
		}
		_, err = io.Copy(h, r)
		r.Close()
		if err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadOptions controls projection and the reserved pools.
type LoadOptions struct {
	Width    float64
	Height   float64
	Reserved []string
}

func (o *LoadOptions) setDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Reserved == nil {
		o.Reserved = DefaultReserved
	}
}

// Load reads every file named by p and projects the result into screen
// space.
func Load(p Paths, opts LoadOptions) (*Dataset, error) {
	if p.Members == "" || p.Territories == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "members and territories files are required")
	}
	territories, err := importFile(p.Territories, ReadTerritories)
	if err != nil {
		return nil, err
	}
	members, err := importFile(p.Members, ReadMembers)
	if err != nil {
		return nil, err
	}
	var steps []Step
	if p.Steps != "" {
		if steps, err = importFile(p.Steps, ReadSteps); err != nil {
			return nil, err
		}
	}
	var bg *geojson.FeatureCollection
	if p.Background != "" {
		if bg, err = importFile(p.Background, ReadBackground); err != nil {
			return nil, err
		}
	}
	return New(members, territories, steps, bg, opts)
}

// New assembles a dataset from decoded records, checks cross references and
// projects territory anchors and the background into screen space.
func New(members []Member, territories []Territory, steps []Step, bg *geojson.FeatureCollection, opts LoadOptions) (*Dataset, error) {
	opts.setDefaults()
	ds := &Dataset{
		Members:     slices.Clone(members),
		Territories: slices.Clone(territories),
		Steps:       slices.Clone(steps),
		Reserved:    slices.Clone(opts.Reserved),
		Width:       opts.Width,
		Height:      opts.Height,
	}
	known := func(id string) bool {
		_, ok := ds.Territory(id)
		return ok || ds.IsReserved(id)
	}
	for _, m := range ds.Members {
		if !known(m.Territory) {
			return nil, errs.New(errs.ErrCodeUnknownEntity, "member %s: unknown territory %q", m.ID, m.Territory)
		}
	}
	ids := make(map[string]bool, len(ds.Members))
	for _, m := range ds.Members {
		ids[m.ID] = true
	}
	for _, s := range ds.Steps {
		for _, mv := range s.Moves() {
			if !ids[mv.MemberID] {
				return nil, errs.New(errs.ErrCodeUnknownEntity, "step %d (%s): unknown member %q", s.Index, s.Date, mv.MemberID)
			}
			for _, t := range []string{mv.From, mv.To} {
				if !known(t) {
					return nil, errs.New(errs.ErrCodeUnknownEntity, "step %d (%s): unknown territory %q", s.Index, s.Date, t)
				}
			}
		}
	}

	ds.geoBackground = bg
	ds.project()
	return ds, nil
}

// Resized returns a copy of d fitted to a width × height screen.
func (d *Dataset) Resized(width, height float64) *Dataset {
	c := *d
	c.Territories = slices.Clone(d.Territories)
	c.Width, c.Height = width, height
	c.project()
	return &c
}

// project fits the Mercator projection to the dataset's screen size and
// recomputes every anchor and the background.
func (d *Dataset) project() {
	proj := FitMercator(Bounds(d.Territories, d.Reserved, d.geoBackground), DefaultExtent(d.Width, d.Height))
	for i, t := range d.Territories {
		if d.IsReserved(t.ID) {
			continue
		}
		d.Territories[i].Anchor = proj.Project(orb.Point{t.Lon, t.Lat})
	}
	d.Background = proj.Collection(d.geoBackground)
}
