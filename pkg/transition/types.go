package transition

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/geom"
)

// Role is how a member takes part in a transition.
type Role int

const (
	RoleStatic Role = iota
	RoleReshuffle
	RoleEntering
	RoleExiting
	RoleMoving
)

var roleNames = map[Role]string{
	RoleStatic:    "static",
	RoleReshuffle: "reshuffle",
	RoleEntering:  "entering",
	RoleExiting:   "exiting",
	RoleMoving:    "moving",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	for role, name := range roleNames {
		if name == string(b) {
			*r = role
			return nil
		}
	}
	return errs.New(errs.ErrCodeInvalidInput, "unknown role %q", b)
}

// Z is the stacking hint for the role; higher draws on top.
func (r Role) Z() int {
	switch r {
	case RoleStatic:
		return 0
	case RoleReshuffle:
		return 1
	case RoleEntering, RoleExiting:
		return 2
	default:
		return 3
	}
}

// Direction is the scroll direction a step is played in.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes "up" or "down".
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection parses "down" (or empty) and "up".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "down":
		return Down, nil
	case "up":
		return Up, nil
	default:
		return Down, errs.New(errs.ErrCodeInvalidInput, "invalid direction %q (must be up or down)", s)
	}
}

// Shape is one member's visible state on one side of a transition.
type Shape struct {
	MemberID    string
	TerritoryID string
	Polygon     geom.Ring
	Fill        string
	Stroke      string

	// TokenRadius is the radius of the member's travelling token.
	TokenRadius float64
}

// Snapshot is every visible member's shape, keyed by member id.
type Snapshot map[string]Shape

// Drawable is one element of a frame.
type Drawable struct {
	MemberID    string    `json:"member_id"`
	TerritoryID string    `json:"territory_id"`
	Polygon     geom.Ring `json:"polygon"`
	Fill        string    `json:"fill"`
	Stroke      string    `json:"stroke"`
	Opacity     float64   `json:"opacity"`
	Z           int       `json:"z"`
	Role        Role      `json:"role"`
}

// Frame is the complete drawable set at one instant, ordered by Z then
// member id.
type Frame struct {
	Drawables []Drawable `json:"drawables"`
}

// Get returns the drawable of member id.
func (f Frame) Get(id string) (Drawable, bool) {
	for _, d := range f.Drawables {
		if d.MemberID == id {
			return d, true
		}
	}
	return Drawable{}, false
}

// IDs returns the member ids in the frame, sorted.
func (f Frame) IDs() []string {
	ids := make([]string, len(f.Drawables))
	for i, d := range f.Drawables {
		ids[i] = d.MemberID
	}
	slices.Sort(ids)
	return ids
}

// SortDrawables orders ds back to front: by Z, then member id.
func SortDrawables(ds []Drawable) {
	slices.SortFunc(ds, func(a, b Drawable) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.MemberID, b.MemberID)
	})
}

// FrameFromSnapshot turns a snapshot into a resting frame.
func FrameFromSnapshot(s Snapshot) Frame {
	ds := make([]Drawable, 0, len(s))
	for _, sh := range s {
		ds = append(ds, Drawable{
			MemberID:    sh.MemberID,
			TerritoryID: sh.TerritoryID,
			Polygon:     append(geom.Ring(nil), sh.Polygon...),
			Fill:        sh.Fill,
			Stroke:      sh.Stroke,
			Opacity:     1,
		})
	}
	SortDrawables(ds)
	return Frame{Drawables: ds}
}
