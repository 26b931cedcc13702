package lines

import (
	"errors"
	"time"
)

const (
	SidePort      = "PORT"
	SideStarboard = "STARBOARD"
)

const (
	TypeBreast = "BREAST"
	TypeSpring = "SPRING"
)

// ErrNotFound is returned when a line id is unknown.
var ErrNotFound = errors.New("lines: line not found")

// Line is one monitored mooring line. The roster is fixed at startup;
// only the snapshot fields change at runtime, and only through the
// ingestion gateway.
type Line struct {
	LineID        string  `json:"line_id"`
	Name          string  `json:"name"`
	LineType      string  `json:"line_type"`
	Side          string  `json:"side"`
	PositionIndex int     `json:"position_index"`

	ReferenceTension float64 `json:"reference_tension"`
	MaxTension       float64 `json:"max_tension"`

	CurrentTension       float64   `json:"current_tension"`
	TensionPct           float64   `json:"tension_percentage"`
	RemainingLifespanPct float64   `json:"remaining_lifespan_percentage"`
	DistanceToPort       float64   `json:"distance_to_port"`
	Status               string    `json:"status"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

// DefaultRoster returns the 8-line vessel roster: four breast and four
// spring lines per side, breast lines carrying the higher reference
// tension. MaxTension is rated at twice the reference.
func DefaultRoster() []Line {
	specs := []struct {
		id    string
		side  string
		typ   string
		index int
		ref   float64
	}{
		{"L0", SidePort, TypeBreast, 0, 1.0},
		{"L1", SideStarboard, TypeBreast, 0, 1.5},
		{"L2", SidePort, TypeSpring, 1, 0.8},
		{"L3", SideStarboard, TypeSpring, 1, 0.7},
		{"L4", SidePort, TypeBreast, 2, 1.0},
		{"L5", SideStarboard, TypeBreast, 2, 1.5},
		{"L6", SidePort, TypeSpring, 3, 0.8},
		{"L7", SideStarboard, TypeSpring, 3, 0.7},
	}

	roster := make([]Line, 0, len(specs))
	for _, spec := range specs {
		roster = append(roster, Line{
			LineID:               spec.id,
			Name:                 spec.id + "-" + spec.side + "-" + spec.typ,
			LineType:             spec.typ,
			Side:                 spec.side,
			PositionIndex:        spec.index,
			ReferenceTension:     spec.ref,
			MaxTension:           spec.ref * 2.0,
			RemainingLifespanPct: 100.0,
			Status:               "NORMAL",
		})
	}
	return roster
}
