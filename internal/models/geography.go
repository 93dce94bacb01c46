package models

import "strings"

// Geography is the state > district > block hierarchy used to tag content and
// to filter feeds. A lower level is only meaningful when every level above it
// is set.
type Geography struct {
	State    string `gorm:"index" json:"state,omitempty"`
	District string `gorm:"index" json:"district,omitempty"`
	Block    string `json:"block,omitempty"`
}

// Normalize trims every level and drops levels whose parent is empty.
func (g Geography) Normalize() Geography {
	out := Geography{
		State:    strings.TrimSpace(g.State),
		District: strings.TrimSpace(g.District),
		Block:    strings.TrimSpace(g.Block),
	}
	if out.State == "" {
		return Geography{}
	}
	if out.District == "" {
		out.Block = ""
	}
	return out
}

// IsZero reports whether no level is set.
func (g Geography) IsZero() bool {
	return g.Normalize().State == ""
}

// Contains reports whether a content item tagged with other falls inside g,
// comparing level by level down to the deepest level g specifies.
func (g Geography) Contains(other Geography) bool {
	g = g.Normalize()
	other = other.Normalize()
	if g.State == "" {
		return true
	}
	if !strings.EqualFold(g.State, other.State) {
		return false
	}
	if g.District != "" && !strings.EqualFold(g.District, other.District) {
		return false
	}
	if g.Block != "" && !strings.EqualFold(g.Block, other.Block) {
		return false
	}
	return true
}
