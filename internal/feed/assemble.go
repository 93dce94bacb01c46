package feed

import (
	"strings"

	"localpulse/internal/models"
)

// Mode is the feed layout.
type Mode string

const (
	ModeGrouped Mode = "grouped"
	ModeFlat    Mode = "flat"
)

// DefaultSectionCap bounds each grouped section.
const DefaultSectionCap = 8

// LatestSection titles the leading section of the grouped view.
const LatestSection = "Latest"

// Section is one capped list in the grouped view.
type Section struct {
	Category string            `json:"category"`
	Items    []*models.Content `json:"items"`
}

// View is the assembled feed.
type View struct {
	Mode     Mode              `json:"mode"`
	Filter   State             `json:"filter"`
	Sections []Section         `json:"sections,omitempty"`
	Items    []*models.Content `json:"items,omitempty"`
	Empty    bool              `json:"empty"`
	// NextOffset is set on a flat view when another page may follow.
	NextOffset int `json:"next_offset,omitempty"`
}

// Assemble filters items (already newest first) and lays them out. The
// caller supplies every candidate; Assemble never widens the input.
// In grouped mode the first section holds the newest matches and one
// section per category follows, configured categories first and then any
// others in first-seen order. No item appears twice within a section.
func Assemble(items []*models.Content, f Filter, categories []string, sectionCap int) View {
	if sectionCap <= 0 {
		sectionCap = DefaultSectionCap
	}
	matched := make([]*models.Content, 0, len(items))
	seen := make(map[uint]struct{}, len(items))
	for _, c := range items {
		if !f.Matches(c) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		matched = append(matched, c)
	}

	view := View{Mode: f.Mode(), Filter: f.State(), Empty: len(matched) == 0}
	if view.Empty {
		return view
	}
	if view.Mode == ModeFlat {
		view.Items = matched
		return view
	}

	view.Sections = append(view.Sections, Section{Category: LatestSection, Items: capped(matched, sectionCap)})

	order := make([]string, 0, len(categories))
	index := make(map[string]int)
	for _, name := range categories {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(order)
		order = append(order, strings.TrimSpace(name))
	}
	buckets := make([][]*models.Content, len(order))
	for _, c := range matched {
		key := strings.ToLower(strings.TrimSpace(c.Category))
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(order)
			index[key] = i
			order = append(order, strings.TrimSpace(c.Category))
			buckets = append(buckets, nil)
		}
		if len(buckets[i]) < sectionCap {
			buckets[i] = append(buckets[i], c)
		}
	}
	for i, name := range order {
		if len(buckets[i]) == 0 {
			continue
		}
		view.Sections = append(view.Sections, Section{Category: name, Items: buckets[i]})
	}
	return view
}

func capped(items []*models.Content, n int) []*models.Content {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
