// Package feed assembles the home feed from published content.
//
// Everything here is pure: a Filter value and a slice of items go in, a View
// comes out. Loading content and caching live in the service layer.
package feed

import (
	"strings"

	"localpulse/internal/models"
	"localpulse/internal/validation"
)

// Reserved category names.
const (
	CategoryLatest = "latest"
	CategoryNearMe = "near_me"
)

var (
	// ErrLoginRequired is returned when an anonymous user asks for news near them.
	ErrLoginRequired = models.NewUnauthorizedError("Log in to see news near you")
	// ErrProfileIncomplete is returned when the user has no preferred state.
	ErrProfileIncomplete = models.NewValidationError("Set your state in your profile to see news near you")
)

// Filter is an immutable feed query. Every With method returns a copy.
type Filter struct {
	category  string
	geography models.Geography
	query     string
	refined   bool
}

// State is the serializable form of a Filter.
type State struct {
	Category  string           `json:"category"`
	Geography models.Geography `json:"geography"`
	Query     string           `json:"query,omitempty"`
	Refined   bool             `json:"refined,omitempty"`
}

// NewFilter returns the default filter: latest, no geography, no search.
func NewFilter() Filter {
	return Filter{category: CategoryLatest}
}

// Category returns the selected category.
func (f Filter) Category() string {
	if f.category == "" {
		return CategoryLatest
	}
	return f.category
}

// Geography returns the active geography, possibly zero.
func (f Filter) Geography() models.Geography { return f.geography }

// Query returns the free-text search.
func (f Filter) Query() string { return f.query }

// WithCategory selects a named category or latest. Near-me must go through NearMe.
func (f Filter) WithCategory(category string) Filter {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, CategoryLatest) {
		category = CategoryLatest
	}
	f.category = category
	f.refined = false
	return f
}

// WithGeography replaces the geography. Narrowing a near-me feed marks it refined.
func (f Filter) WithGeography(g models.Geography) Filter {
	f.geography = g.Normalize()
	if f.category == CategoryNearMe {
		f.refined = true
	}
	return f
}

// WithSearch sets the free-text query.
func (f Filter) WithSearch(query string) Filter {
	f.query = strings.TrimSpace(query)
	return f
}

// NearMe switches to the user's preferred geography.
func (f Filter) NearMe(user *models.User) (Filter, error) {
	if user == nil || user.ID == 0 {
		return f, ErrLoginRequired
	}
	preferred := user.Preferred.Normalize()
	if preferred.State == "" {
		return f, ErrProfileIncomplete
	}
	f.category = CategoryNearMe
	f.geography = preferred
	f.refined = false
	return f, nil
}

// Reset returns the filter to its logged-out default.
func (f Filter) Reset() Filter {
	return NewFilter()
}

// Mode decides between the grouped and flat views.
func (f Filter) Mode() Mode {
	switch {
	case f.query != "":
		return ModeFlat
	case f.Category() == CategoryLatest:
		return ModeGrouped
	case f.Category() == CategoryNearMe:
		if f.refined {
			return ModeFlat
		}
		return ModeGrouped
	default:
		return ModeFlat
	}
}

// Matches reports whether an item passes the category, geography and search
// parts of the filter.
func (f Filter) Matches(c *models.Content) bool {
	if c == nil {
		return false
	}
	switch cat := f.Category(); cat {
	case CategoryLatest, CategoryNearMe:
	default:
		if !strings.EqualFold(c.Category, cat) {
			return false
		}
	}
	if !f.geography.Contains(c.Geography) {
		return false
	}
	if f.query != "" {
		q := strings.ToLower(f.query)
		if !strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(validation.StripTags(c.Body)), q) {
			return false
		}
	}
	return true
}

// State exports the filter for API responses.
func (f Filter) State() State {
	return State{
		Category:  f.Category(),
		Geography: f.geography,
		Query:     f.query,
		Refined:   f.refined,
	}
}

// FromState rebuilds a filter from its exported form.
func FromState(s State) Filter {
	f := NewFilter().WithCategory(s.Category)
	if strings.EqualFold(s.Category, CategoryNearMe) {
		f.category = CategoryNearMe
	}
	f.geography = s.Geography.Normalize()
	f.query = strings.TrimSpace(s.Query)
	f.refined = s.Refined && f.category == CategoryNearMe
	return f
}
