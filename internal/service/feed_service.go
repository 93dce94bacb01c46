package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"localpulse/internal/cache"
	"localpulse/internal/feed"
	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// FeedService queries published content and assembles feed views. Filters
// run in the store, so every matching item is reachable however old it is.
type FeedService struct {
	contents   repository.ContentRepository
	users      repository.UserRepository
	categories []string
	pageSize   int
	sectionCap int
	cacheTTL   time.Duration
}

// FeedOptions configures feed assembly.
type FeedOptions struct {
	Categories []string
	PageSize   int
	SectionCap int
	CacheTTL   time.Duration
}

// FeedQuery is a feed request as received from a client. Limit and Offset
// page through flat views; grouped views ignore them.
type FeedQuery struct {
	UserID    uint
	Category  string
	Geography models.Geography
	Query     string
	NearMe    bool
	Limit     int
	Offset    int
}

const defaultFeedPageSize = 50

// NewFeedService returns a new FeedService.
func NewFeedService(contents repository.ContentRepository, users repository.UserRepository, opts FeedOptions) *FeedService {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultFeedPageSize
	}
	if opts.SectionCap <= 0 {
		opts.SectionCap = feed.DefaultSectionCap
	}
	return &FeedService{
		contents:   contents,
		users:      users,
		categories: opts.Categories,
		pageSize:   opts.PageSize,
		sectionCap: opts.SectionCap,
		cacheTTL:   opts.CacheTTL,
	}
}

// Categories returns the configured category order.
func (s *FeedService) Categories() []string {
	return s.categories
}

// Filter turns a query into a feed filter. Near-me copies the caller's
// preferred geography; a geography sent along with near-me refines it.
func (s *FeedService) Filter(ctx context.Context, q FeedQuery) (feed.Filter, error) {
	f := feed.NewFilter()
	if q.NearMe || strings.EqualFold(strings.TrimSpace(q.Category), feed.CategoryNearMe) {
		var user *models.User
		if q.UserID != 0 {
			u, err := s.users.GetByID(ctx, q.UserID)
			if err != nil && !repository.IsNotFound(err) {
				return f, err
			}
			user = u
		}
		nearMe, err := f.NearMe(user)
		if err != nil {
			return f, err
		}
		f = nearMe
		if !q.Geography.IsZero() {
			f = f.WithGeography(q.Geography)
		}
	} else {
		f = f.WithCategory(q.Category).WithGeography(q.Geography)
	}
	return f.WithSearch(q.Query), nil
}

// Build resolves the filter, loads the matching items and assembles the view.
func (s *FeedService) Build(ctx context.Context, q FeedQuery) (*feed.View, error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "Build",
		attribute.String("feed.category", q.Category))
	defer span.End()

	f, err := s.Filter(ctx, q)
	if err != nil {
		return nil, err
	}
	if f.Mode() == feed.ModeFlat {
		view, err := s.flat(ctx, f, q)
		if err != nil {
			span.SetError(err)
		}
		return view, err
	}

	items, err := s.grouped(ctx, f, q.UserID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	view := feed.Assemble(items, f, s.categories, s.sectionCap)
	return &view, nil
}

// flat loads one page of the unbounded filtered list.
func (s *FeedService) flat(ctx context.Context, f feed.Filter, q FeedQuery) (*feed.View, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	offset := max(q.Offset, 0)
	items, err := s.contents.List(ctx, contentQuery(f, limit, offset), q.UserID)
	if err != nil {
		return nil, err
	}
	view := feed.Assemble(items, f, s.categories, s.sectionCap)
	if len(items) == limit {
		view.NextOffset = offset + limit
	}
	return &view, nil
}

// grouped loads what the grouped view can show: the newest items overall
// and the newest items of every category present, each capped at the
// section size. The anonymous default feed is cached.
func (s *FeedService) grouped(ctx context.Context, f feed.Filter, userID uint) ([]*models.Content, error) {
	if userID != 0 || s.cacheTTL <= 0 || !f.Geography().IsZero() {
		return s.sections(ctx, f, userID)
	}
	var items []*models.Content
	err := cache.Aside(ctx, cache.FeedGroupedKey, &items, s.cacheTTL, func() error {
		var err error
		items, err = s.sections(ctx, f, 0)
		return err
	})
	return items, err
}

func (s *FeedService) sections(ctx context.Context, f feed.Filter, userID uint) ([]*models.Content, error) {
	latest, err := s.contents.List(ctx, contentQuery(f, s.sectionCap, 0), userID)
	if err != nil {
		return nil, err
	}
	names, err := s.contents.Categories(ctx, f.Geography())
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(latest))
	merged := make([]*models.Content, 0, len(latest)+len(names)*s.sectionCap)
	add := func(items []*models.Content) {
		for _, c := range items {
			if _, dup := seen[c.ID]; !dup {
				seen[c.ID] = struct{}{}
				merged = append(merged, c)
			}
		}
	}
	add(latest)
	for _, name := range names {
		page, err := s.contents.List(ctx, contentQuery(f.WithCategory(name), s.sectionCap, 0), userID)
		if err != nil {
			return nil, err
		}
		add(page)
	}
	slices.SortStableFunc(merged, func(a, b *models.Content) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return merged, nil
}

// contentQuery maps a filter onto the store predicates it implies.
func contentQuery(f feed.Filter, limit, offset int) repository.ContentQuery {
	q := repository.ContentQuery{
		Geography: f.Geography(),
		Text:      f.Query(),
		Limit:     limit,
		Offset:    offset,
	}
	switch category := f.Category(); category {
	case feed.CategoryLatest, feed.CategoryNearMe:
	default:
		q.Category = category
	}
	return q
}
