package feed

import (
	"fmt"
	"testing"

	"localpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categories = []string{"Politics", "Sports", "Health"}

func item(id uint, category string, geo models.Geography) *models.Content {
	return &models.Content{ID: id, Title: fmt.Sprintf("Item %d", id), Body: "<p>body</p>", Category: category, Geography: geo}
}

func ids(items []*models.Content) []uint {
	out := make([]uint, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func TestFilter_DistrictExcludesOtherDistricts(t *testing.T) {
	t.Parallel()
	f := NewFilter().WithCategory("Sports").WithGeography(models.Geography{State: "Bihar", District: "Patna"})

	assert.True(t, f.Matches(item(1, "Sports", models.Geography{State: "Bihar", District: "Patna", Block: "Danapur"})))
	assert.False(t, f.Matches(item(2, "Sports", models.Geography{State: "Bihar", District: "Gaya"})))
	assert.False(t, f.Matches(item(3, "Sports", models.Geography{State: "Bihar"})), "state-only item never matches a district filter")
}

func TestFilter_StateIncludesEveryDistrict(t *testing.T) {
	t.Parallel()
	f := NewFilter().WithGeography(models.Geography{State: "Bihar"})

	assert.True(t, f.Matches(item(1, "Sports", models.Geography{State: "Bihar", District: "Gaya"})))
	assert.True(t, f.Matches(item(2, "Sports", models.Geography{State: "bihar"})))
	assert.False(t, f.Matches(item(3, "Sports", models.Geography{State: "Assam"})))
}

func TestFilter_NoGeographyFiltersByCategoryOnly(t *testing.T) {
	t.Parallel()
	f := NewFilter().WithCategory("sports")
	assert.True(t, f.Matches(item(1, "Sports", models.Geography{State: "Assam"})))
	assert.False(t, f.Matches(item(2, "Health", models.Geography{})))
}

func TestFilter_NearMe(t *testing.T) {
	t.Parallel()
	_, err := NewFilter().NearMe(nil)
	assert.ErrorIs(t, err, ErrLoginRequired)

	_, err = NewFilter().NearMe(&models.User{ID: 3})
	assert.ErrorIs(t, err, ErrProfileIncomplete)

	user := &models.User{ID: 3, Preferred: models.Geography{State: "Bihar", District: "Patna"}}
	f, err := NewFilter().NearMe(user)
	require.NoError(t, err)
	assert.Equal(t, CategoryNearMe, f.Category())
	assert.Equal(t, user.Preferred, f.Geography())
	assert.Equal(t, ModeGrouped, f.Mode())

	refined := f.WithGeography(models.Geography{State: "Bihar", District: "Patna", Block: "Danapur"})
	assert.Equal(t, ModeFlat, refined.Mode())
	assert.Equal(t, ModeGrouped, f.Mode(), "original value is unchanged")
}

func TestFilter_ModeSwitches(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ModeGrouped, NewFilter().Mode())
	assert.Equal(t, ModeGrouped, NewFilter().WithGeography(models.Geography{State: "Bihar"}).Mode())
	assert.Equal(t, ModeFlat, NewFilter().WithCategory("Sports").Mode())
	assert.Equal(t, ModeFlat, NewFilter().WithSearch("flood").Mode())
	assert.Equal(t, ModeGrouped, NewFilter().WithCategory("Sports").WithCategory("latest").Mode())
}

func TestFilter_ResetOnLogout(t *testing.T) {
	t.Parallel()
	user := &models.User{ID: 1, Preferred: models.Geography{State: "Bihar"}}
	f, err := NewFilter().WithSearch("x").NearMe(user)
	require.NoError(t, err)

	reset := f.Reset()
	assert.Equal(t, CategoryLatest, reset.Category())
	assert.True(t, reset.Geography().IsZero())
	assert.Empty(t, reset.Query())
	assert.Equal(t, ModeGrouped, reset.Mode())
}

func TestFilter_SearchMatchesTitleAndStrippedBody(t *testing.T) {
	t.Parallel()
	f := NewFilter().WithSearch("FLOOD")
	assert.True(t, f.Matches(&models.Content{Title: "Flood alert"}))
	assert.True(t, f.Matches(&models.Content{Title: "Alert", Body: "<b>flood</b> waters"}))
	assert.False(t, f.Matches(&models.Content{Title: "Alert", Body: "<flood>dry</flood>"}))
}

func TestFilter_StateRoundTrip(t *testing.T) {
	t.Parallel()
	user := &models.User{ID: 1, Preferred: models.Geography{State: "Bihar"}}
	f, err := NewFilter().NearMe(user)
	require.NoError(t, err)
	f = f.WithGeography(models.Geography{State: "Bihar", District: "Gaya"})

	back := FromState(f.State())
	assert.Equal(t, f, back)
}

func TestAssemble_ItemInLatestAndCategoryOnce(t *testing.T) {
	t.Parallel()
	sports := item(1, "Sports", models.Geography{State: "Bihar"})
	items := []*models.Content{sports, sports, item(2, "Health", models.Geography{})}

	view := Assemble(items, NewFilter(), categories, 8)
	require.Equal(t, ModeGrouped, view.Mode)
	require.Len(t, view.Sections, 3)
	assert.Equal(t, LatestSection, view.Sections[0].Category)
	assert.Equal(t, []uint{1, 2}, ids(view.Sections[0].Items))
	assert.Equal(t, "Sports", view.Sections[1].Category)
	assert.Equal(t, []uint{1}, ids(view.Sections[1].Items))
	assert.Equal(t, "Health", view.Sections[2].Category)

	for _, s := range view.Sections {
		seen := map[uint]bool{}
		for _, c := range s.Items {
			assert.False(t, seen[c.ID], "duplicate %d in %s", c.ID, s.Category)
			seen[c.ID] = true
		}
	}
}

func TestAssemble_SectionsCapped(t *testing.T) {
	t.Parallel()
	var items []*models.Content
	for i := uint(1); i <= 20; i++ {
		items = append(items, item(i, "Sports", models.Geography{}))
	}
	items = append(items, item(21, "Weather", models.Geography{}))

	view := Assemble(items, NewFilter(), categories, 8)
	require.Len(t, view.Sections, 3)
	assert.Len(t, view.Sections[0].Items, 8)
	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6, 7, 8}, ids(view.Sections[0].Items))
	assert.Len(t, view.Sections[1].Items, 8)
	assert.Equal(t, "Weather", view.Sections[2].Category, "unknown categories follow configured ones")
}

func TestAssemble_FlatIsUnbounded(t *testing.T) {
	t.Parallel()
	var items []*models.Content
	for i := uint(1); i <= 20; i++ {
		items = append(items, item(i, "Sports", models.Geography{}))
	}
	view := Assemble(items, NewFilter().WithCategory("Sports"), categories, 8)
	assert.Equal(t, ModeFlat, view.Mode)
	assert.Len(t, view.Items, 20)
	assert.Empty(t, view.Sections)
}

func TestAssemble_EmptyState(t *testing.T) {
	t.Parallel()
	items := []*models.Content{item(1, "Sports", models.Geography{State: "Assam"})}
	view := Assemble(items, NewFilter().WithGeography(models.Geography{State: "Bihar"}), categories, 8)
	assert.True(t, view.Empty)
	assert.Empty(t, view.Sections)
	assert.Empty(t, view.Items)

	assert.True(t, Assemble(nil, NewFilter(), categories, 0).Empty)
}
