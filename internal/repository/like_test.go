package repository

import (
	"context"
	"testing"

	"localpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_CountIsMembershipSize(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLikeRepository(db)
	store := NewStore(db, 10)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	c := testutil.CreateContent(t, db, author.ID, "Match report")
	fans := []uint{
		testutil.CreateUser(t, db, "fan1").ID,
		testutil.CreateUser(t, db, "fan2").ID,
	}

	batch := store.NewBatch()
	for _, id := range fans {
		require.NoError(t, repo.StageLike(batch, c.ID, id))
	}
	// duplicate like collapses into the same membership record
	require.NoError(t, repo.StageLike(batch, c.ID, fans[0]))
	require.NoError(t, batch.Commit(ctx))

	count, err := repo.Count(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	members, err := repo.MemberIDs(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, fans, members)

	liked, err := repo.IsLiked(ctx, c.ID, fans[1])
	require.NoError(t, err)
	assert.True(t, liked)

	batch = store.NewBatch()
	require.NoError(t, repo.StageUnlike(batch, c.ID, fans[1]))
	require.NoError(t, batch.Commit(ctx))

	count, err = repo.Count(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
