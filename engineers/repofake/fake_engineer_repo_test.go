package engineerrepofake_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/ses-client-auth/engineers"
	engineerrepofake "github.com/jrsteele09/ses-client-auth/engineers/repofake"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/visibility"
	"github.com/stretchr/testify/require"
)

func TestFakeEngineerRepo_List(t *testing.T) {
	repo := engineerrepofake.NewFakeEngineerRepo()
	require.NoError(t, repo.Upsert(&engineers.Engineer{ID: "e1", Name: "Aoki", Status: engineers.StatusWaiting}))
	require.NoError(t, repo.Upsert(&engineers.Engineer{ID: "e2", Name: "Baba", Status: engineers.StatusAssigned}))
	require.NoError(t, repo.Upsert(&engineers.Engineer{ID: "e3", Name: "Chiba", Status: engineers.StatusWaitingSoon}))

	ctx := context.Background()

	all, err := repo.List(ctx, visibility.Filter{Kind: visibility.Unrestricted})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "e1", all[0].ID)

	waiting, err := repo.List(ctx, visibility.Resolve(nil))
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	require.Equal(t, "e1", waiting[0].ID)
	require.Equal(t, "e3", waiting[1].ID)

	denied, err := repo.List(ctx, visibility.Deny())
	require.NoError(t, err)
	require.Empty(t, denied)
}

func TestFakeEngineerRepo_Find(t *testing.T) {
	repo := engineerrepofake.NewFakeEngineerRepo()
	e := &engineers.Engineer{Name: "Doi", Status: engineers.StatusInactive}
	require.NoError(t, repo.Upsert(e))
	require.NotEmpty(t, e.ID)

	found, err := repo.Find(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, *e, *found)

	_, err = repo.Find(context.Background(), "missing")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}
