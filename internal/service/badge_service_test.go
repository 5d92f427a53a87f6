package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkfirst/internal/models"
)

func TestBadgeListIncludesCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, models.PlanSolo, nil)

	list, err := env.badges.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Earned)
	assert.Equal(t, env.badges.evaluator.Catalog().Len(), len(list.Catalog))

	env.submit(t, user.ID)

	list, err = env.badges.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list.Earned, 1)
	assert.Equal(t, "first_unlock", list.Earned[0].BadgeID)

	_, err = env.badges.List(ctx, 999)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBadgeCheckIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, models.PlanSolo, nil)
	env.submit(t, user.ID)

	awarded, err := env.badges.Check(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, awarded)

	_, err = env.db.ExecContext(ctx, "DELETE FROM earned_badges WHERE user_id = ?", user.ID)
	require.NoError(t, err)

	awarded, err = env.badges.Check(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_unlock"}, badgeIDs(awarded))

	awarded, err = env.badges.Check(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

func TestAwardManual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, models.PlanSolo, nil)

	badge, err := env.badges.AwardManual(ctx, user.ID, "founding_member")
	require.NoError(t, err)
	assert.Equal(t, "founding_member", badge.ID)
	assert.Equal(t, env.clock.Now(), badge.AwardedAt)

	tests := []struct {
		name    string
		userID  int64
		badgeID string
		want    Kind
	}{
		{"already earned", user.ID, "founding_member", KindConflict},
		{"saved count not reached", user.ID, "lifesaver", KindConflict},
		{"automatic badge", user.ID, "streak_3", KindValidation},
		{"unknown badge", user.ID, "no_such_badge", KindNotFound},
		{"unknown user", 999, "founding_member", KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.badges.AwardManual(ctx, tt.userID, tt.badgeID)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestAwardManualSavedCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, models.PlanSolo, nil)

	// Five rescues: three personal freezes, then two more credited
	_, err := env.freezes.CreditFreezes(ctx, user.ID, 2)
	require.NoError(t, err)
	env.submit(t, user.ID)
	for i := 0; i < 5; i++ {
		env.clock.Advance(2 * day)
		res := env.submit(t, user.ID)
		require.True(t, res.FreezeUsedToday, "rescue %d", i+1)
	}

	badge, err := env.badges.AwardManual(ctx, user.ID, "lifesaver")
	require.NoError(t, err)
	assert.Equal(t, "lifesaver", badge.ID)
}
