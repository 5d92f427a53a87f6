package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkfirst/internal/models"
)

func TestCreateUserInitializesState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.newUser(t, models.PlanFree, nil)
	assert.NotZero(t, user.ID)

	got, err := env.accounts.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	s, err := env.streaks.GetStreak(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, s.Count)

	fs, err := env.freezes.GetFreezeState(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.PersonalFreezes)
	assert.Zero(t, fs.FamilyPoolFreezes)
	require.NotNil(t, fs.LastFreezeGrantDate)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	missingFamily := int64(42)

	tests := []struct {
		name string
		req  CreateUserRequest
		want Kind
	}{
		{"blank name", CreateUserRequest{Name: " ", Plan: "solo"}, KindValidation},
		{"unknown plan", CreateUserRequest{Name: "Ada", Plan: "platinum"}, KindValidation},
		{"family plan without family", CreateUserRequest{Name: "Ada", Plan: "family"}, KindValidation},
		{"unknown family", CreateUserRequest{Name: "Ada", Plan: "family", FamilyID: &missingFamily}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.CreateUser(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestCreateFamilyValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accounts.CreateFamily(context.Background(), CreateFamilyRequest{Name: "Curie", ParentEmail: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestNotificationConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, models.PlanSolo, nil)

	cfg, err := env.accounts.GetNotificationConfig(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNotificationConfig(), cfg)

	want := models.NotificationConfig{BadgeEmails: false, PoolEmails: true}
	_, err = env.accounts.SetNotificationConfig(ctx, user.ID, want)
	require.NoError(t, err)

	cfg, err = env.accounts.GetNotificationConfig(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, want, cfg)

	_, err = env.accounts.SetNotificationConfig(ctx, 999, want)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBackupExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.newFamily(t)
	user := env.newUser(t, models.PlanFamily, &family.ID)
	env.submit(t, user.ID)

	var buf bytes.Buffer
	require.NoError(t, env.backup.ExportToWriter(ctx, &buf))

	var backup BackupData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &backup))
	assert.Equal(t, BackupVersion, backup.Version)
	assert.Equal(t, "sqlite3", backup.DatabaseType)
	require.Len(t, backup.Families, 1)
	assert.Equal(t, 5, backup.Families[0].PoolFreezes)

	require.Len(t, backup.Users, 1)
	u := backup.Users[0]
	assert.Equal(t, user.ID, u.ID)
	assert.Equal(t, 1, u.Streak.Count)
	assert.Equal(t, 3, u.Freeze.PersonalFreezes)
	assert.Equal(t, 5, u.Freeze.FamilyPoolFreezes)
	assert.Equal(t, 1, u.Attempts)
	require.Len(t, u.EarnedBadges, 1)
	assert.Equal(t, "first_unlock", u.EarnedBadges[0].BadgeID)
}
