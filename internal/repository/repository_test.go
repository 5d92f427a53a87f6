package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/history"
	"thinkfirst/internal/models"
	"thinkfirst/migrations"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS, nil))
	return db
}

func createUser(t *testing.T, db *database.DB, plan models.Plan, familyID *int64) *models.User {
	t.Helper()
	user := &models.User{Name: "learner", Plan: plan, FamilyID: familyID}
	require.NoError(t, NewUserRepository(db).CreateUser(context.Background(), user))
	return user
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	users := NewUserRepository(db)

	fam := &models.Family{Name: "Curie", ParentEmail: "marie@example.com"}
	require.NoError(t, families.CreateFamily(ctx, fam))

	u := createUser(t, db, models.PlanFamily, &fam.ID)
	assert.NotZero(t, u.ID)

	got, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PlanFamily, got.Plan)
	require.NotNil(t, got.FamilyID)
	assert.Equal(t, fam.ID, *got.FamilyID)

	missing, err := users.GetUserByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, users.UpdatePlan(ctx, u.ID, models.PlanSolo, nil))
	got, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanSolo, got.Plan)
	assert.Nil(t, got.FamilyID)

	assert.Error(t, users.UpdatePlan(ctx, 9999, models.PlanFree, nil))
}

func TestFamilyPoolBorrowNeverNegative(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)

	fam := &models.Family{Name: "Noether", PoolFreezes: 2}
	require.NoError(t, families.CreateFamily(ctx, fam))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := families.TryBorrow(ctx, fam.ID)
			if err != nil {
				t.Errorf("borrow: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, wins)
	balance, err := families.Balance(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	ok, err := families.TryBorrow(ctx, fam.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFamilyPoolTopUpOncePerMonth(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	boundary := clock.NewBoundary(time.UTC)

	fam := &models.Family{Name: "Franklin"}
	require.NoError(t, families.CreateFamily(ctx, fam))

	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	ok, err := families.TopUp(ctx, fam.ID, 5, jan, boundary.MonthStart(jan))
	require.NoError(t, err)
	assert.True(t, ok)

	later := jan.Add(48 * time.Hour)
	ok, err = families.TopUp(ctx, fam.ID, 5, later, boundary.MonthStart(later))
	require.NoError(t, err)
	assert.False(t, ok, "second top-up in the same month")

	feb := time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC)
	ok, err = families.TopUp(ctx, fam.ID, 5, feb, boundary.MonthStart(feb))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := families.GetFamilyByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.PoolFreezes)
	require.NotNil(t, got.LastPoolGrantAt)
	assert.True(t, got.LastPoolGrantAt.Equal(feb))
}

func TestFamilyRepositorySatisfiesPool(t *testing.T) {
	var p freeze.Pool = NewFamilyRepository(newTestDB(t))
	balance, err := p.Balance(context.Background(), 42)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestStreakCompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	streaks := NewStreakRepository(db)
	u := createUser(t, db, models.PlanFree, nil)

	s, err := streaks.GetStreak(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StreakState{}, s)

	first := models.StreakState{Count: 1, LastDate: "2024-01-15"}
	ok, err := streaks.CompareAndSwap(ctx, u.ID, models.StreakState{}, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// stale prev loses
	ok, err = streaks.CompareAndSwap(ctx, u.ID, models.StreakState{}, models.StreakState{Count: 9, LastDate: "2024-01-15"})
	require.NoError(t, err)
	assert.False(t, ok)

	second := models.StreakState{Count: 2, LastDate: "2024-01-16"}
	ok, err = streaks.CompareAndSwap(ctx, u.ID, first, second)
	require.NoError(t, err)
	assert.True(t, ok)

	s, err = streaks.GetStreak(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second, s)
}

func TestFreezeGrantAndConsume(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	freezes := NewFreezeRepository(db)
	boundary := clock.NewBoundary(time.UTC)
	u := createUser(t, db, models.PlanSolo, nil)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	ok, err := freezes.ClaimGrant(ctx, u.ID, 3, now, boundary.MonthStart(now))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = freezes.ClaimGrant(ctx, u.ID, 3, now.Add(time.Hour), boundary.MonthStart(now))
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		ok, err := freezes.TryConsume(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err = freezes.TryConsume(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok, "personal freezes never go negative")

	state, err := freezes.GetFreezeState(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.PersonalFreezes)
	require.NotNil(t, state.LastFreezeGrantDate)
	assert.True(t, state.LastFreezeGrantDate.Equal(now))

	require.NoError(t, freezes.AddPersonal(ctx, u.ID, 2))
	state, err = freezes.GetFreezeState(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, state.PersonalFreezes)
	assert.Error(t, freezes.AddPersonal(ctx, u.ID, 0))
}

func TestFreezeEventsCapped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	freezes := NewFreezeRepository(db)
	u := createUser(t, db, models.PlanFree, nil)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < freeze.MaxHistory+5; i++ {
		ev := models.FreezeEvent{Type: models.FreezeConsumed, Source: models.SourcePersonal, Timestamp: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, freezes.AppendEvent(ctx, u.ID, ev))
	}

	events, err := freezes.ListEvents(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, events, freeze.MaxHistory)
	assert.True(t, events[0].Timestamp.Equal(base.Add(5*time.Hour)), "oldest retained event")
	assert.True(t, events[len(events)-1].Timestamp.Equal(base.Add(time.Duration(freeze.MaxHistory+4)*time.Hour)))
}

func TestAttemptHistoryKeepsFifty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	attempts := NewAttemptRepository(db)
	u := createUser(t, db, models.PlanFree, nil)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < history.MaxAttempts+3; i++ {
		rec := models.AttemptRecord{
			ID:       uuid.NewString(),
			UserID:   u.ID,
			Question: fmt.Sprintf("q%d", i),
			Attempt:  "my attempt",
			Evaluation: models.Evaluation{
				EffortScore: i % 4,
				Unlock:      i%2 == 0,
			},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, attempts.AppendAttempt(ctx, rec))
	}

	n, err := attempts.CountAttempts(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, history.MaxAttempts, n)

	list, err := attempts.ListAttempts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, history.MaxAttempts)
	assert.Equal(t, fmt.Sprintf("q%d", history.MaxAttempts+2), list[0].Question, "most recent first")
	assert.Equal(t, "q3", list[len(list)-1].Question)
	assert.Equal(t, (history.MaxAttempts+2)%4, list[0].Evaluation.EffortScore)
}

func TestBadgeAwardIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	badgeRepo := NewBadgeRepository(db)
	u := createUser(t, db, models.PlanFree, nil)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	ok, err := badgeRepo.Award(ctx, u.ID, "first_unlock", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = badgeRepo.Award(ctx, u.ID, "first_unlock", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	earned, err := badgeRepo.ListEarned(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "first_unlock", earned[0].BadgeID)
	assert.True(t, earned[0].AwardedAt.Equal(at), "awardedAt is immutable")
}

func TestNotificationConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	settings := NewSettingsRepository(db)
	u := createUser(t, db, models.PlanFree, nil)

	cfg, err := settings.GetNotificationConfig(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNotificationConfig(), cfg)

	require.NoError(t, settings.SetNotificationConfig(ctx, u.ID, models.NotificationConfig{BadgeEmails: false, PoolEmails: true}))
	require.NoError(t, settings.SetNotificationConfig(ctx, u.ID, models.NotificationConfig{BadgeEmails: false, PoolEmails: false}))

	cfg, err = settings.GetNotificationConfig(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, cfg.BadgeEmails)
	assert.False(t, cfg.PoolEmails)
}

func TestTransactionBoundRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var userID int64
	err := db.WithTx(ctx, func(tx *database.Tx) error {
		u := &models.User{Name: "tx", Plan: models.PlanFree}
		if err := NewUserRepository(tx).CreateUser(ctx, u); err != nil {
			return err
		}
		userID = u.ID
		if err := NewStreakRepository(tx).InitStreak(ctx, u.ID); err != nil {
			return err
		}
		return NewFreezeRepository(tx).InitFreezeState(ctx, u.ID)
	})
	require.NoError(t, err)

	got, err := NewUserRepository(db).GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tx", got.Name)
}
