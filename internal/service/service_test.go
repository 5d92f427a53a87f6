package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thinkfirst/internal/badges"
	"thinkfirst/internal/cache"
	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/evaluator"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/models"
	"thinkfirst/migrations"
)

// stepClock is a test clock that can be moved forward
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const day = 24 * time.Hour

// fakeEvaluator returns a fixed evaluation or error
type fakeEvaluator struct {
	mu    sync.Mutex
	ev    models.Evaluation
	err   error
	calls int
	last  evaluator.Request
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req evaluator.Request) (models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return models.Evaluation{}, f.err
	}
	return evaluator.Normalize(f.ev, req.MasteryMode), nil
}

func (f *fakeEvaluator) lastRequest() evaluator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeEvaluator) set(ev models.Evaluation, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ev, f.err = ev, err
}

type poolEmail struct {
	to        string
	learner   string
	remaining int
}

type fakeNotifier struct {
	mu     sync.Mutex
	badges map[string][]string
	pool   []poolEmail
}

func (n *fakeNotifier) Enabled() bool { return true }

func (n *fakeNotifier) BadgesEarned(ctx context.Context, to, learner string, awarded []models.AwardedBadge) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.badges == nil {
		n.badges = make(map[string][]string)
	}
	for _, b := range awarded {
		n.badges[to] = append(n.badges[to], b.ID)
	}
	return nil
}

func (n *fakeNotifier) PoolBorrowed(ctx context.Context, to, learner string, remaining int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pool = append(n.pool, poolEmail{to: to, learner: learner, remaining: remaining})
	return nil
}

func unlocked(effort int) models.Evaluation {
	return models.Evaluation{
		EffortScore:        effort,
		UnderstandingScore: 2,
		WhatIsRight:        "good reasoning",
		Unlock:             true,
		FullExplanation:    "the answer",
	}
}

type testEnv struct {
	db       *database.DB
	clock    *stepClock
	eval     *fakeEvaluator
	notifier *fakeNotifier
	store    *cache.MemoryStore

	accounts *AccountService
	streaks  *StreakService
	freezes  *FreezeService
	badges   *BadgeService
	learning *LearningService
	backup   *BackupService
}

// newTestEnv wires every service over a fresh sqlite database. The clock starts at noon UTC
// on 2024-01-15 so time-of-day badges stay out of the way.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS, nil))

	store := cache.NewMemoryStore(cache.DefaultConfig())
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		db:       db,
		clock:    &stepClock{now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)},
		eval:     &fakeEvaluator{ev: unlocked(2)},
		notifier: &fakeNotifier{},
		store:    store,
	}

	boundary := clock.NewBoundary(time.UTC)
	snapshots := cache.NewSnapshots(store, time.Minute, nil)

	env.freezes = NewFreezeService(db, freeze.NewGrantPolicy(boundary, 5), env.clock, nil)
	env.streaks = NewStreakService(db, boundary, env.clock, snapshots, nil)
	env.badges = NewBadgeService(db, badges.NewEvaluator(badges.Default(), boundary), env.clock, snapshots, nil)
	env.accounts = NewAccountService(db, env.freezes, nil)
	env.backup = NewBackupService(db, env.clock, nil)
	env.learning = NewLearningService(LearningDeps{
		DB:        db,
		Evaluator: env.eval,
		Streaks:   env.streaks,
		Freezes:   env.freezes,
		Badges:    env.badges,
		Notifier:  env.notifier,
		Boundary:  boundary,
		Clock:     env.clock,
		Snapshots: snapshots,
	})
	return env
}

func (e *testEnv) newUser(t *testing.T, plan models.Plan, familyID *int64) *models.User {
	t.Helper()
	user, err := e.accounts.CreateUser(context.Background(), CreateUserRequest{Name: "Ada", Plan: string(plan), FamilyID: familyID})
	require.NoError(t, err)
	return user
}

func (e *testEnv) newFamily(t *testing.T) *models.Family {
	t.Helper()
	family, err := e.accounts.CreateFamily(context.Background(), CreateFamilyRequest{Name: "Lovelace", ParentEmail: "parent@example.com"})
	require.NoError(t, err)
	return family
}

func (e *testEnv) submit(t *testing.T, userID int64) *SubmitResult {
	t.Helper()
	res, err := e.learning.SubmitAttempt(context.Background(), SubmitRequest{
		UserID:   userID,
		Question: "Why is the sky blue?",
		Attempt:  "Because blue light scatters more in the air.",
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) setPersonal(t *testing.T, userID int64, n int) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(), "UPDATE freeze_states SET personal_freezes = ? WHERE user_id = ?", n, userID)
	require.NoError(t, err)
}

func (e *testEnv) setPool(t *testing.T, familyID int64, n int) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(), "UPDATE families SET pool_freezes = ? WHERE id = ?", n, familyID)
	require.NoError(t, err)
}

func badgeIDs(awarded []models.AwardedBadge) []string {
	ids := make([]string, len(awarded))
	for i, b := range awarded {
		ids[i] = b.ID
	}
	return ids
}
