package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

func TestStoreWeekServesFromCacheAndInvalidatesOnSave(t *testing.T) {
	repo := newMemEntryRepo(lesson("a", "10", models.DayMonday, 1, "math", "t1", nil))
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	store := NewScheduleStore(repo, newMemPeriodRepo(), nil, cache, nil, nil, ScheduleStoreConfig{})
	ctx := context.Background()

	first, err := store.Week(ctx, weekKey("10"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, err = store.Week(ctx, weekKey("10"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loadWeeks)
	assert.True(t, cacheRepo.has(weekCacheKey(weekKey("10"))))

	require.NoError(t, store.Save(ctx, []models.ScheduleEntry{lesson("b", "10", models.DayMonday, 2, "bio", "t2", nil)}))
	assert.False(t, cacheRepo.has(weekCacheKey(weekKey("10"))))

	week, err := store.Week(ctx, weekKey("10"))
	require.NoError(t, err)
	assert.Len(t, week, 2)
	assert.Equal(t, 2, repo.loadWeeks)
}

// stallingWeekRepo reads a week, then holds the first caller until released.
type stallingWeekRepo struct {
	*memEntryRepo
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (r *stallingWeekRepo) LoadWeek(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	entries, err := r.memEntryRepo.LoadWeek(ctx, key)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return entries, err
}

func TestStoreWeekDoesNotCacheLoadRacingAWrite(t *testing.T) {
	repo := &stallingWeekRepo{
		memEntryRepo: newMemEntryRepo(lesson("a", "10", models.DayMonday, 1, "math", "t1", nil)),
		loaded:       make(chan struct{}),
		release:      make(chan struct{}),
	}
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	store := NewScheduleStore(repo, newMemPeriodRepo(), nil, cache, nil, nil, ScheduleStoreConfig{})
	ctx := context.Background()

	stale := make(chan []models.ScheduleEntry, 1)
	go func() {
		week, err := store.Week(ctx, weekKey("10"))
		assert.NoError(t, err)
		stale <- week
	}()

	<-repo.loaded
	require.NoError(t, store.Save(ctx, []models.ScheduleEntry{lesson("b", "10", models.DayMonday, 2, "bio", "t2", nil)}))
	close(repo.release)
	assert.Len(t, <-stale, 1)

	assert.False(t, cacheRepo.has(weekCacheKey(weekKey("10"))))
	week, err := store.Week(ctx, weekKey("10"))
	require.NoError(t, err)
	assert.Len(t, week, 2)

	again, err := store.Week(ctx, weekKey("10"))
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.True(t, cacheRepo.has(weekCacheKey(weekKey("10"))))
}

func TestStoreWeekReturnsCopies(t *testing.T) {
	repo := newMemEntryRepo(lesson("a", "10", models.DayMonday, 1, "math", "t1", strPtr("r1")))
	store := newTestStore(repo)

	week, err := store.Week(context.Background(), weekKey("10"))
	require.NoError(t, err)
	week[0].TeacherID = "changed"
	*week[0].RoomID = "changed"

	stored, _ := repo.get("a")
	assert.Equal(t, "t1", stored.TeacherID)
	assert.Equal(t, "r1", stored.Room())
}

func TestStoreLockTimeoutIsConcurrentModification(t *testing.T) {
	locker := lock.NewKeyedMutex()
	store := NewScheduleStore(newMemEntryRepo(), newMemPeriodRepo(), locker, nil, nil, nil, ScheduleStoreConfig{LockWait: 20 * time.Millisecond})

	release, err := locker.Acquire(context.Background(), weekLockKey(weekKey("10")))
	require.NoError(t, err)
	defer release()

	err = store.WithWeekLock(context.Background(), weekKey("10"), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConcurrentModification.Code))

	err = store.WithWeekLock(context.Background(), weekKey("11"), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestStoreCancelledWaitIsCancelled(t *testing.T) {
	locker := lock.NewKeyedMutex()
	store := NewScheduleStore(newMemEntryRepo(), newMemPeriodRepo(), locker, nil, nil, nil, ScheduleStoreConfig{LockWait: time.Second})
	release, err := locker.Acquire(context.Background(), weekStartLockKey(testWeek))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.WithGenerationLock(ctx, weekKey("10"), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCancelled.Code))
}

func TestStorePeriodsPerDayFallsBackToDefault(t *testing.T) {
	periods := newMemPeriodRepo()
	store := NewScheduleStore(newMemEntryRepo(), periods, nil, nil, nil, nil, ScheduleStoreConfig{DefaultPeriodsPerDay: 7})
	ctx := context.Background()

	n, err := store.PeriodsPerDay(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, store.ReplacePeriods(ctx, "10", []models.Period{{ClassID: "10", PeriodNo: 2}, {ClassID: "10", PeriodNo: 1}}))
	n, err = store.PeriodsPerDay(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreEntryMapsMissingRow(t *testing.T) {
	store := newTestStore(newMemEntryRepo())
	_, err := store.Entry(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	err = store.Remove(context.Background(), models.ScheduleEntry{ID: "missing"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
