package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

type scheduleEntryRepository interface {
	LoadWeek(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error)
	ListByWeekStart(ctx context.Context, weekStart models.Date) ([]models.ScheduleEntry, error)
	LoadSlot(ctx context.Context, slot models.SlotKey) ([]models.ScheduleEntry, error)
	LoadDay(ctx context.Context, weekStart models.Date, day models.Day) ([]models.ScheduleEntry, error)
	LoadTeacherBookings(ctx context.Context, teacherID string, weekStart models.Date) ([]models.ScheduleEntry, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	SaveEntries(ctx context.Context, entries []models.ScheduleEntry) error
	ReplaceWeek(ctx context.Context, key models.WeekKey, entries []models.ScheduleEntry) error
	Delete(ctx context.Context, id string) error
	SetPublished(ctx context.Context, key models.WeekKey, published, lockEditable bool) (int64, error)
}

type periodRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Period, error)
	ReplaceForClass(ctx context.Context, classID string, periods []models.Period) error
}

// ScheduleStoreConfig tunes locking and caching.
type ScheduleStoreConfig struct {
	LockWait             time.Duration
	CacheTTL             time.Duration
	DefaultPeriodsPerDay int
}

// ScheduleStore fronts entry and period persistence. Writers take per-week
// locks and read fresh rows; readers get shared, cached snapshots that are
// copied before being handed out.
type ScheduleStore struct {
	entries scheduleEntryRepository
	periods periodRepository
	locker  lock.Locker
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	group   singleflight.Group
	cfg     ScheduleStoreConfig

	// versions counts invalidations per week cache key. A load only
	// populates the cache if no invalidation happened while it ran.
	versionMu sync.Mutex
	versions  map[string]uint64
}

// NewScheduleStore wires the store.
func NewScheduleStore(entries scheduleEntryRepository, periods periodRepository, locker lock.Locker, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ScheduleStoreConfig) *ScheduleStore {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}
	if cfg.DefaultPeriodsPerDay <= 0 {
		cfg.DefaultPeriodsPerDay = 8
	}
	return &ScheduleStore{
		entries:  entries,
		periods:  periods,
		locker:   locker,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		versions: make(map[string]uint64),
	}
}

func weekLockKey(key models.WeekKey) string {
	return "week:" + key.String()
}

func weekStartLockKey(weekStart models.Date) string {
	return "weekstart:" + string(weekStart)
}

func weekCacheKey(key models.WeekKey) string {
	return "timetable:week:" + key.String()
}

// WithWeekLock runs fn while holding the writer lock for key.
func (s *ScheduleStore) WithWeekLock(ctx context.Context, key models.WeekKey, fn func(ctx context.Context) error) error {
	return s.withLocks(ctx, []string{weekLockKey(key)}, fn)
}

// WithGenerationLock holds both the week-start and week locks, in that order.
func (s *ScheduleStore) WithGenerationLock(ctx context.Context, key models.WeekKey, fn func(ctx context.Context) error) error {
	return s.withLocks(ctx, []string{weekStartLockKey(key.WeekStart), weekLockKey(key)}, fn)
}

// WithKeyLock serializes fn on an arbitrary key.
func (s *ScheduleStore) WithKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return s.withLocks(ctx, []string{key}, fn)
}

func (s *ScheduleStore) withLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	releases := make([]lock.Release, 0, len(keys))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, key := range keys {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}
	return fn(ctx)
}

func (s *ScheduleStore) acquire(ctx context.Context, key string) (lock.Release, error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	release, err := s.locker.Acquire(waitCtx, key)
	s.metrics.ObserveLockWait(lockScope(key), time.Since(start))
	if err == nil {
		return release, nil
	}
	if ctx.Err() != nil {
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "operation cancelled while waiting for lock")
	}
	if errors.Is(err, lock.ErrLockTimeout) {
		s.logger.Warn("lock wait exceeded", zap.String("key", key), zap.Duration("wait", s.cfg.LockWait))
		return nil, appErrors.Clone(appErrors.ErrConcurrentModification, fmt.Sprintf("%s is being modified concurrently, retry", key))
	}
	return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire lock")
}

func lockScope(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// Week returns a reader snapshot of a class-section week.
func (s *ScheduleStore) Week(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	cacheKey := weekCacheKey(key)
	var cached []models.ScheduleEntry
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	version := s.version(cacheKey)
	v, err, _ := s.group.Do(cacheKey+"@"+strconv.FormatUint(version, 10), func() (interface{}, error) {
		entries, err := s.entries.LoadWeek(ctx, key)
		if err != nil {
			return nil, err
		}
		s.setIfCurrent(ctx, cacheKey, version, entries)
		return entries, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return copyEntries(v.([]models.ScheduleEntry)), nil
}

// WeekAcrossClasses returns a reader snapshot of every class for weekStart.
func (s *ScheduleStore) WeekAcrossClasses(ctx context.Context, weekStart models.Date) ([]models.ScheduleEntry, error) {
	v, err, _ := s.group.Do("weekstart:"+string(weekStart), func() (interface{}, error) {
		return s.entries.ListByWeekStart(ctx, weekStart)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week across classes")
	}
	return copyEntries(v.([]models.ScheduleEntry)), nil
}

// FreshWeek reads a week straight from the repository. Writers use this
// under the week lock.
func (s *ScheduleStore) FreshWeek(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.LoadWeek(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return entries, nil
}

// FreshWeekAcrossClasses reads every class for weekStart without sharing.
func (s *ScheduleStore) FreshWeekAcrossClasses(ctx context.Context, weekStart models.Date) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.ListByWeekStart(ctx, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week across classes")
	}
	return entries, nil
}

// Slot returns every class's entries at one slot.
func (s *ScheduleStore) Slot(ctx context.Context, slot models.SlotKey) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.LoadSlot(ctx, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return entries, nil
}

// Day returns every class's entries on one day of a week.
func (s *ScheduleStore) Day(ctx context.Context, weekStart models.Date, day models.Day) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.LoadDay(ctx, weekStart, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day")
	}
	return entries, nil
}

// TeacherBookings returns a teacher's entries for one week.
func (s *ScheduleStore) TeacherBookings(ctx context.Context, teacherID string, weekStart models.Date) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.LoadTeacherBookings(ctx, teacherID, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher bookings")
	}
	return entries, nil
}

// Entry loads one entry, mapping a missing row to ErrNotFound.
func (s *ScheduleStore) Entry(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("schedule entry %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}
	return entry, nil
}

// Save upserts entries atomically and drops the affected week snapshots.
func (s *ScheduleStore) Save(ctx context.Context, entries []models.ScheduleEntry) error {
	if err := s.entries.SaveEntries(ctx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule entries")
	}
	seen := make(map[models.WeekKey]bool)
	for _, entry := range entries {
		if !seen[entry.Key()] {
			seen[entry.Key()] = true
			s.invalidate(ctx, entry.Key())
		}
	}
	return nil
}

// Replace swaps a week's entries for a new set atomically.
func (s *ScheduleStore) Replace(ctx context.Context, key models.WeekKey, entries []models.ScheduleEntry) error {
	if err := s.entries.ReplaceWeek(ctx, key, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace week")
	}
	s.invalidate(ctx, key)
	return nil
}

// Remove deletes one entry.
func (s *ScheduleStore) Remove(ctx context.Context, entry models.ScheduleEntry) error {
	if err := s.entries.Delete(ctx, entry.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("schedule entry %s not found", entry.ID))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule entry")
	}
	s.invalidate(ctx, entry.Key())
	return nil
}

// SetPublished flips publication for a week and reports the rows touched.
func (s *ScheduleStore) SetPublished(ctx context.Context, key models.WeekKey, published, lockEditable bool) (int64, error) {
	updated, err := s.entries.SetPublished(ctx, key, published, lockEditable)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication state")
	}
	s.invalidate(ctx, key)
	return updated, nil
}

// Periods returns a class's periods ordered by number.
func (s *ScheduleStore) Periods(ctx context.Context, classID string) ([]models.Period, error) {
	periods, err := s.periods.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].PeriodNo < periods[j].PeriodNo })
	return periods, nil
}

// PeriodsPerDay is the highest configured period for a class, or the
// configured default when the class has none.
func (s *ScheduleStore) PeriodsPerDay(ctx context.Context, classID string) (int, error) {
	periods, err := s.Periods(ctx, classID)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, p := range periods {
		if p.PeriodNo > highest {
			highest = p.PeriodNo
		}
	}
	if highest == 0 {
		return s.cfg.DefaultPeriodsPerDay, nil
	}
	return highest, nil
}

// ReplacePeriods stores a class's period table.
func (s *ScheduleStore) ReplacePeriods(ctx context.Context, classID string, periods []models.Period) error {
	if err := s.periods.ReplaceForClass(ctx, classID, periods); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save periods")
	}
	return nil
}

func (s *ScheduleStore) invalidate(ctx context.Context, key models.WeekKey) {
	cacheKey := weekCacheKey(key)
	s.versionMu.Lock()
	s.versions[cacheKey]++
	s.versionMu.Unlock()
	s.cache.Invalidate(ctx, cacheKey)
}

func (s *ScheduleStore) version(cacheKey string) uint64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.versions[cacheKey]
}

// setIfCurrent caches a snapshot unless the week was invalidated after the
// load started. The check and the write happen under versionMu, so a racing
// invalidate either bumps first and the write is skipped, or deletes after
// the write.
func (s *ScheduleStore) setIfCurrent(ctx context.Context, cacheKey string, version uint64, entries []models.ScheduleEntry) {
	if !s.cache.Enabled() {
		return
	}
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	if s.versions[cacheKey] != version {
		return
	}
	s.cache.Set(ctx, cacheKey, entries, s.cfg.CacheTTL)
}

func copyEntries(src []models.ScheduleEntry) []models.ScheduleEntry {
	if src == nil {
		return []models.ScheduleEntry{}
	}
	out := make([]models.ScheduleEntry, len(src))
	copy(out, src)
	for i := range out {
		if out[i].RoomID != nil {
			room := *out[i].RoomID
			out[i].RoomID = &room
		}
	}
	return out
}
