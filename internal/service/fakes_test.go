package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const testWeek = models.Date("2024-09-02")

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func lesson(id, classID string, day models.Day, period int, subject, teacher string, room *string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:         id,
		ClassID:    classID,
		Section:    "A",
		WeekStart:  testWeek,
		Day:        day,
		PeriodNo:   period,
		SubjectID:  subject,
		TeacherID:  teacher,
		RoomID:     room,
		IsEditable: true,
	}
}

func weekKey(classID string) models.WeekKey {
	return models.WeekKey{ClassID: classID, Section: "A", WeekStart: testWeek}
}

// memEntryRepo is an in-memory scheduleEntryRepository.
type memEntryRepo struct {
	mu        sync.Mutex
	rows      map[string]models.ScheduleEntry
	loadWeeks int
	saveErr   error
	onSave    func()
}

func newMemEntryRepo(entries ...models.ScheduleEntry) *memEntryRepo {
	r := &memEntryRepo{rows: make(map[string]models.ScheduleEntry)}
	for _, e := range entries {
		r.rows[e.ID] = e
	}
	return r
}

func (r *memEntryRepo) filter(keep func(models.ScheduleEntry) bool) []models.ScheduleEntry {
	result := make([]models.ScheduleEntry, 0)
	for _, e := range r.rows {
		if keep(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Day != b.Day {
			return a.Day.Index() < b.Day.Index()
		}
		if a.PeriodNo != b.PeriodNo {
			return a.PeriodNo < b.PeriodNo
		}
		return a.ID < b.ID
	})
	return copyEntries(result)
}

func (r *memEntryRepo) LoadWeek(_ context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadWeeks++
	return r.filter(func(e models.ScheduleEntry) bool { return e.Key() == key }), nil
}

func (r *memEntryRepo) ListByWeekStart(_ context.Context, weekStart models.Date) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e models.ScheduleEntry) bool { return e.WeekStart == weekStart }), nil
}

func (r *memEntryRepo) LoadSlot(_ context.Context, slot models.SlotKey) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e models.ScheduleEntry) bool { return e.Slot() == slot }), nil
}

func (r *memEntryRepo) LoadDay(_ context.Context, weekStart models.Date, day models.Day) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e models.ScheduleEntry) bool { return e.WeekStart == weekStart && e.Day == day }), nil
}

func (r *memEntryRepo) LoadTeacherBookings(_ context.Context, teacherID string, weekStart models.Date) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e models.ScheduleEntry) bool { return e.WeekStart == weekStart && e.TeacherID == teacherID }), nil
}

func (r *memEntryRepo) FindByID(_ context.Context, id string) (*models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &copyEntries([]models.ScheduleEntry{e})[0], nil
}

func (r *memEntryRepo) SaveEntries(_ context.Context, entries []models.ScheduleEntry) error {
	if r.onSave != nil {
		r.onSave()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		entries[i].UpdatedAt = now
		r.rows[entries[i].ID] = copyEntries(entries[i : i+1])[0]
	}
	return nil
}

func (r *memEntryRepo) ReplaceWeek(_ context.Context, key models.WeekKey, entries []models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.rows {
		if e.Key() == key {
			delete(r.rows, id)
		}
	}
	for _, e := range copyEntries(entries) {
		r.rows[e.ID] = e
	}
	return nil
}

func (r *memEntryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *memEntryRepo) SetPublished(_ context.Context, key models.WeekKey, published, lockEditable bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.rows {
		if e.Key() != key {
			continue
		}
		e.IsPublished = published
		if lockEditable {
			e.IsEditable = !published
		}
		r.rows[id] = e
		n++
	}
	return n, nil
}

func (r *memEntryRepo) all() []models.ScheduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(models.ScheduleEntry) bool { return true })
}

func (r *memEntryRepo) get(id string) (models.ScheduleEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	return e, ok
}

type memPeriodRepo struct {
	mu      sync.Mutex
	byClass map[string][]models.Period
}

func newMemPeriodRepo() *memPeriodRepo {
	return &memPeriodRepo{byClass: make(map[string][]models.Period)}
}

func (r *memPeriodRepo) ListByClass(_ context.Context, classID string) ([]models.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Period(nil), r.byClass[classID]...), nil
}

func (r *memPeriodRepo) ReplaceForClass(_ context.Context, classID string, periods []models.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byClass[classID] = append([]models.Period(nil), periods...)
	return nil
}

type memCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{items: make(map[string][]byte)}
}

func (c *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.items {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(c.items, key)
		}
	}
	return nil
}

func (c *memCacheRepo) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type memSubstituteRepo struct {
	mu    sync.Mutex
	items map[string]models.SubstituteAssignment
	seq   int
}

func newMemSubstituteRepo(items ...models.SubstituteAssignment) *memSubstituteRepo {
	r := &memSubstituteRepo{items: make(map[string]models.SubstituteAssignment)}
	for _, item := range items {
		r.items[item.EntryID+"|"+string(item.Date)] = item
	}
	return r
}

func (r *memSubstituteRepo) Upsert(_ context.Context, a *models.SubstituteAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := a.EntryID + "|" + string(a.Date)
	if existing, ok := r.items[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else if a.ID == "" {
		r.seq++
		a.ID = "sub-" + strconv.Itoa(r.seq)
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = time.Now().UTC()
	r.items[key] = *a
	return nil
}

func (r *memSubstituteRepo) FindByEntryDate(_ context.Context, entryID string, date models.Date) (*models.SubstituteAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[entryID+"|"+string(date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *memSubstituteRepo) FindBySlotDate(_ context.Context, classID, section string, day models.Day, periodNo int, date models.Date) (*models.SubstituteAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.Date == date && item.Day == day && item.PeriodNo == periodNo &&
			item.ClassID == classID && item.Section == section {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memSubstituteRepo) ListByDate(_ context.Context, date models.Date) ([]models.SubstituteAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []models.SubstituteAssignment
	for _, item := range r.items {
		if item.Date == date {
			list = append(list, item)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PeriodNo < list[j].PeriodNo })
	return list, nil
}

func (r *memSubstituteRepo) ListByRange(_ context.Context, classID, section string, from, to models.Date) ([]models.SubstituteAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []models.SubstituteAssignment
	for _, item := range r.items {
		if item.ClassID == classID && item.Section == section && item.Date >= from && item.Date <= to {
			list = append(list, item)
		}
	}
	return list, nil
}

func (r *memSubstituteRepo) Delete(_ context.Context, entryID string, date models.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entryID + "|" + string(date)
	if _, ok := r.items[key]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, key)
	return nil
}

type memTeachers struct {
	list []models.Teacher
}

func (m *memTeachers) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	result := make([]models.Teacher, 0, len(m.list))
	for _, t := range m.list {
		if filter.Active != nil && t.Active != *filter.Active {
			continue
		}
		if filter.SubjectID != "" && !t.Teaches(filter.SubjectID) {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

func (m *memTeachers) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	for _, t := range m.list {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memSubjects map[string][]models.SubjectRequirement

func (m memSubjects) ListByClass(_ context.Context, classID string) ([]models.SubjectRequirement, error) {
	return m[classID], nil
}

type memRooms []models.Room

func (m memRooms) List(context.Context) ([]models.Room, error) {
	return m, nil
}

func teacher(id, name string, subjects ...string) models.Teacher {
	return models.Teacher{ID: id, FullName: name, SubjectIDs: subjects, Active: true}
}

func newTestStore(repo *memEntryRepo) *ScheduleStore {
	return NewScheduleStore(repo, newMemPeriodRepo(), nil, nil, nil, nil, ScheduleStoreConfig{LockWait: time.Second, DefaultPeriodsPerDay: 8})
}
