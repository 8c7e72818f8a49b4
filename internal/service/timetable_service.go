package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type substituteRangeReader interface {
	ListByRange(ctx context.Context, classID, section string, from, to models.Date) ([]models.SubstituteAssignment, error)
}

// TimetableConfig governs entry editing.
type TimetableConfig struct {
	LockOnPublish bool
}

// TimetableService creates, edits, swaps and publishes schedule entries.
// Teacher and room clashes are returned as warnings; only structural
// problems block a write.
type TimetableService struct {
	store       *ScheduleStore
	substitutes substituteRangeReader
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	cfg         TimetableConfig
}

// NewTimetableService wires the entry mutator.
func NewTimetableService(store *ScheduleStore, substitutes substituteRangeReader, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg TimetableConfig) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		store:       store,
		substitutes: substitutes,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// CreateEntry places a lesson into an empty cell of a week.
func (s *TimetableService) CreateEntry(ctx context.Context, req dto.CreateEntryRequest) (*models.ScheduleEntry, []models.Conflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry payload")
	}
	key, err := parseWeekKey(req.ClassID, req.Section, req.WeekStart)
	if err != nil {
		return nil, nil, err
	}
	day, _ := models.ParseDay(req.Day)
	if err := s.ensurePeriodInRange(ctx, req.ClassID, req.PeriodNo); err != nil {
		return nil, nil, err
	}

	editable := true
	if req.IsEditable != nil {
		editable = *req.IsEditable
	}
	entry := models.ScheduleEntry{
		ID:             uuid.NewString(),
		AcademicYearID: req.AcademicYearID,
		ClassID:        key.ClassID,
		Section:        key.Section,
		WeekStart:      key.WeekStart,
		Day:            day,
		PeriodNo:       req.PeriodNo,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		RoomID:         req.RoomID,
		IsEditable:     editable,
	}

	var conflicts []models.Conflict
	err = s.store.WithWeekLock(ctx, key, func(ctx context.Context) error {
		week, err := s.store.FreshWeek(ctx, key)
		if err != nil {
			return err
		}
		if occupant := findAtSlot(week, entry.Day, entry.PeriodNo, ""); occupant != nil {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s period %d is already filled for class %s-%s", entry.Day, entry.PeriodNo, key.ClassID, key.Section))
		}
		entry.IsPublished = weekPublished(week)

		if conflicts, err = s.slotWarnings(ctx, entry); err != nil {
			return err
		}
		saved := []models.ScheduleEntry{entry}
		if err := s.store.Save(ctx, saved); err != nil {
			return err
		}
		entry = saved[0]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordMutation("create")
	s.metrics.RecordConflicts(conflicts)
	s.logger.Info("schedule entry created",
		zap.String("entry_id", entry.ID),
		zap.String("week", key.String()),
		zap.Int("conflicts", len(conflicts)),
	)
	return &entry, conflicts, nil
}

// UpdateEntry applies a patch to an entry. A locked entry only accepts a
// patch that unlocks it and changes nothing else.
func (s *TimetableService) UpdateEntry(ctx context.Context, id string, req dto.UpdateEntryRequest) (*models.ScheduleEntry, []models.Conflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry patch")
	}
	current, err := s.store.Entry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.PeriodNo != nil {
		if err := s.ensurePeriodInRange(ctx, current.ClassID, *req.PeriodNo); err != nil {
			return nil, nil, err
		}
	}

	var updated models.ScheduleEntry
	var conflicts []models.Conflict
	err = s.store.WithWeekLock(ctx, current.Key(), func(ctx context.Context) error {
		fresh, err := s.store.Entry(ctx, id)
		if err != nil {
			return err
		}
		if !fresh.IsEditable && !isUnlockOnly(req) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("schedule entry %s is locked", id))
		}

		updated = applyEntryPatch(*fresh, req)
		if updated.Day != fresh.Day || updated.PeriodNo != fresh.PeriodNo {
			week, err := s.store.FreshWeek(ctx, fresh.Key())
			if err != nil {
				return err
			}
			if occupant := findAtSlot(week, updated.Day, updated.PeriodNo, updated.ID); occupant != nil {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s period %d is already filled by entry %s", updated.Day, updated.PeriodNo, occupant.ID))
			}
		}

		if conflicts, err = s.slotWarnings(ctx, updated); err != nil {
			return err
		}
		saved := []models.ScheduleEntry{updated}
		if err := s.store.Save(ctx, saved); err != nil {
			return err
		}
		updated = saved[0]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordMutation("update")
	s.metrics.RecordConflicts(conflicts)
	s.logger.Info("schedule entry updated", zap.String("entry_id", id), zap.Int("conflicts", len(conflicts)))
	return &updated, conflicts, nil
}

// DeleteEntry removes an entry. Deleting an unknown id is ErrNotFound.
func (s *TimetableService) DeleteEntry(ctx context.Context, id string) error {
	current, err := s.store.Entry(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.WithWeekLock(ctx, current.Key(), func(ctx context.Context) error {
		fresh, err := s.store.Entry(ctx, id)
		if err != nil {
			return err
		}
		if !fresh.IsEditable {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("schedule entry %s is locked", id))
		}
		return s.store.Remove(ctx, *fresh)
	})
	if err != nil {
		return err
	}
	s.metrics.RecordMutation("delete")
	s.logger.Info("schedule entry deleted", zap.String("entry_id", id))
	return nil
}

// SwapEntries exchanges subject, teacher and room between two entries of the
// same week. Ids and slots stay put; both rows are written in one transaction.
func (s *TimetableService) SwapEntries(ctx context.Context, req dto.SwapEntriesRequest) (*dto.SwapEntriesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	a, err := s.store.Entry(ctx, req.EntryA)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Entry(ctx, req.EntryB)
	if err != nil {
		return nil, err
	}
	if a.Key() != b.Key() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entries must belong to the same class-section week")
	}

	result := &dto.SwapEntriesResult{}
	err = s.store.WithWeekLock(ctx, a.Key(), func(ctx context.Context) error {
		freshA, err := s.store.Entry(ctx, req.EntryA)
		if err != nil {
			return err
		}
		freshB, err := s.store.Entry(ctx, req.EntryB)
		if err != nil {
			return err
		}
		if !freshA.IsEditable || !freshB.IsEditable {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "locked entries cannot be swapped")
		}

		swappedA, swappedB := swapContent(*freshA, *freshB)
		pair := []models.ScheduleEntry{swappedA, swappedB}

		slotA, err := s.store.Slot(ctx, swappedA.Slot())
		if err != nil {
			return err
		}
		slotB, err := s.store.Slot(ctx, swappedB.Slot())
		if err != nil {
			return err
		}
		candidates := append(append(slotA, slotB...), pair...)
		result.Conflicts = ConflictsInvolving(DetectConflicts(candidates), swappedA.ID, swappedB.ID)

		if err := s.store.Save(ctx, pair); err != nil {
			return err
		}
		result.Entries = pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMutation("swap")
	s.metrics.RecordConflicts(result.Conflicts)
	s.logger.Info("schedule entries swapped", zap.String("entry_a", req.EntryA), zap.String("entry_b", req.EntryB))
	return result, nil
}

// PublishWeek sets is_published for every entry of a week at once.
func (s *TimetableService) PublishWeek(ctx context.Context, req dto.PublishWeekRequest) (*dto.PublishWeekResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}
	key, err := parseWeekKey(req.ClassID, req.Section, req.WeekStart)
	if err != nil {
		return nil, err
	}

	var updated int64
	err = s.store.WithWeekLock(ctx, key, func(ctx context.Context) error {
		n, err := s.store.SetPublished(ctx, key, req.Publish, s.cfg.LockOnPublish)
		if err != nil {
			return err
		}
		if n == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule entries for week %s", key))
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMutation("publish")
	s.logger.Info("week publication changed", zap.String("week", key.String()), zap.Bool("published", req.Publish), zap.Int64("entries", updated))
	return &dto.PublishWeekResponse{Key: key, Published: req.Publish, Updated: int(updated)}, nil
}

// GetWeek assembles the grid view of a week from reader snapshots.
func (s *TimetableService) GetWeek(ctx context.Context, query dto.WeekQuery) (*models.WeekView, error) {
	key, err := s.parseWeekQuery(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Week(ctx, key)
	if err != nil {
		return nil, err
	}
	periods, err := s.store.Periods(ctx, key.ClassID)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.weekConflicts(ctx, key, entries)
	if err != nil {
		return nil, err
	}

	view := &models.WeekView{
		Key:         key,
		Periods:     periods,
		Entries:     entries,
		Conflicts:   conflicts,
		Substitutes: []models.SubstituteAssignment{},
		Published:   weekPublished(entries),
	}
	if s.substitutes != nil {
		subs, err := s.substitutes.ListByRange(ctx, key.ClassID, key.Section, key.WeekStart, key.WeekStart.AddDays(len(models.SchoolDays)-1))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitutes")
		}
		if subs != nil {
			view.Substitutes = subs
		}
	}
	return view, nil
}

// WeekConflicts reports every conflict touching a class-section week,
// including clashes with other classes in the same slots.
func (s *TimetableService) WeekConflicts(ctx context.Context, query dto.WeekQuery) ([]models.Conflict, error) {
	key, err := s.parseWeekQuery(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Week(ctx, key)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.weekConflicts(ctx, key, entries)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConflicts(conflicts)
	return conflicts, nil
}

// ListPeriods returns the bell schedule of a class.
func (s *TimetableService) ListPeriods(ctx context.Context, classID string) ([]models.Period, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	return s.store.Periods(ctx, classID)
}

// SetPeriods replaces a class's bell schedule. Periods must be numbered
// 1..n without gaps and must not overlap.
func (s *TimetableService) SetPeriods(ctx context.Context, classID string, req dto.SetPeriodsRequest) ([]models.Period, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid periods payload")
	}
	periods, err := normalizePeriods(classID, req.Periods)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplacePeriods(ctx, classID, periods); err != nil {
		return nil, err
	}
	s.logger.Info("periods replaced", zap.String("class_id", classID), zap.Int("count", len(periods)))
	return periods, nil
}

func (s *TimetableService) parseWeekQuery(query dto.WeekQuery) (models.WeekKey, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.WeekKey{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week query")
	}
	return parseWeekKey(query.ClassID, query.Section, query.WeekStart)
}

func (s *TimetableService) weekConflicts(ctx context.Context, key models.WeekKey, entries []models.ScheduleEntry) ([]models.Conflict, error) {
	if len(entries) == 0 {
		return []models.Conflict{}, nil
	}
	all, err := s.store.WeekAcrossClasses(ctx, key.WeekStart)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ConflictsInvolving(DetectConflicts(append(all, entries...)), ids...), nil
}

func (s *TimetableService) ensurePeriodInRange(ctx context.Context, classID string, periodNo int) error {
	limit, err := s.store.PeriodsPerDay(ctx, classID)
	if err != nil {
		return err
	}
	if periodNo < 1 || periodNo > limit {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("periodNo must be between 1 and %d", limit))
	}
	return nil
}

// slotWarnings runs the detector over every class at the entry's slot.
func (s *TimetableService) slotWarnings(ctx context.Context, entry models.ScheduleEntry) ([]models.Conflict, error) {
	occupants, err := s.store.Slot(ctx, entry.Slot())
	if err != nil {
		return nil, err
	}
	return ConflictsInvolving(DetectConflicts(append(occupants, entry)), entry.ID), nil
}

func parseWeekKey(classID, section, weekStart string) (models.WeekKey, error) {
	date, err := models.ParseDate(weekStart)
	if err != nil {
		return models.WeekKey{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekStart")
	}
	if !date.IsMonday() {
		return models.WeekKey{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekStart %s must be a Monday", date))
	}
	return models.WeekKey{ClassID: classID, Section: section, WeekStart: date}, nil
}

func findAtSlot(week []models.ScheduleEntry, day models.Day, periodNo int, excludeID string) *models.ScheduleEntry {
	for i := range week {
		if week[i].Day == day && week[i].PeriodNo == periodNo && week[i].ID != excludeID {
			return &week[i]
		}
	}
	return nil
}

func weekPublished(entries []models.ScheduleEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if !e.IsPublished {
			return false
		}
	}
	return true
}

func isUnlockOnly(req dto.UpdateEntryRequest) bool {
	return req.IsEditable != nil && *req.IsEditable &&
		req.Day == nil && req.PeriodNo == nil && req.SubjectID == nil &&
		req.TeacherID == nil && req.RoomID == nil && !req.ClearRoom
}

func applyEntryPatch(entry models.ScheduleEntry, req dto.UpdateEntryRequest) models.ScheduleEntry {
	if req.Day != nil {
		entry.Day, _ = models.ParseDay(*req.Day)
	}
	if req.PeriodNo != nil {
		entry.PeriodNo = *req.PeriodNo
	}
	if req.SubjectID != nil {
		entry.SubjectID = *req.SubjectID
	}
	if req.TeacherID != nil {
		entry.TeacherID = *req.TeacherID
	}
	if req.ClearRoom {
		entry.RoomID = nil
	} else if req.RoomID != nil {
		room := *req.RoomID
		entry.RoomID = &room
	}
	if req.IsEditable != nil {
		entry.IsEditable = *req.IsEditable
	}
	return entry
}

func swapContent(a, b models.ScheduleEntry) (models.ScheduleEntry, models.ScheduleEntry) {
	a.SubjectID, b.SubjectID = b.SubjectID, a.SubjectID
	a.TeacherID, b.TeacherID = b.TeacherID, a.TeacherID
	a.RoomID, b.RoomID = b.RoomID, a.RoomID
	return a, b
}

func normalizePeriods(classID string, input []dto.PeriodRequest) ([]models.Period, error) {
	periods := make([]models.Period, 0, len(input))
	for _, p := range input {
		periods = append(periods, models.Period{ClassID: classID, PeriodNo: p.PeriodNo, StartTime: p.StartTime, EndTime: p.EndTime})
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].PeriodNo < periods[j].PeriodNo })

	var prevEnd time.Time
	for i, p := range periods {
		if p.PeriodNo != i+1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("periods must be numbered 1..%d without gaps", len(periods)))
		}
		start, errStart := time.Parse("15:04", p.StartTime)
		end, errEnd := time.Parse("15:04", p.EndTime)
		if errStart != nil || errEnd != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d has an invalid time", p.PeriodNo))
		}
		if !start.Before(end) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d must start before it ends", p.PeriodNo))
		}
		if i > 0 && start.Before(prevEnd) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d overlaps period %d", p.PeriodNo, p.PeriodNo-1))
		}
		prevEnd = end
	}
	return periods, nil
}
