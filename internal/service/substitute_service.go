package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type substituteRepository interface {
	Upsert(ctx context.Context, assignment *models.SubstituteAssignment) error
	FindByEntryDate(ctx context.Context, entryID string, date models.Date) (*models.SubstituteAssignment, error)
	FindBySlotDate(ctx context.Context, classID, section string, day models.Day, periodNo int, date models.Date) (*models.SubstituteAssignment, error)
	ListByDate(ctx context.Context, date models.Date) ([]models.SubstituteAssignment, error)
	Delete(ctx context.Context, entryID string, date models.Date) error
}

// SubstituteService finds cover teachers and records date-scoped overlays.
// Base entries are never modified.
type SubstituteService struct {
	store          *ScheduleStore
	substitutes    substituteRepository
	teachers       teacherCatalog
	validator      *validator.Validate
	logger         *zap.Logger
	metrics        *MetricsService
	defaultMaxLoad int
}

// NewSubstituteService wires the resolver.
func NewSubstituteService(store *ScheduleStore, substitutes substituteRepository, teachers teacherCatalog, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, defaultMaxLoad int) *SubstituteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultMaxLoad <= 0 {
		defaultMaxLoad = 6
	}
	return &SubstituteService{
		store:          store,
		substitutes:    substitutes,
		teachers:       teachers,
		validator:      validate,
		logger:         logger,
		metrics:        metrics,
		defaultMaxLoad: defaultMaxLoad,
	}
}

// FindAvailable lists active teachers for one lesson occurrence, free ones
// first, then by lighter load, then by name.
func (s *SubstituteService) FindAvailable(ctx context.Context, query dto.AvailableTeachersQuery) ([]models.AvailableTeacher, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	date, day, err := parseOccurrence(query.Date, query.Day)
	if err != nil {
		return nil, err
	}
	weekStart := date.WeekStart()

	var (
		teachers []models.Teacher
		slot     []models.ScheduleEntry
		dayLoad  []models.ScheduleEntry
		duties   []models.SubstituteAssignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if teachers, err = s.teachers.List(gctx, models.TeacherFilter{Active: boolPtr(true)}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		slot, err = s.store.Slot(gctx, models.SlotKey{WeekStart: weekStart, Day: day, PeriodNo: query.PeriodNo})
		return err
	})
	g.Go(func() error {
		var err error
		dayLoad, err = s.store.Day(gctx, weekStart, day)
		return err
	})
	g.Go(func() error {
		var err error
		if duties, err = s.substitutes.ListByDate(gctx, date); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute duties")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	busy := make(map[string]bool)
	load := make(map[string]int)
	for _, e := range slot {
		busy[e.TeacherID] = true
	}
	for _, e := range dayLoad {
		load[e.TeacherID]++
	}
	for _, duty := range duties {
		load[duty.SubstituteTeacherID]++
		if duty.PeriodNo == query.PeriodNo {
			busy[duty.SubstituteTeacherID] = true
		}
	}

	result := make([]models.AvailableTeacher, 0, len(teachers))
	for _, t := range teachers {
		if t.ID == query.ExcludeTeacherID {
			continue
		}
		maxLoad := t.MaxLoadPerDay
		if maxLoad <= 0 {
			maxLoad = s.defaultMaxLoad
		}
		result = append(result, models.AvailableTeacher{
			TeacherID:        t.ID,
			TeacherName:      t.FullName,
			IsFreeThisPeriod: !busy[t.ID],
			CurrentLoad:      load[t.ID],
			MaxLoad:          maxLoad,
			PrimarySubject:   t.PrimarySubject,
			Qualification:    t.Qualification,
			ExperienceYears:  t.ExperienceYears,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.IsFreeThisPeriod != b.IsFreeThisPeriod {
			return a.IsFreeThisPeriod
		}
		if a.CurrentLoad != b.CurrentLoad {
			return a.CurrentLoad < b.CurrentLoad
		}
		return strings.ToLower(a.TeacherName) < strings.ToLower(b.TeacherName)
	})
	return result, nil
}

// Assign records who covers an entry on a date, replacing any earlier
// assignment for the same occurrence.
func (s *SubstituteService) Assign(ctx context.Context, req dto.AssignSubstituteRequest) (*models.SubstituteAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute assignment payload")
	}
	date, day, err := parseOccurrence(req.Date, req.Day)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Entry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Day != day || entry.PeriodNo != req.PeriodNo {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %s is scheduled on %s period %d", entry.ID, entry.Day, entry.PeriodNo))
	}
	if date.WeekStart() != entry.WeekStart {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is outside week %s of entry %s", date, entry.WeekStart, entry.ID))
	}
	substitute, err := s.teacher(ctx, req.SubstituteTeacherID)
	if err != nil {
		return nil, err
	}
	absentName := ""
	if absent, err := s.teacher(ctx, req.AbsentTeacherID); err == nil {
		absentName = absent.FullName
	} else if !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		return nil, err
	}

	classID, section := req.ClassID, req.Section
	if classID == "" {
		classID = entry.ClassID
	}
	if section == "" {
		section = entry.Section
	}
	assignment := &models.SubstituteAssignment{
		EntryID:               entry.ID,
		Date:                  date,
		Day:                   day,
		PeriodNo:              entry.PeriodNo,
		AbsentTeacherID:       req.AbsentTeacherID,
		AbsentTeacherName:     absentName,
		SubstituteTeacherID:   substitute.ID,
		SubstituteTeacherName: substitute.FullName,
		Subject:               entry.SubjectID,
		ClassID:               classID,
		Section:               section,
		Reason:                req.Reason,
	}

	var stored *models.SubstituteAssignment
	err = s.store.WithKeyLock(ctx, substituteLockKey(entry.ID, date), func(ctx context.Context) error {
		if err := s.substitutes.Upsert(ctx, assignment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save substitute assignment")
		}
		found, err := s.substitutes.FindByEntryDate(ctx, entry.ID, date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload substitute assignment")
		}
		stored = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSubstituteAssignment()
	s.logger.Info("substitute assigned",
		zap.String("entry_id", entry.ID),
		zap.String("date", string(date)),
		zap.String("absent_teacher_id", req.AbsentTeacherID),
		zap.String("substitute_teacher_id", substitute.ID),
	)
	return stored, nil
}

// Lookup resolves the overlay for an occurrence, by entry id first and then
// by slot. The slot fallback is always scoped to one class-section: the
// entry's own when it exists, otherwise the classId and section given.
func (s *SubstituteService) Lookup(ctx context.Context, query dto.SubstituteLookupQuery) (*models.SubstituteAssignment, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute lookup")
	}
	date, err := models.ParseDate(query.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	day, _ := models.ParseDay(query.Day)
	slot := slotScope{classID: query.ClassID, section: query.Section, day: day, periodNo: query.PeriodNo}
	if query.EntryID == "" && !slot.complete() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entryId or classId, section, day and periodNo are required")
	}

	if query.EntryID != "" {
		assignment, err := s.substitutes.FindByEntryDate(ctx, query.EntryID, date)
		switch {
		case err == nil:
			return assignment, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute assignment")
		}

		entry, err := s.store.Entry(ctx, query.EntryID)
		switch {
		case err == nil:
			slot = slotScope{classID: entry.ClassID, section: entry.Section, day: entry.Day, periodNo: entry.PeriodNo}
		case !appErrors.HasCode(err, appErrors.ErrNotFound.Code):
			return nil, err
		}
	}

	if slot.complete() {
		assignment, err := s.substitutes.FindBySlotDate(ctx, slot.classID, slot.section, slot.day, slot.periodNo, date)
		switch {
		case err == nil:
			return assignment, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute assignment")
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no substitute assigned")
}

type slotScope struct {
	classID  string
	section  string
	day      models.Day
	periodNo int
}

func (s slotScope) complete() bool {
	return s.classID != "" && s.section != "" && s.day != "" && s.periodNo > 0
}

// ListByDate returns every overlay on a date.
func (s *SubstituteService) ListByDate(ctx context.Context, rawDate string) ([]models.SubstituteAssignment, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	list, err := s.substitutes.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitute assignments")
	}
	if list == nil {
		list = []models.SubstituteAssignment{}
	}
	return list, nil
}

// Remove deletes the overlay for one occurrence.
func (s *SubstituteService) Remove(ctx context.Context, entryID, rawDate string) error {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	return s.store.WithKeyLock(ctx, substituteLockKey(entryID, date), func(ctx context.Context) error {
		if err := s.substitutes.Delete(ctx, entryID, date); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "no substitute assigned")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove substitute assignment")
		}
		s.logger.Info("substitute removed", zap.String("entry_id", entryID), zap.String("date", string(date)))
		return nil
	})
}

func (s *SubstituteService) teacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// parseOccurrence checks that day names the weekday of date.
func parseOccurrence(rawDate, rawDay string) (models.Date, models.Day, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	day, ok := models.ParseDay(rawDay)
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid day %q", rawDay))
	}
	actual, ok := date.Day()
	if !ok || actual != day {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s does not fall on %s", date, day))
	}
	return date, day, nil
}

func substituteLockKey(entryID string, date models.Date) string {
	return "substitute:" + entryID + ":" + string(date)
}
