package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherCatalog interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type subjectRequirementReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.SubjectRequirement, error)
}

type roomCatalog interface {
	List(ctx context.Context) ([]models.Room, error)
}

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	ProposalTTL          time.Duration
	RepairIterations     int
	DefaultMaxLoadPerDay int
}

// TimetableGeneratorService fills a class-section week with a greedy
// constraint-satisfaction pass followed by gap repair. Hard constraints
// (free cell, free teacher, free room, teacher max load) are never broken;
// units that cannot be placed are reported instead.
type TimetableGeneratorService struct {
	store     *ScheduleStore
	teachers  teacherCatalog
	subjects  subjectRequirementReader
	rooms     roomCatalog
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	proposals *proposalStore
	cfg       TimetableGeneratorConfig
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	store *ScheduleStore,
	teachers teacherCatalog,
	subjects subjectRequirementReader,
	rooms roomCatalog,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.RepairIterations <= 0 {
		cfg.RepairIterations = 12
	}
	if cfg.DefaultMaxLoadPerDay <= 0 {
		cfg.DefaultMaxLoadPerDay = 6
	}
	return &TimetableGeneratorService{
		store:     store,
		teachers:  teachers,
		subjects:  subjects,
		rooms:     rooms,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		proposals: newProposalStore(cfg.ProposalTTL),
		cfg:       cfg,
	}
}

// Generate builds a week for the requested class-section. Partial
// infeasibility is reported through Unresolved, never as an error. With
// Commit set the result replaces the stored week atomically.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
	start := time.Now()
	result, err := s.generate(ctx, req)
	outcome := "ok"
	switch {
	case err != nil && appErrors.HasCode(err, appErrors.ErrCancelled.Code):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	case len(result.Unresolved) > 0:
		outcome = "partial"
	}
	unplaced := 0
	if result != nil {
		unplaced = len(result.Unresolved)
	}
	s.metrics.ObserveGeneration(outcome, time.Since(start), unplaced)
	return result, err
}

func (s *TimetableGeneratorService) generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if err := validateTeacherConstraints(req.Constraints); err != nil {
		return nil, err
	}
	key, err := parseWeekKey(req.ClassID, req.Section, req.WeekStart)
	if err != nil {
		return nil, err
	}
	days := normalizeDays(req.Days)

	periods := req.PeriodsPerDay
	if periods == 0 {
		if periods, err = s.store.PeriodsPerDay(ctx, key.ClassID); err != nil {
			return nil, err
		}
	}

	demands, err := s.loadDemands(ctx, req)
	if err != nil {
		return nil, err
	}
	teachers, err := s.teachers.List(ctx, models.TeacherFilter{Active: boolPtr(true)})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	others, err := s.otherClassBookings(ctx, key)
	if err != nil {
		return nil, err
	}

	resolveQualifiedTeachers(demands, teachers, req.Constraints.CoreSubjectNames)
	availability := s.buildTeacherAvailability(teachers, req.Constraints, others)
	hints, unrecognised := parseSoftHints(req.CustomConstraints, demands)

	state := newSchedulerState(days, periods, availability, newRoomAvailability(rooms, others), hints, req.Constraints.PrioritizeCoreSubjects)
	units := buildUnits(demands, req.Constraints.PrioritizeCoreSubjects)

	unresolved := make([]models.Conflict, 0)
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "generation cancelled")
		}
		if reason, ok := state.Assign(unit); !ok {
			unresolved = append(unresolved, unplacedConflict(unit, reason))
		}
	}
	iterations := state.repairGaps(s.cfg.RepairIterations)

	entries := state.exportEntries(key, req.AcademicYearID, !req.LockEntries)
	soft := evaluateSoftHints(hints, entries, periods, demands)
	soft = append(soft, unrecognised...)
	minViolations, loadPenalty := evaluateMinLoads(req.Constraints, availability, entries, days)
	soft = append(soft, minViolations...)

	gapPenalty := calculateGapPenalty(days, entries)
	score := math.Max(0, 100-(float64(len(unresolved))*10+gapPenalty*2+loadPenalty*5+float64(len(soft))*3))

	result := &dto.GenerateTimetableResult{
		ProposalID:     uuid.NewString(),
		Key:            key,
		Entries:        entries,
		Unresolved:     unresolved,
		SoftViolations: soft,
		Stats: dto.GenerationStats{
			Units:            len(units),
			Placed:           len(entries),
			Unplaced:         len(unresolved),
			RepairIterations: iterations,
			GapPenalty:       gapPenalty,
			LoadPenalty:      loadPenalty,
			DurationMs:       time.Since(started).Milliseconds(),
		},
		Score:       math.Round(score*100) / 100,
		GeneratedAt: time.Now().UTC(),
	}

	s.logger.Info("timetable generated",
		zap.String("week", key.String()),
		zap.Int("units", len(units)),
		zap.Int("placed", len(entries)),
		zap.Int("unplaced", len(unresolved)),
		zap.Int("soft_violations", len(soft)),
		zap.Float64("score", result.Score),
	)

	limits := loadLimitsFor(entries, availability)
	if !req.Commit {
		s.proposals.Save(generationProposal{ID: result.ProposalID, Result: *result, Limits: limits, RequestedAt: time.Now()})
		return result, nil
	}
	if err := s.commit(ctx, key, entries, limits, req.ConfirmReplace); err != nil {
		return nil, err
	}
	result.Committed = true
	return result, nil
}

// ApplyProposal commits a previously previewed result.
func (s *TimetableGeneratorService) ApplyProposal(ctx context.Context, proposalID string, req dto.ApplyProposalRequest) (*dto.GenerateTimetableResult, error) {
	proposal, ok := s.proposals.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	result := proposal.Result
	if err := s.commit(ctx, result.Key, copyEntries(result.Entries), proposal.Limits, req.ConfirmReplace); err != nil {
		return nil, err
	}
	s.proposals.Delete(proposalID)
	result.Committed = true
	return &result, nil
}

// commit re-validates the entries against fresh bookings of other classes
// under the week-start lock, slot clashes and teacher load ceilings alike,
// then replaces the week in one transaction.
func (s *TimetableGeneratorService) commit(ctx context.Context, key models.WeekKey, entries []models.ScheduleEntry, limits map[string]loadLimit, confirmReplace bool) error {
	return s.store.WithGenerationLock(ctx, key, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "generation cancelled before commit")
		}
		existing, err := s.store.FreshWeek(ctx, key)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if !confirmReplace {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("week %s already has %d entries; set confirmReplace to overwrite", key, len(existing)))
			}
			for _, e := range existing {
				if !e.IsEditable {
					return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("week %s contains locked entry %s", key, e.ID))
				}
			}
		}

		all, err := s.store.FreshWeekAcrossClasses(ctx, key.WeekStart)
		if err != nil {
			return err
		}
		others := excludeWeek(all, key)
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		if clashes := ConflictsInvolving(DetectConflicts(append(others, entries...)), ids...); len(clashes) > 0 {
			s.logger.Warn("generation commit rejected", zap.String("week", key.String()), zap.Int("clashes", len(clashes)))
			return appErrors.Clone(appErrors.ErrConcurrentModification, fmt.Sprintf("%d bookings changed since generation; regenerate and retry", len(clashes)))
		}
		if breaches := loadCeilingBreaches(limits, others, entries); len(breaches) > 0 {
			s.logger.Warn("generation commit rejected", zap.String("week", key.String()), zap.Strings("overloaded", breaches))
			return appErrors.Clone(appErrors.ErrConcurrentModification, fmt.Sprintf("teacher loads changed since generation (%s); regenerate and retry", strings.Join(breaches, ", ")))
		}
		if err := ctx.Err(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "generation cancelled before commit")
		}
		if err := s.store.Replace(ctx, key, entries); err != nil {
			return err
		}
		s.metrics.RecordMutation("generate")
		s.logger.Info("generated week committed", zap.String("week", key.String()), zap.Int("entries", len(entries)))
		return nil
	})
}

func (s *TimetableGeneratorService) loadDemands(ctx context.Context, req dto.GenerateTimetableRequest) ([]*subjectDemand, error) {
	var demands []*subjectDemand
	if len(req.Subjects) > 0 {
		seen := make(map[string]bool)
		for _, item := range req.Subjects {
			if seen[item.SubjectID] {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s listed twice", item.SubjectID))
			}
			seen[item.SubjectID] = true
			demands = append(demands, &subjectDemand{
				SubjectRequirement: models.SubjectRequirement{
					ClassID:       req.ClassID,
					SubjectID:     item.SubjectID,
					SubjectName:   item.SubjectName,
					WeeklyPeriods: item.WeeklyPeriods,
					IsCore:        item.IsCore,
					RequiresRoom:  item.RequiresRoom,
					RoomKind:      item.RoomKind,
				},
				explicitTeachers: item.TeacherIDs,
			})
		}
		return demands, nil
	}

	requirements, err := s.subjects.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject requirements")
	}
	if len(requirements) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no subject requirements defined for class %s", req.ClassID))
	}
	for _, r := range requirements {
		demands = append(demands, &subjectDemand{SubjectRequirement: r})
	}
	return demands, nil
}

func (s *TimetableGeneratorService) otherClassBookings(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	all, err := s.store.FreshWeekAcrossClasses(ctx, key.WeekStart)
	if err != nil {
		return nil, err
	}
	return excludeWeek(all, key), nil
}

func (s *TimetableGeneratorService) buildTeacherAvailability(teachers []models.Teacher, constraints dto.TeacherConstraints, others []models.ScheduleEntry) map[string]*teacherAvailability {
	result := make(map[string]*teacherAvailability, len(teachers))
	for _, t := range teachers {
		availability := newTeacherAvailability()
		availability.MaxLoadPerDay = effectiveLimit(constraints.MaxClassesPerDay, t.MaxLoadPerDay)
		if availability.MaxLoadPerDay == 0 {
			availability.MaxLoadPerDay = s.cfg.DefaultMaxLoadPerDay
		}
		availability.MaxLoadPerWeek = effectiveLimit(constraints.MaxClassesPerWeek, t.MaxLoadPerWeek)
		result[t.ID] = availability
	}
	for _, booking := range others {
		if availability, ok := result[booking.TeacherID]; ok {
			availability.Reserve(booking.Day.Index(), booking.PeriodNo)
		}
	}
	return result
}

func validateTeacherConstraints(c dto.TeacherConstraints) error {
	if c.MaxClassesPerDay > 0 && c.MinClassesPerDay > c.MaxClassesPerDay {
		return appErrors.Clone(appErrors.ErrValidation, "minClassesPerDay cannot exceed maxClassesPerDay")
	}
	if c.MaxClassesPerWeek > 0 && c.MinClassesPerWeek > c.MaxClassesPerWeek {
		return appErrors.Clone(appErrors.ErrValidation, "minClassesPerWeek cannot exceed maxClassesPerWeek")
	}
	return nil
}

// loadLimit is a teacher's effective ceiling at generation time; zero means
// unlimited.
type loadLimit struct {
	PerDay  int
	PerWeek int
}

func loadLimitsFor(entries []models.ScheduleEntry, availability map[string]*teacherAvailability) map[string]loadLimit {
	limits := make(map[string]loadLimit)
	for _, e := range entries {
		if a, ok := availability[e.TeacherID]; ok {
			limits[e.TeacherID] = loadLimit{PerDay: a.MaxLoadPerDay, PerWeek: a.MaxLoadPerWeek}
		}
	}
	return limits
}

// loadCeilingBreaches recounts every teacher placed in entries against the
// current bookings of other classes and lists those now over a ceiling.
func loadCeilingBreaches(limits map[string]loadLimit, others, entries []models.ScheduleEntry) []string {
	if len(limits) == 0 {
		return nil
	}
	perDay := make(map[string]map[models.Day]int)
	weekly := make(map[string]int)
	seen := make(map[string]bool)
	count := func(e models.ScheduleEntry) {
		if _, ok := limits[e.TeacherID]; !ok {
			return
		}
		slot := fmt.Sprintf("%s:%s:%d", e.TeacherID, e.Day, e.PeriodNo)
		if seen[slot] {
			return
		}
		seen[slot] = true
		if perDay[e.TeacherID] == nil {
			perDay[e.TeacherID] = make(map[models.Day]int)
		}
		perDay[e.TeacherID][e.Day]++
		weekly[e.TeacherID]++
	}
	for _, e := range others {
		count(e)
	}
	for _, e := range entries {
		count(e)
	}

	var breaches []string
	for teacherID, limit := range limits {
		if limit.PerWeek > 0 && weekly[teacherID] > limit.PerWeek {
			breaches = append(breaches, fmt.Sprintf("%s has %d lessons this week, limit %d", teacherID, weekly[teacherID], limit.PerWeek))
			continue
		}
		if limit.PerDay <= 0 {
			continue
		}
		for _, day := range models.SchoolDays {
			if n := perDay[teacherID][day]; n > limit.PerDay {
				breaches = append(breaches, fmt.Sprintf("%s has %d lessons on %s, limit %d", teacherID, n, day, limit.PerDay))
				break
			}
		}
	}
	sort.Strings(breaches)
	return breaches
}

// effectiveLimit is the tighter of two limits where zero means unlimited.
func effectiveLimit(global, own int) int {
	switch {
	case global > 0 && own > 0:
		if global < own {
			return global
		}
		return own
	case global > 0:
		return global
	default:
		return own
	}
}

func excludeWeek(entries []models.ScheduleEntry, key models.WeekKey) []models.ScheduleEntry {
	result := make([]models.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if e.Key() != key {
			result = append(result, e)
		}
	}
	return result
}

func boolPtr(v bool) *bool {
	return &v
}

// --- Demand & units ---

type subjectDemand struct {
	models.SubjectRequirement
	explicitTeachers []string
	teacherIDs       []string
	core             bool
}

func (d *subjectDemand) label() string {
	if d.SubjectName != "" {
		return d.SubjectName
	}
	return d.SubjectID
}

type generationUnit struct {
	demand  *subjectDemand
	ordinal int
}

func resolveQualifiedTeachers(demands []*subjectDemand, teachers []models.Teacher, coreNames []string) {
	core := make(map[string]bool, len(coreNames))
	for _, name := range coreNames {
		core[strings.ToLower(strings.TrimSpace(name))] = true
	}
	active := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		active[t.ID] = t
	}

	for _, d := range demands {
		d.core = d.IsCore || core[strings.ToLower(d.SubjectName)] || core[strings.ToLower(d.SubjectID)]
		d.teacherIDs = d.teacherIDs[:0]
		if len(d.explicitTeachers) > 0 {
			for _, id := range d.explicitTeachers {
				if _, ok := active[id]; ok {
					d.teacherIDs = append(d.teacherIDs, id)
				}
			}
		} else {
			for _, t := range teachers {
				if t.Teaches(d.SubjectID) {
					d.teacherIDs = append(d.teacherIDs, t.ID)
				}
			}
		}
		sort.Strings(d.teacherIDs)
	}
}

// buildUnits expands demand into one unit per weekly period, ordered core
// first (when prioritised), then scarcest teachers, then largest demand.
func buildUnits(demands []*subjectDemand, prioritizeCore bool) []generationUnit {
	ordered := make([]*subjectDemand, len(demands))
	copy(ordered, demands)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if prioritizeCore && a.core != b.core {
			return a.core
		}
		if len(a.teacherIDs) != len(b.teacherIDs) {
			return len(a.teacherIDs) < len(b.teacherIDs)
		}
		if a.WeeklyPeriods != b.WeeklyPeriods {
			return a.WeeklyPeriods > b.WeeklyPeriods
		}
		return a.SubjectID < b.SubjectID
	})

	var units []generationUnit
	for _, d := range ordered {
		for i := 1; i <= d.WeeklyPeriods; i++ {
			units = append(units, generationUnit{demand: d, ordinal: i})
		}
	}
	return units
}

func unplacedConflict(unit generationUnit, reason string) models.Conflict {
	return models.Conflict{
		Type:     models.ConflictUnplaced,
		Message:  fmt.Sprintf("unable to place %s (lesson %d of %d): %s", unit.demand.label(), unit.ordinal, unit.demand.WeeklyPeriods, reason),
		EntryIDs: []string{},
		Meta: map[string]any{
			"code":       appErrors.ErrGenerationInfeasible.Code,
			"subject_id": unit.demand.SubjectID,
			"lesson":     unit.ordinal,
			"reason":     reason,
		},
	}
}

// --- Proposal cache ---

type generationProposal struct {
	ID          string
	Result      dto.GenerateTimetableResult
	Limits      map[string]loadLimit
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]generationProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]generationProposal),
	}
}

func (s *proposalStore) Save(proposal generationProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if time.Since(item.RequestedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (generationProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return generationProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return generationProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// --- Scheduler state ---

type cellKey struct {
	Day    int
	Period int
}

type placedLesson struct {
	cell      cellKey
	demand    *subjectDemand
	teacherID string
	roomID    string
}

type schedulerState struct {
	days           []int
	periods        int
	lessons        map[cellKey]*placedLesson
	dayLoad        map[int]int
	subjectDays    map[string]map[int]int
	subjectTeacher map[string]string
	teachers       map[string]*teacherAvailability
	rooms          *roomAvailability
	hints          []softHint
	prioritizeCore bool
}

func newSchedulerState(days []int, periods int, teachers map[string]*teacherAvailability, rooms *roomAvailability, hints []softHint, prioritizeCore bool) *schedulerState {
	return &schedulerState{
		days:           days,
		periods:        periods,
		lessons:        make(map[cellKey]*placedLesson),
		dayLoad:        make(map[int]int),
		subjectDays:    make(map[string]map[int]int),
		subjectTeacher: make(map[string]string),
		teachers:       teachers,
		rooms:          rooms,
		hints:          hints,
		prioritizeCore: prioritizeCore,
	}
}

// Assign places one unit into the best admissible cell. On failure it
// returns the most specific reason observed.
func (s *schedulerState) Assign(unit generationUnit) (string, bool) {
	d := unit.demand
	if len(d.teacherIDs) == 0 {
		return "no qualified teacher for subject", false
	}

	var best *placedLesson
	bestScore := math.Inf(1)
	freeCell, teacherFree := false, false
	for _, day := range s.days {
		for period := 1; period <= s.periods; period++ {
			cell := cellKey{Day: day, Period: period}
			if _, taken := s.lessons[cell]; taken {
				continue
			}
			freeCell = true
			teacherID, continuity := s.pickTeacher(d, cell)
			if teacherID == "" {
				continue
			}
			teacherFree = true
			roomID := ""
			if d.RequiresRoom {
				if roomID = s.rooms.Pick(d.RoomKind, cell); roomID == "" {
					continue
				}
			}
			if score := s.cellScore(d, cell, continuity); score < bestScore {
				bestScore = score
				best = &placedLesson{cell: cell, demand: d, teacherID: teacherID, roomID: roomID}
			}
		}
	}

	switch {
	case best != nil:
		s.place(best)
		return "", true
	case !freeCell:
		return "no free cell left in the week", false
	case teacherFree:
		return fmt.Sprintf("no free room of kind %q", d.RoomKind), false
	default:
		return "no qualified teacher is free within load limits", false
	}
}

func (s *schedulerState) pickTeacher(d *subjectDemand, cell cellKey) (string, bool) {
	current := s.subjectTeacher[d.SubjectID]
	if current != "" {
		if t := s.teachers[current]; t != nil && t.CanTeach(cell.Day, cell.Period) {
			return current, true
		}
	}
	chosen := ""
	for _, id := range d.teacherIDs {
		t := s.teachers[id]
		if t == nil || !t.CanTeach(cell.Day, cell.Period) {
			continue
		}
		if chosen == "" || t.weekly < s.teachers[chosen].weekly {
			chosen = id
		}
	}
	return chosen, chosen != "" && current == ""
}

func (s *schedulerState) cellScore(d *subjectDemand, cell cellKey, continuity bool) float64 {
	var score float64
	for _, h := range s.hints {
		if h.subjectID == d.SubjectID && h.violatedBy(cell, s.periods) {
			score += hintWeight(h.priority)
		}
	}
	score += 10 * float64(s.subjectDays[d.SubjectID][cell.Day])
	score += 2 * float64(s.dayLoad[cell.Day])
	if s.prioritizeCore && d.core {
		score += 3 * float64(cell.Period)
	} else {
		score += float64(cell.Period)
	}
	if !continuity {
		score += 5
	}
	return score
}

func (s *schedulerState) place(lesson *placedLesson) {
	s.lessons[lesson.cell] = lesson
	s.teachers[lesson.teacherID].Reserve(lesson.cell.Day, lesson.cell.Period)
	if lesson.roomID != "" {
		s.rooms.Reserve(lesson.roomID, lesson.cell)
	}
	s.dayLoad[lesson.cell.Day]++
	subject := lesson.demand.SubjectID
	if s.subjectDays[subject] == nil {
		s.subjectDays[subject] = make(map[int]int)
	}
	s.subjectDays[subject][lesson.cell.Day]++
	if s.subjectTeacher[subject] == "" {
		s.subjectTeacher[subject] = lesson.teacherID
	}
}

// repairGaps pulls lessons into earlier empty periods of the same day while
// teacher and room stay free. Moving earlier never breaks a parsed hint.
func (s *schedulerState) repairGaps(maxIterations int) int {
	iterations := 0
	for iterations < maxIterations {
		moved := false
		for _, day := range s.days {
			for target := 1; target < s.periods && !moved; target++ {
				if _, taken := s.lessons[cellKey{Day: day, Period: target}]; taken {
					continue
				}
				for from := target + 1; from <= s.periods; from++ {
					lesson, ok := s.lessons[cellKey{Day: day, Period: from}]
					if !ok {
						continue
					}
					moved = s.tryMove(lesson, cellKey{Day: day, Period: target})
					break
				}
			}
			if moved {
				break
			}
		}
		if !moved {
			break
		}
		iterations++
	}
	return iterations
}

func (s *schedulerState) tryMove(lesson *placedLesson, to cellKey) bool {
	from := lesson.cell
	teacher := s.teachers[lesson.teacherID]
	teacher.Release(from.Day, from.Period)
	if !teacher.CanTeach(to.Day, to.Period) {
		teacher.Reserve(from.Day, from.Period)
		return false
	}
	if lesson.roomID != "" {
		s.rooms.Release(lesson.roomID, from)
		if !s.rooms.Free(lesson.roomID, to) {
			s.rooms.Reserve(lesson.roomID, from)
			teacher.Reserve(from.Day, from.Period)
			return false
		}
		s.rooms.Reserve(lesson.roomID, to)
	}
	teacher.Reserve(to.Day, to.Period)
	delete(s.lessons, from)
	lesson.cell = to
	s.lessons[to] = lesson
	return true
}

func (s *schedulerState) exportEntries(key models.WeekKey, academicYearID string, editable bool) []models.ScheduleEntry {
	cells := make([]cellKey, 0, len(s.lessons))
	for cell := range s.lessons {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day == cells[j].Day {
			return cells[i].Period < cells[j].Period
		}
		return cells[i].Day < cells[j].Day
	})

	entries := make([]models.ScheduleEntry, 0, len(cells))
	for _, cell := range cells {
		lesson := s.lessons[cell]
		entry := models.ScheduleEntry{
			ID:             uuid.NewString(),
			AcademicYearID: academicYearID,
			ClassID:        key.ClassID,
			Section:        key.Section,
			WeekStart:      key.WeekStart,
			Day:            models.SchoolDays[cell.Day-1],
			PeriodNo:       cell.Period,
			SubjectID:      lesson.demand.SubjectID,
			TeacherID:      lesson.teacherID,
			IsEditable:     editable,
		}
		if lesson.roomID != "" {
			room := lesson.roomID
			entry.RoomID = &room
		}
		entries = append(entries, entry)
	}
	return entries
}

// --- Teacher availability ---

type teacherAvailability struct {
	MaxLoadPerDay  int
	MaxLoadPerWeek int
	perDay         map[int]int
	weekly         int
	assigned       map[int]map[int]bool
}

func newTeacherAvailability() *teacherAvailability {
	return &teacherAvailability{
		perDay:   make(map[int]int),
		assigned: make(map[int]map[int]bool),
	}
}

func (t *teacherAvailability) CanTeach(day, slot int) bool {
	if t.assigned[day] != nil && t.assigned[day][slot] {
		return false
	}
	if t.MaxLoadPerDay > 0 && t.perDay[day] >= t.MaxLoadPerDay {
		return false
	}
	if t.MaxLoadPerWeek > 0 && t.weekly >= t.MaxLoadPerWeek {
		return false
	}
	return true
}

func (t *teacherAvailability) Reserve(day, slot int) {
	if t.assigned[day] == nil {
		t.assigned[day] = make(map[int]bool)
	}
	if t.assigned[day][slot] {
		return
	}
	t.assigned[day][slot] = true
	t.perDay[day]++
	t.weekly++
}

func (t *teacherAvailability) Release(day, slot int) {
	if t.assigned[day] == nil || !t.assigned[day][slot] {
		return
	}
	delete(t.assigned[day], slot)
	t.perDay[day]--
	t.weekly--
}

// --- Room availability ---

type roomAvailability struct {
	rooms  []models.Room
	booked map[string]map[cellKey]bool
}

func newRoomAvailability(rooms []models.Room, others []models.ScheduleEntry) *roomAvailability {
	r := &roomAvailability{rooms: rooms, booked: make(map[string]map[cellKey]bool)}
	for _, e := range others {
		if room := e.Room(); room != "" {
			r.Reserve(room, cellKey{Day: e.Day.Index(), Period: e.PeriodNo})
		}
	}
	return r
}

// Pick returns the first free room of kind, any kind when kind is empty.
func (r *roomAvailability) Pick(kind string, cell cellKey) string {
	for _, room := range r.rooms {
		if kind != "" && !strings.EqualFold(room.Kind, kind) {
			continue
		}
		if r.Free(room.ID, cell) {
			return room.ID
		}
	}
	return ""
}

func (r *roomAvailability) Free(roomID string, cell cellKey) bool {
	return !r.booked[roomID][cell]
}

func (r *roomAvailability) Reserve(roomID string, cell cellKey) {
	if r.booked[roomID] == nil {
		r.booked[roomID] = make(map[cellKey]bool)
	}
	r.booked[roomID][cell] = true
}

func (r *roomAvailability) Release(roomID string, cell cellKey) {
	delete(r.booked[roomID], cell)
}

// --- Soft hints ---

type softHintKind int

const (
	hintNotOnDay softHintKind = iota + 1
	hintMorning
	hintNotLast
	hintNotAfter
)

type softHint struct {
	kind        softHintKind
	subjectID   string
	day         int
	limit       int
	priority    int
	description string
}

var (
	hintNotOnDayPattern = regexp.MustCompile(`^no (.+) on (\w+)$`)
	hintMorningPattern  = regexp.MustCompile(`^(.+) in the morning$`)
	hintNotLastPattern  = regexp.MustCompile(`^avoid (.+) in the last period$`)
	hintNotAfterPattern = regexp.MustCompile(`^(.+) not after period (\d+)$`)
)

func hintWeight(priority int) float64 {
	switch priority {
	case 1:
		return 40
	case 2:
		return 25
	default:
		return 10
	}
}

func (h softHint) violatedBy(cell cellKey, periods int) bool {
	switch h.kind {
	case hintNotOnDay:
		return cell.Day == h.day
	case hintMorning:
		return cell.Period > (periods+1)/2
	case hintNotLast:
		return cell.Period == periods
	case hintNotAfter:
		return cell.Period > h.limit
	}
	return false
}

// parseSoftHints turns free-text constraints into hints. Anything it cannot
// read, or that names an unknown subject, is reported back as a violation.
func parseSoftHints(constraints []dto.CustomConstraint, demands []*subjectDemand) ([]softHint, []dto.SoftViolation) {
	var hints []softHint
	unrecognised := make([]dto.SoftViolation, 0)
	for _, c := range constraints {
		hint, subject, ok := matchHint(strings.ToLower(strings.TrimSpace(c.Description)))
		if !ok {
			unrecognised = append(unrecognised, dto.SoftViolation{
				Kind: dto.SoftViolationUnrecognised, Description: c.Description, Priority: c.Priority,
				Message: "hint not understood; supported forms: \"no <subject> on <day>\", \"<subject> in the morning\", \"avoid <subject> in the last period\", \"<subject> not after period <n>\"",
			})
			continue
		}
		demand := findDemand(demands, subject)
		if demand == nil {
			unrecognised = append(unrecognised, dto.SoftViolation{
				Kind: dto.SoftViolationUnrecognised, Description: c.Description, Priority: c.Priority,
				Message: fmt.Sprintf("hint refers to unknown subject %q", subject),
			})
			continue
		}
		hint.subjectID = demand.SubjectID
		hint.priority = c.Priority
		hint.description = c.Description
		hints = append(hints, hint)
	}
	return hints, unrecognised
}

func matchHint(text string) (softHint, string, bool) {
	if m := hintNotOnDayPattern.FindStringSubmatch(text); m != nil {
		day, ok := models.ParseDay(m[2])
		if !ok {
			return softHint{}, "", false
		}
		return softHint{kind: hintNotOnDay, day: day.Index()}, m[1], true
	}
	if m := hintNotLastPattern.FindStringSubmatch(text); m != nil {
		return softHint{kind: hintNotLast}, m[1], true
	}
	if m := hintNotAfterPattern.FindStringSubmatch(text); m != nil {
		limit, err := strconv.Atoi(m[2])
		if err != nil {
			return softHint{}, "", false
		}
		return softHint{kind: hintNotAfter, limit: limit}, m[1], true
	}
	if m := hintMorningPattern.FindStringSubmatch(text); m != nil {
		return softHint{kind: hintMorning}, m[1], true
	}
	return softHint{}, "", false
}

func findDemand(demands []*subjectDemand, subject string) *subjectDemand {
	subject = strings.TrimSpace(subject)
	for _, d := range demands {
		if strings.EqualFold(d.SubjectName, subject) || strings.EqualFold(d.SubjectID, subject) {
			return d
		}
	}
	return nil
}

func evaluateSoftHints(hints []softHint, entries []models.ScheduleEntry, periods int, demands []*subjectDemand) []dto.SoftViolation {
	violations := make([]dto.SoftViolation, 0)
	for _, h := range hints {
		var ids []string
		for _, e := range entries {
			if e.SubjectID == h.subjectID && h.violatedBy(cellKey{Day: e.Day.Index(), Period: e.PeriodNo}, periods) {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		name := h.subjectID
		if d := findDemand(demands, h.subjectID); d != nil {
			name = d.label()
		}
		violations = append(violations, dto.SoftViolation{
			Kind:        dto.SoftViolationCustomHint,
			Description: h.description,
			Priority:    h.priority,
			Message:     fmt.Sprintf("%d lesson(s) of %s do not follow the hint", len(ids), name),
			EntryIDs:    ids,
		})
	}
	return violations
}

// evaluateMinLoads checks minimum loads for teachers used by this week.
// Counts include other classes' bookings. Minimums are best effort.
func evaluateMinLoads(c dto.TeacherConstraints, availability map[string]*teacherAvailability, entries []models.ScheduleEntry, days []int) ([]dto.SoftViolation, float64) {
	violations := make([]dto.SoftViolation, 0)
	if c.MinClassesPerDay == 0 && c.MinClassesPerWeek == 0 {
		return violations, 0
	}
	used := make(map[string]bool)
	var teacherIDs []string
	for _, e := range entries {
		if !used[e.TeacherID] {
			used[e.TeacherID] = true
			teacherIDs = append(teacherIDs, e.TeacherID)
		}
	}
	sort.Strings(teacherIDs)

	var penalty float64
	for _, id := range teacherIDs {
		load := availability[id]
		if load == nil {
			continue
		}
		if c.MinClassesPerDay > 0 {
			for _, day := range days {
				if got := load.perDay[day]; got < c.MinClassesPerDay {
					penalty += float64(c.MinClassesPerDay - got)
					violations = append(violations, dto.SoftViolation{
						Kind:    dto.SoftViolationMinDaily,
						Message: fmt.Sprintf("teacher %s has %d lessons on %s, minimum is %d", id, got, models.SchoolDays[day-1], c.MinClassesPerDay),
					})
				}
			}
		}
		if c.MinClassesPerWeek > 0 && load.weekly < c.MinClassesPerWeek {
			penalty += float64(c.MinClassesPerWeek - load.weekly)
			violations = append(violations, dto.SoftViolation{
				Kind:    dto.SoftViolationMinWeekly,
				Message: fmt.Sprintf("teacher %s has %d lessons this week, minimum is %d", id, load.weekly, c.MinClassesPerWeek),
			})
		}
	}
	return violations, penalty
}

// --- Metrics helpers ---

func calculateGapPenalty(days []int, entries []models.ScheduleEntry) float64 {
	var penalty float64
	for _, day := range days {
		var times []int
		for _, e := range entries {
			if e.Day.Index() == day {
				times = append(times, e.PeriodNo)
			}
		}
		if len(times) <= 1 {
			continue
		}
		sort.Ints(times)
		for i := 0; i < len(times)-1; i++ {
			if diff := times[i+1] - times[i]; diff > 1 {
				penalty += float64(diff - 1)
			}
		}
	}
	return penalty
}

func normalizeDays(raw []string) []int {
	if len(raw) == 0 {
		days := make([]int, 0, len(models.SchoolDays))
		for _, d := range models.SchoolDays {
			days = append(days, d.Index())
		}
		return days
	}
	unique := make(map[int]struct{})
	for _, name := range raw {
		if day, ok := models.ParseDay(name); ok {
			unique[day.Index()] = struct{}{}
		}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}
