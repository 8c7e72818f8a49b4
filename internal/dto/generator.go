package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherConstraints bounds how many lessons a teacher may take.
// Zero values mean "no global limit".
type TeacherConstraints struct {
	MaxClassesPerDay       int      `json:"maxClassesPerDay" validate:"min=0,max=16"`
	MaxClassesPerWeek      int      `json:"maxClassesPerWeek" validate:"min=0,max=96"`
	MinClassesPerDay       int      `json:"minClassesPerDay" validate:"min=0,max=16"`
	MinClassesPerWeek      int      `json:"minClassesPerWeek" validate:"min=0,max=96"`
	PrioritizeCoreSubjects bool     `json:"prioritizeCoreSubjects"`
	CoreSubjectNames       []string `json:"coreSubjectNames"`
}

// CustomConstraint is a free-text soft hint; priority 1 is the strongest.
type CustomConstraint struct {
	Description string `json:"description" validate:"required,max=200"`
	Priority    int    `json:"priority" validate:"required,min=1,max=3"`
}

// SubjectDemand overrides catalog requirements for one generation run.
type SubjectDemand struct {
	SubjectID     string   `json:"subjectId" validate:"required"`
	SubjectName   string   `json:"subjectName"`
	WeeklyPeriods int      `json:"weeklyPeriods" validate:"required,min=1,max=48"`
	IsCore        bool     `json:"isCore"`
	RequiresRoom  bool     `json:"requiresRoom"`
	RoomKind      string   `json:"roomKind"`
	TeacherIDs    []string `json:"teacherIds"`
}

// GenerateTimetableRequest asks the generator to fill a class-section week.
type GenerateTimetableRequest struct {
	AcademicYearID    string             `json:"academicYearId"`
	ClassID           string             `json:"classId" validate:"required"`
	Section           string             `json:"section" validate:"required"`
	WeekStart         string             `json:"weekStart" validate:"required,datetime=2006-01-02"`
	Days              []string           `json:"days" validate:"omitempty,max=6,dive,oneof=MON TUE WED THU FRI SAT"`
	PeriodsPerDay     int                `json:"periodsPerDay" validate:"omitempty,min=1,max=16"`
	Subjects          []SubjectDemand    `json:"subjects" validate:"omitempty,dive"`
	Constraints       TeacherConstraints `json:"constraints"`
	CustomConstraints []CustomConstraint `json:"customConstraints" validate:"omitempty,max=20,dive"`
	LockEntries       bool               `json:"lockEntries"`
	Commit            bool               `json:"commit"`
	ConfirmReplace    bool               `json:"confirmReplace"`
}

// SoftViolation records a hint or preference the result does not honour.
type SoftViolation struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Priority    int      `json:"priority,omitempty"`
	Message     string   `json:"message"`
	EntryIDs    []string `json:"entryIds,omitempty"`
}

// Soft violation kinds.
const (
	SoftViolationCustomHint   = "CUSTOM_HINT"
	SoftViolationUnrecognised = "UNRECOGNISED_HINT"
	SoftViolationMinDaily     = "MIN_DAILY_LOAD"
	SoftViolationMinWeekly    = "MIN_WEEKLY_LOAD"
)

// GenerationStats summarises one generation run.
type GenerationStats struct {
	Units            int     `json:"units"`
	Placed           int     `json:"placed"`
	Unplaced         int     `json:"unplaced"`
	RepairIterations int     `json:"repairIterations"`
	GapPenalty       float64 `json:"gapPenalty"`
	LoadPenalty      float64 `json:"loadPenalty"`
	DurationMs       int64   `json:"durationMs"`
}

// GenerateTimetableResult carries the proposed or committed week.
type GenerateTimetableResult struct {
	ProposalID     string                 `json:"proposalId"`
	Key            models.WeekKey         `json:"key"`
	Entries        []models.ScheduleEntry `json:"entries"`
	Unresolved     []models.Conflict      `json:"unresolved"`
	SoftViolations []SoftViolation        `json:"softViolations"`
	Stats          GenerationStats        `json:"stats"`
	Score          float64                `json:"score"`
	Committed      bool                   `json:"committed"`
	GeneratedAt    time.Time              `json:"generatedAt"`
}

// ApplyProposalRequest commits a previously previewed proposal.
type ApplyProposalRequest struct {
	ConfirmReplace bool `json:"confirmReplace"`
}
