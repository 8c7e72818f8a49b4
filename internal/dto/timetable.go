package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// WeekQuery identifies a class-section week in query strings.
type WeekQuery struct {
	ClassID   string `form:"classId" json:"classId" validate:"required"`
	Section   string `form:"section" json:"section" validate:"required"`
	WeekStart string `form:"weekStart" json:"weekStart" validate:"required,datetime=2006-01-02"`
}

// CreateEntryRequest places one lesson into a week grid.
type CreateEntryRequest struct {
	AcademicYearID string  `json:"academicYearId"`
	ClassID        string  `json:"classId" validate:"required"`
	Section        string  `json:"section" validate:"required"`
	WeekStart      string  `json:"weekStart" validate:"required,datetime=2006-01-02"`
	Day            string  `json:"day" validate:"required,oneof=MON TUE WED THU FRI SAT"`
	PeriodNo       int     `json:"periodNo" validate:"required,min=1"`
	SubjectID      string  `json:"subjectId" validate:"required"`
	TeacherID      string  `json:"teacherId" validate:"required"`
	RoomID         *string `json:"roomId" validate:"omitempty,min=1"`
	IsEditable     *bool   `json:"isEditable"`
}

// UpdateEntryRequest patches an entry; nil fields are left untouched.
type UpdateEntryRequest struct {
	Day        *string `json:"day" validate:"omitempty,oneof=MON TUE WED THU FRI SAT"`
	PeriodNo   *int    `json:"periodNo" validate:"omitempty,min=1"`
	SubjectID  *string `json:"subjectId" validate:"omitempty,min=1"`
	TeacherID  *string `json:"teacherId" validate:"omitempty,min=1"`
	RoomID     *string `json:"roomId" validate:"omitempty,min=1"`
	ClearRoom  bool    `json:"clearRoom"`
	IsEditable *bool   `json:"isEditable"`
}

// SwapEntriesRequest exchanges the content of two entries in the same week.
type SwapEntriesRequest struct {
	EntryA string `json:"entryA" validate:"required"`
	EntryB string `json:"entryB" validate:"required,nefield=EntryA"`
}

// PublishWeekRequest toggles publication of a whole week.
type PublishWeekRequest struct {
	ClassID   string `json:"classId" validate:"required"`
	Section   string `json:"section" validate:"required"`
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
	Publish   bool   `json:"publish"`
}

// PublishWeekResponse reports how many entries changed state.
type PublishWeekResponse struct {
	Key       models.WeekKey `json:"key"`
	Published bool           `json:"published"`
	Updated   int            `json:"updated"`
}

// PeriodRequest describes a single numbered period.
type PeriodRequest struct {
	PeriodNo  int    `json:"periodNo" validate:"required,min=1"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

// SetPeriodsRequest replaces the period table of a class.
type SetPeriodsRequest struct {
	Periods []PeriodRequest `json:"periods" validate:"required,min=1,max=16,dive"`
}

// EntryMutationResult pairs a written entry with non-blocking warnings.
type EntryMutationResult struct {
	Entry     models.ScheduleEntry `json:"entry"`
	Conflicts []models.Conflict    `json:"conflicts"`
}

// SwapEntriesResult returns both entries after the exchange.
type SwapEntriesResult struct {
	Entries   []models.ScheduleEntry `json:"entries"`
	Conflicts []models.Conflict      `json:"conflicts"`
}
