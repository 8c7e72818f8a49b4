package dto

// AvailableTeachersQuery asks who could cover one lesson occurrence.
type AvailableTeachersQuery struct {
	Date             string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Day              string `form:"day" json:"day" validate:"required,oneof=MON TUE WED THU FRI SAT"`
	PeriodNo         int    `form:"periodNo" json:"periodNo" validate:"required,min=1"`
	ClassID          string `form:"classId" json:"classId"`
	Section          string `form:"section" json:"section"`
	ExcludeTeacherID string `form:"excludeTeacherId" json:"excludeTeacherId"`
}

// AssignSubstituteRequest records who covers an entry on a given date.
type AssignSubstituteRequest struct {
	EntryID             string  `json:"entryId" validate:"required"`
	Date                string  `json:"date" validate:"required,datetime=2006-01-02"`
	Day                 string  `json:"day" validate:"required,oneof=MON TUE WED THU FRI SAT"`
	PeriodNo            int     `json:"periodNo" validate:"required,min=1"`
	ClassID             string  `json:"classId"`
	Section             string  `json:"section"`
	AbsentTeacherID     string  `json:"absentTeacherId" validate:"required"`
	SubstituteTeacherID string  `json:"substituteTeacherId" validate:"required,nefield=AbsentTeacherID"`
	Reason              *string `json:"reason" validate:"omitempty,max=500"`
}

// SubstituteLookupQuery resolves the substitute for one occurrence.
type SubstituteLookupQuery struct {
	EntryID  string `form:"entryId" json:"entryId"`
	Date     string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	ClassID  string `form:"classId" json:"classId"`
	Section  string `form:"section" json:"section"`
	Day      string `form:"day" json:"day" validate:"omitempty,oneof=MON TUE WED THU FRI SAT"`
	PeriodNo int    `form:"periodNo" json:"periodNo" validate:"omitempty,min=1"`
}
