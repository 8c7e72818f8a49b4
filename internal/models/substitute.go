package models

import "time"

// SubstituteAssignment overrides who teaches one occurrence of an entry on a
// specific date. The underlying entry is never modified.
type SubstituteAssignment struct {
	ID                    string    `db:"id" json:"id"`
	EntryID               string    `db:"entry_id" json:"entry_id"`
	Date                  Date      `db:"date" json:"date"`
	Day                   Day       `db:"day" json:"day"`
	PeriodNo              int       `db:"period_no" json:"period_no"`
	AbsentTeacherID       string    `db:"absent_teacher_id" json:"absent_teacher_id"`
	AbsentTeacherName     string    `db:"absent_teacher_name" json:"absent_teacher_name"`
	SubstituteTeacherID   string    `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	SubstituteTeacherName string    `db:"substitute_teacher_name" json:"substitute_teacher_name"`
	Subject               string    `db:"subject" json:"subject"`
	ClassID               string    `db:"class_id" json:"class_id"`
	Section               string    `db:"section" json:"section"`
	Reason                *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableTeacher is a derived availability row for one teacher and slot.
type AvailableTeacher struct {
	TeacherID        string `json:"teacher_id"`
	TeacherName      string `json:"teacher_name"`
	IsFreeThisPeriod bool   `json:"is_free_this_period"`
	CurrentLoad      int    `json:"current_load"`
	MaxLoad          int    `json:"max_load"`
	PrimarySubject   string `json:"primary_subject"`
	Qualification    string `json:"qualification"`
	ExperienceYears  int    `json:"experience_years"`
}
