package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher is the read-only catalog view of an instructor used for scheduling.
type Teacher struct {
	ID              string         `db:"id" json:"id"`
	FullName        string         `db:"full_name" json:"full_name"`
	PrimarySubject  string         `db:"primary_subject" json:"primary_subject"`
	SubjectIDs      pq.StringArray `db:"subject_ids" json:"subject_ids"`
	Qualification   string         `db:"qualification" json:"qualification"`
	ExperienceYears int            `db:"experience_years" json:"experience_years"`
	MaxLoadPerDay   int            `db:"max_load_per_day" json:"max_load_per_day"`
	MaxLoadPerWeek  int            `db:"max_load_per_week" json:"max_load_per_week"`
	Active          bool           `db:"active" json:"active"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Teaches reports whether the teacher is qualified for the subject.
func (t Teacher) Teaches(subjectID string) bool {
	for _, id := range t.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// TeacherFilter narrows catalog lookups.
type TeacherFilter struct {
	Active    *bool
	SubjectID string
	Search    string
}
