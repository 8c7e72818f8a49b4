package models

// SubjectRequirement is the weekly demand of one subject for a class.
type SubjectRequirement struct {
	ClassID       string `db:"class_id" json:"class_id"`
	SubjectID     string `db:"subject_id" json:"subject_id" validate:"required"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	WeeklyPeriods int    `db:"weekly_periods" json:"weekly_periods" validate:"min=1,max=48"`
	IsCore        bool   `db:"is_core" json:"is_core"`
	RequiresRoom  bool   `db:"requires_room" json:"requires_room"`
	RoomKind      string `db:"room_kind" json:"room_kind,omitempty"`
}

// Room is a bookable teaching space.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Kind     string `db:"kind" json:"kind"`
	Capacity int    `db:"capacity" json:"capacity"`
}
