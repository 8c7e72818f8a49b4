package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, kept as YYYY-MM-DD.
type Date string

// ParseDate validates and normalises a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return DateOf(t), nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time returns the date at UTC midnight. Invalid dates yield the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether the date is empty or unparsable.
func (d Date) IsZero() bool {
	return d.Time().IsZero()
}

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// WeekStart returns the Monday of the ISO week containing d.
func (d Date) WeekStart() Date {
	t := d.Time()
	offset := (int(t.Weekday()) + 6) % 7
	return DateOf(t.AddDate(0, 0, -offset))
}

// IsMonday reports whether d falls on a Monday.
func (d Date) IsMonday() bool {
	return !d.IsZero() && d.Time().Weekday() == time.Monday
}

// Day maps the date to a school day; Sunday has none.
func (d Date) Day() (Day, bool) {
	if d.IsZero() {
		return "", false
	}
	return DayFromWeekday(d.Time().Weekday())
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = DateOf(v)
	case string:
		parsed, err := ParseDate(firstTen(v))
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		parsed, err := ParseDate(firstTen(string(v)))
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

func firstTen(raw string) string {
	if len(raw) > len(DateLayout) {
		return raw[:len(DateLayout)]
	}
	return raw
}

// Day is a school day of the week.
type Day string

const (
	DayMonday    Day = "MON"
	DayTuesday   Day = "TUE"
	DayWednesday Day = "WED"
	DayThursday  Day = "THU"
	DayFriday    Day = "FRI"
	DaySaturday  Day = "SAT"
)

// SchoolDays lists school days in week order.
var SchoolDays = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DaySaturday}

// ParseDay accepts short (MON) or long (MONDAY) names in any case.
func ParseDay(raw string) (Day, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if len(value) > 3 {
		value = value[:3]
	}
	day := Day(value)
	if day.Index() == 0 {
		return "", false
	}
	return day, true
}

// Index returns 1 for MON through 6 for SAT and 0 for anything else.
func (d Day) Index() int {
	for i, day := range SchoolDays {
		if day == d {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether d is a school day.
func (d Day) Valid() bool {
	return d.Index() > 0
}

// DateIn returns the calendar date of d in the week starting at weekStart.
func (d Day) DateIn(weekStart Date) Date {
	return weekStart.AddDays(d.Index() - 1)
}

// DayFromWeekday converts a time.Weekday; Sunday is not a school day.
func DayFromWeekday(w time.Weekday) (Day, bool) {
	if w == time.Sunday {
		return "", false
	}
	return SchoolDays[int(w)-1], true
}

// Period is the wall-clock window of a numbered slot, shared across the week.
type Period struct {
	ClassID   string `db:"class_id" json:"class_id"`
	PeriodNo  int    `db:"period_no" json:"period_no" validate:"min=1"`
	StartTime string `db:"start_time" json:"start_time" validate:"required"`
	EndTime   string `db:"end_time" json:"end_time" validate:"required"`
}

// WeekKey identifies one class-section week, the unit of serialization.
type WeekKey struct {
	ClassID   string `json:"class_id"`
	Section   string `json:"section"`
	WeekStart Date   `json:"week_start"`
}

// String renders the key for locks and cache entries.
func (k WeekKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ClassID, k.Section, k.WeekStart)
}

// SlotKey identifies a (week, day, period) coordinate across all classes.
type SlotKey struct {
	WeekStart Date
	Day       Day
	PeriodNo  int
}

// ScheduleEntry is one subject/teacher/room placement in a class-section week.
type ScheduleEntry struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	Section        string    `db:"section" json:"section"`
	WeekStart      Date      `db:"week_start" json:"week_start"`
	Day            Day       `db:"day" json:"day"`
	PeriodNo       int       `db:"period_no" json:"period_no"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	RoomID         *string   `db:"room_id" json:"room_id"`
	IsPublished    bool      `db:"is_published" json:"is_published"`
	IsEditable     bool      `db:"is_editable" json:"is_editable"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the week the entry belongs to.
func (e ScheduleEntry) Key() WeekKey {
	return WeekKey{ClassID: e.ClassID, Section: e.Section, WeekStart: e.WeekStart}
}

// Slot returns the entry's slot coordinate.
func (e ScheduleEntry) Slot() SlotKey {
	return SlotKey{WeekStart: e.WeekStart, Day: e.Day, PeriodNo: e.PeriodNo}
}

// Room returns the room id or "" when unassigned.
func (e ScheduleEntry) Room() string {
	if e.RoomID == nil {
		return ""
	}
	return *e.RoomID
}

// ConflictType enumerates the rules a conflict can violate.
type ConflictType string

const (
	ConflictTeacher    ConflictType = "TEACHER"
	ConflictRoom       ConflictType = "ROOM"
	ConflictDoubleBook ConflictType = "DOUBLE_BOOK"
	// ConflictUnplaced marks a generator unit that could not be scheduled.
	ConflictUnplaced ConflictType = "UNPLACED"
)

// Conflict is a derived rule violation over a set of entries.
type Conflict struct {
	Type     ConflictType   `json:"type"`
	Message  string         `json:"message"`
	EntryIDs []string       `json:"entry_ids"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// WeekView is the full grid for a class-section week.
type WeekView struct {
	Key         WeekKey                `json:"key"`
	Periods     []Period               `json:"periods"`
	Entries     []ScheduleEntry        `json:"entries"`
	Conflicts   []Conflict             `json:"conflicts"`
	Substitutes []SubstituteAssignment `json:"substitutes"`
	Published   bool                   `json:"published"`
}
