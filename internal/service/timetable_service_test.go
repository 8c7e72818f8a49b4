package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newTimetableFixture(entries ...models.ScheduleEntry) (*TimetableService, *memEntryRepo, *memSubstituteRepo) {
	repo := newMemEntryRepo(entries...)
	subs := newMemSubstituteRepo()
	svc := NewTimetableService(newTestStore(repo), subs, nil, nil, nil, TimetableConfig{})
	return svc, repo, subs
}

func createReq(classID, day string, period int, subject, teacherID string) dto.CreateEntryRequest {
	return dto.CreateEntryRequest{
		ClassID:   classID,
		Section:   "A",
		WeekStart: string(testWeek),
		Day:       day,
		PeriodNo:  period,
		SubjectID: subject,
		TeacherID: teacherID,
	}
}

func TestCreateEntryCleanSlot(t *testing.T) {
	svc, repo, _ := newTimetableFixture()

	entry, conflicts, err := svc.CreateEntry(context.Background(), createReq("10", "MON", 1, "math", "t1"))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.IsEditable)
	assert.False(t, entry.CreatedAt.IsZero())

	stored, ok := repo.get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "math", stored.SubjectID)
}

func TestCreateEntryTeacherClashIsWarning(t *testing.T) {
	svc, repo, _ := newTimetableFixture(lesson("existing", "11", models.DayMonday, 1, "phys", "t1", nil))

	entry, conflicts, err := svc.CreateEntry(context.Background(), createReq("10", "MON", 1, "math", "t1"))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Type)
	assert.ElementsMatch(t, []string{"existing", entry.ID}, conflicts[0].EntryIDs)
	assert.Len(t, repo.all(), 2)
}

func TestCreateEntryRoomClashIsWarning(t *testing.T) {
	svc, _, _ := newTimetableFixture(lesson("existing", "11", models.DayMonday, 1, "phys", "t2", strPtr("lab")))
	req := createReq("10", "MON", 1, "chem", "t1")
	req.RoomID = strPtr("lab")

	_, conflicts, err := svc.CreateEntry(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoom, conflicts[0].Type)
}

func TestCreateEntryValidation(t *testing.T) {
	svc, _, _ := newTimetableFixture()
	ctx := context.Background()

	cases := map[string]dto.CreateEntryRequest{
		"missing teacher": createReq("10", "MON", 1, "math", ""),
		"bad day":         createReq("10", "SUN", 1, "math", "t1"),
		"period too high": createReq("10", "MON", 9, "math", "t1"),
		"period zero":     createReq("10", "MON", 0, "math", "t1"),
	}
	notMonday := createReq("10", "MON", 1, "math", "t1")
	notMonday.WeekStart = "2024-09-03"
	cases["week start not monday"] = notMonday

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.CreateEntry(ctx, req)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code), err.Error())
		})
	}
}

func TestCreateEntryOccupiedCellIsConflictError(t *testing.T) {
	svc, _, _ := newTimetableFixture(lesson("existing", "10", models.DayMonday, 1, "phys", "t2", nil))
	_, _, err := svc.CreateEntry(context.Background(), createReq("10", "MON", 1, "math", "t1"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestConcurrentCreatesIntoSameCellOnlyOneWins(t *testing.T) {
	svc, repo, _ := newTimetableFixture()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.CreateEntry(context.Background(), createReq("10", "TUE", 3, "math", "t1"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, repo.all(), 1)
}

func TestUpdateEntryLockedEntryIsPreconditionFailed(t *testing.T) {
	locked := lesson("e1", "10", models.DayMonday, 1, "math", "t1", nil)
	locked.IsEditable = false
	svc, repo, _ := newTimetableFixture(locked)
	ctx := context.Background()

	_, _, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{TeacherID: strPtr("t2")})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
	stored, _ := repo.get("e1")
	assert.Equal(t, "t1", stored.TeacherID)

	editable := true
	unlocked, _, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{IsEditable: &editable})
	require.NoError(t, err)
	assert.True(t, unlocked.IsEditable)
}

func TestUpdateEntryMoveAndWarnings(t *testing.T) {
	svc, _, _ := newTimetableFixture(
		lesson("e1", "10", models.DayMonday, 1, "math", "t1", nil),
		lesson("e2", "10", models.DayMonday, 2, "bio", "t2", nil),
		lesson("other", "11", models.DayMonday, 3, "phys", "t1", nil),
	)
	ctx := context.Background()

	_, _, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{PeriodNo: intPtr(2)})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	moved, conflicts, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{PeriodNo: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, moved.PeriodNo)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Type)

	_, _, err = svc.UpdateEntry(ctx, "missing", dto.UpdateEntryRequest{PeriodNo: intPtr(3)})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestUpdateEntryRoomPatch(t *testing.T) {
	svc, _, _ := newTimetableFixture(lesson("e1", "10", models.DayMonday, 1, "math", "t1", strPtr("r1")))
	ctx := context.Background()

	updated, _, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{RoomID: strPtr("r2")})
	require.NoError(t, err)
	assert.Equal(t, "r2", updated.Room())

	cleared, _, err := svc.UpdateEntry(ctx, "e1", dto.UpdateEntryRequest{ClearRoom: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.RoomID)
}

func TestDeleteEntry(t *testing.T) {
	locked := lesson("locked", "10", models.DayMonday, 2, "math", "t1", nil)
	locked.IsEditable = false
	svc, repo, _ := newTimetableFixture(lesson("e1", "10", models.DayMonday, 1, "math", "t1", nil), locked)
	ctx := context.Background()

	require.NoError(t, svc.DeleteEntry(ctx, "e1"))
	_, ok := repo.get("e1")
	assert.False(t, ok)

	assert.True(t, appErrors.HasCode(svc.DeleteEntry(ctx, "e1"), appErrors.ErrNotFound.Code))
	assert.True(t, appErrors.HasCode(svc.DeleteEntry(ctx, "locked"), appErrors.ErrPreconditionFailed.Code))
}

func TestSwapEntriesIsAnInvolution(t *testing.T) {
	a := lesson("a", "10", models.DayMonday, 1, "math", "t1", strPtr("r1"))
	b := lesson("b", "10", models.DayTuesday, 4, "bio", "t2", nil)
	svc, repo, _ := newTimetableFixture(a, b)
	ctx := context.Background()

	result, err := svc.SwapEntries(ctx, dto.SwapEntriesRequest{EntryA: "a", EntryB: "b"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	swappedA, _ := repo.get("a")
	swappedB, _ := repo.get("b")
	assert.Equal(t, "bio", swappedA.SubjectID)
	assert.Equal(t, "t2", swappedA.TeacherID)
	assert.Nil(t, swappedA.RoomID)
	assert.Equal(t, models.DayMonday, swappedA.Day)
	assert.Equal(t, 1, swappedA.PeriodNo)
	assert.Equal(t, "math", swappedB.SubjectID)
	assert.Equal(t, "r1", swappedB.Room())
	assert.Equal(t, 4, swappedB.PeriodNo)

	_, err = svc.SwapEntries(ctx, dto.SwapEntriesRequest{EntryA: "a", EntryB: "b"})
	require.NoError(t, err)
	restoredA, _ := repo.get("a")
	restoredB, _ := repo.get("b")
	assert.Equal(t, a.SubjectID, restoredA.SubjectID)
	assert.Equal(t, a.TeacherID, restoredA.TeacherID)
	assert.Equal(t, a.Room(), restoredA.Room())
	assert.Equal(t, b.SubjectID, restoredB.SubjectID)
	assert.Equal(t, b.TeacherID, restoredB.TeacherID)
}

func TestSwapEntriesReportsNewClashes(t *testing.T) {
	svc, _, _ := newTimetableFixture(
		lesson("a", "10", models.DayMonday, 1, "math", "t1", nil),
		lesson("b", "10", models.DayMonday, 2, "bio", "t2", nil),
		lesson("other", "11", models.DayMonday, 1, "chem", "t2", nil),
	)
	result, err := svc.SwapEntries(context.Background(), dto.SwapEntriesRequest{EntryA: "a", EntryB: "b"})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.ElementsMatch(t, []string{"a", "other"}, result.Conflicts[0].EntryIDs)
}

func TestSwapEntriesRejectsDifferentWeeksAndLocked(t *testing.T) {
	locked := lesson("locked", "10", models.DayMonday, 3, "art", "t3", nil)
	locked.IsEditable = false
	svc, _, _ := newTimetableFixture(
		lesson("a", "10", models.DayMonday, 1, "math", "t1", nil),
		lesson("c", "11", models.DayMonday, 2, "bio", "t2", nil),
		locked,
	)
	ctx := context.Background()

	_, err := svc.SwapEntries(ctx, dto.SwapEntriesRequest{EntryA: "a", EntryB: "c"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.SwapEntries(ctx, dto.SwapEntriesRequest{EntryA: "a", EntryB: "locked"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))

	_, err = svc.SwapEntries(ctx, dto.SwapEntriesRequest{EntryA: "a", EntryB: "missing"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestPublishWeekRoundTrip(t *testing.T) {
	svc, repo, _ := newTimetableFixture(
		lesson("a", "10", models.DayMonday, 1, "math", "t1", nil),
		lesson("b", "10", models.DayMonday, 2, "bio", "t2", nil),
		lesson("other", "11", models.DayMonday, 1, "chem", "t3", nil),
	)
	ctx := context.Background()
	req := dto.PublishWeekRequest{ClassID: "10", Section: "A", WeekStart: string(testWeek), Publish: true}

	result, err := svc.PublishWeek(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	for _, e := range repo.all() {
		assert.Equal(t, e.ClassID == "10", e.IsPublished, e.ID)
	}

	req.Publish = false
	_, err = svc.PublishWeek(ctx, req)
	require.NoError(t, err)
	assert.Len(t, repo.all(), 3)
	for _, e := range repo.all() {
		assert.False(t, e.IsPublished)
	}

	req.ClassID = "12"
	_, err = svc.PublishWeek(ctx, req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestPublishWeekCanLockEntries(t *testing.T) {
	repo := newMemEntryRepo(lesson("a", "10", models.DayMonday, 1, "math", "t1", nil))
	svc := NewTimetableService(newTestStore(repo), nil, nil, nil, nil, TimetableConfig{LockOnPublish: true})

	_, err := svc.PublishWeek(context.Background(), dto.PublishWeekRequest{ClassID: "10", Section: "A", WeekStart: string(testWeek), Publish: true})
	require.NoError(t, err)
	stored, _ := repo.get("a")
	assert.False(t, stored.IsEditable)
}

func TestGetWeekIncludesCrossClassConflictsAndSubstitutes(t *testing.T) {
	svc, _, subs := newTimetableFixture(
		lesson("a", "10", models.DayMonday, 1, "math", "t1", nil),
		lesson("other", "11", models.DayMonday, 1, "chem", "t1", nil),
		lesson("unrelated1", "12", models.DayMonday, 2, "art", "t5", nil),
		lesson("unrelated2", "13", models.DayMonday, 2, "art", "t5", nil),
	)
	require.NoError(t, subs.Upsert(context.Background(), &models.SubstituteAssignment{
		EntryID: "a", Date: "2024-09-02", Day: models.DayMonday, PeriodNo: 1, ClassID: "10", Section: "A", SubstituteTeacherID: "t9",
	}))
	require.NoError(t, subs.Upsert(context.Background(), &models.SubstituteAssignment{
		EntryID: "a", Date: "2024-09-09", Day: models.DayMonday, PeriodNo: 1, ClassID: "10", Section: "A", SubstituteTeacherID: "t9",
	}))

	view, err := svc.GetWeek(context.Background(), dto.WeekQuery{ClassID: "10", Section: "A", WeekStart: string(testWeek)})
	require.NoError(t, err)
	assert.Len(t, view.Entries, 1)
	require.Len(t, view.Conflicts, 1)
	assert.ElementsMatch(t, []string{"a", "other"}, view.Conflicts[0].EntryIDs)
	require.Len(t, view.Substitutes, 1)
	assert.Equal(t, models.Date("2024-09-02"), view.Substitutes[0].Date)
	assert.False(t, view.Published)
}

func TestSetPeriodsValidatesLayout(t *testing.T) {
	svc, _, _ := newTimetableFixture()
	ctx := context.Background()

	periods, err := svc.SetPeriods(ctx, "10", dto.SetPeriodsRequest{Periods: []dto.PeriodRequest{
		{PeriodNo: 2, StartTime: "07:45", EndTime: "08:30"},
		{PeriodNo: 1, StartTime: "07:00", EndTime: "07:45"},
	}})
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 1, periods[0].PeriodNo)

	_, _, err = svc.CreateEntry(ctx, createReq("10", "MON", 3, "math", "t1"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	bad := map[string][]dto.PeriodRequest{
		"gap":      {{PeriodNo: 1, StartTime: "07:00", EndTime: "07:45"}, {PeriodNo: 3, StartTime: "08:00", EndTime: "08:45"}},
		"reversed": {{PeriodNo: 1, StartTime: "08:00", EndTime: "07:00"}},
		"overlap":  {{PeriodNo: 1, StartTime: "07:00", EndTime: "08:00"}, {PeriodNo: 2, StartTime: "07:30", EndTime: "08:30"}},
	}
	for name, input := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SetPeriods(ctx, "10", dto.SetPeriodsRequest{Periods: input})
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
		})
	}
}
