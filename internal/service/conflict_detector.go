package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DetectConflicts reports teacher, room and class double-bookings among
// entries. Entries sharing an id are collapsed first, later ones winning, so a
// candidate can be checked against the stored week it replaces. One Conflict
// is returned per violated rule and per offending teacher/room/class; output
// is ordered by slot, then rule, then key.
func DetectConflicts(entries []models.ScheduleEntry) []models.Conflict {
	unique := collapseByID(entries)

	groups := make(map[models.SlotKey][]models.ScheduleEntry)
	var slots []models.SlotKey
	for _, entry := range unique {
		slot := entry.Slot()
		if _, ok := groups[slot]; !ok {
			slots = append(slots, slot)
		}
		groups[slot] = append(groups[slot], entry)
	}
	sort.Slice(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })

	conflicts := make([]models.Conflict, 0)
	for _, slot := range slots {
		group := groups[slot]
		if len(group) < 2 {
			continue
		}
		conflicts = append(conflicts, teacherConflicts(slot, group)...)
		conflicts = append(conflicts, roomConflicts(slot, group)...)
		conflicts = append(conflicts, classConflicts(slot, group)...)
	}
	return conflicts
}

// ConflictsInvolving keeps the conflicts that list at least one of ids.
func ConflictsInvolving(conflicts []models.Conflict, ids ...string) []models.Conflict {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	result := make([]models.Conflict, 0)
	for _, c := range conflicts {
		for _, id := range c.EntryIDs {
			if _, ok := wanted[id]; ok {
				result = append(result, c)
				break
			}
		}
	}
	return result
}

func collapseByID(entries []models.ScheduleEntry) []models.ScheduleEntry {
	index := make(map[string]int, len(entries))
	unique := make([]models.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.ID != "" {
			if pos, ok := index[entry.ID]; ok {
				unique[pos] = entry
				continue
			}
			index[entry.ID] = len(unique)
		}
		unique = append(unique, entry)
	}
	return unique
}

func teacherConflicts(slot models.SlotKey, group []models.ScheduleEntry) []models.Conflict {
	byTeacher, keys := bucket(group, func(e models.ScheduleEntry) string { return e.TeacherID })
	var result []models.Conflict
	for _, teacherID := range keys {
		ids := byTeacher[teacherID]
		if len(ids) < 2 {
			continue
		}
		result = append(result, models.Conflict{
			Type:     models.ConflictTeacher,
			Message:  fmt.Sprintf("teacher %s is booked %d times on %s period %d of week %s", teacherID, len(ids), slot.Day, slot.PeriodNo, slot.WeekStart),
			EntryIDs: ids,
			Meta:     slotMeta(slot, "teacher_id", teacherID),
		})
	}
	return result
}

func roomConflicts(slot models.SlotKey, group []models.ScheduleEntry) []models.Conflict {
	byRoom, keys := bucket(group, func(e models.ScheduleEntry) string { return e.Room() })
	var result []models.Conflict
	for _, roomID := range keys {
		ids := byRoom[roomID]
		if len(ids) < 2 {
			continue
		}
		result = append(result, models.Conflict{
			Type:     models.ConflictRoom,
			Message:  fmt.Sprintf("room %s is booked %d times on %s period %d of week %s", roomID, len(ids), slot.Day, slot.PeriodNo, slot.WeekStart),
			EntryIDs: ids,
			Meta:     slotMeta(slot, "room_id", roomID),
		})
	}
	return result
}

func classConflicts(slot models.SlotKey, group []models.ScheduleEntry) []models.Conflict {
	byClass, keys := bucket(group, func(e models.ScheduleEntry) string { return e.ClassID + "/" + e.Section })
	var result []models.Conflict
	for _, classKey := range keys {
		ids := byClass[classKey]
		if len(ids) < 2 {
			continue
		}
		result = append(result, models.Conflict{
			Type:     models.ConflictDoubleBook,
			Message:  fmt.Sprintf("class %s has %d entries on %s period %d of week %s", classKey, len(ids), slot.Day, slot.PeriodNo, slot.WeekStart),
			EntryIDs: ids,
			Meta:     slotMeta(slot, "class_section", classKey),
		})
	}
	return result
}

// bucket groups entry ids by key, skipping empty keys. Keys come back sorted.
func bucket(group []models.ScheduleEntry, keyOf func(models.ScheduleEntry) string) (map[string][]string, []string) {
	buckets := make(map[string][]string)
	var keys []string
	for _, entry := range group {
		key := keyOf(entry)
		if key == "" {
			continue
		}
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], entry.ID)
	}
	sort.Strings(keys)
	return buckets, keys
}

func slotMeta(slot models.SlotKey, field, value string) map[string]any {
	return map[string]any{
		"week_start": slot.WeekStart,
		"day":        slot.Day,
		"period_no":  slot.PeriodNo,
		field:        value,
	}
}

func slotLess(a, b models.SlotKey) bool {
	if a.WeekStart != b.WeekStart {
		return a.WeekStart < b.WeekStart
	}
	if a.Day != b.Day {
		return a.Day.Index() < b.Day.Index()
	}
	return a.PeriodNo < b.PeriodNo
}
