package appointment

import (
	"sort"
	"time"

	"github.com/provcal/appointment-api/internal/model"
)

// overlaps reports whether a candidate range conflicts with an existing
// interval [start, end). The three clauses are deliberately asymmetric:
// two intervals that merely touch at a boundary do not conflict.
func overlaps(candidateStart, candidateEnd, start, end time.Time) bool {
	// candidate start falls inside the existing interval
	if !candidateStart.Before(start) && candidateStart.Before(end) {
		return true
	}
	// candidate end falls inside the existing interval
	if candidateEnd.After(start) && !candidateEnd.After(end) {
		return true
	}
	// candidate fully contains the existing interval
	if !candidateStart.After(start) && !candidateEnd.Before(end) {
		return true
	}
	return false
}

// freeIntervals sweeps the day's active bookings in start order and emits
// the ordered free gaps between dayStart and dayEnd. Overlapping input
// intervals are tolerated: the cursor only ever moves forward.
func freeIntervals(dayStart, dayEnd time.Time, appointments []*model.Appointment) []model.TimeSlot {
	active := make([]*model.Appointment, 0, len(appointments))
	for _, apt := range appointments {
		if apt.IsActive() {
			active = append(active, apt)
		}
	}

	if len(active) == 0 {
		return []model.TimeSlot{{Start: dayStart, End: dayEnd}}
	}

	// Stable sort on start time only; ties keep their original order.
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].StartTime.Before(active[j].StartTime)
	})

	slots := make([]model.TimeSlot, 0, len(active)+1)
	cursor := dayStart

	for _, apt := range active {
		if cursor.Before(apt.StartTime) {
			slots = append(slots, model.TimeSlot{Start: cursor, End: apt.StartTime})
		}
		if apt.EndTime.After(cursor) {
			cursor = apt.EndTime
		}
	}

	if cursor.Before(dayEnd) {
		slots = append(slots, model.TimeSlot{Start: cursor, End: dayEnd})
	}

	return slots
}
