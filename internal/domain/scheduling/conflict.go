package scheduling

import "github.com/google/uuid"

// Overlaps reports whether the half-open intervals [start, start+duration) of
// a and b intersect. Back-to-back appointments do not overlap.
func Overlaps(a, b Appointment) bool {
	return a.Start.Before(b.End()) && a.End().After(b.Start)
}

// HasConflict reports whether candidate overlaps any blocking appointment in
// existing. existing is assumed to belong to the candidate's resource.
func HasConflict(candidate Appointment, existing []Appointment) bool {
	for i := range existing {
		if blocks(candidate, existing[i]) {
			return true
		}
	}
	return false
}

// FindConflicts returns the blocking appointments candidate overlaps, in the
// order they appear in existing.
func FindConflicts(candidate Appointment, existing []Appointment) []Appointment {
	var out []Appointment
	for i := range existing {
		if blocks(candidate, existing[i]) {
			out = append(out, existing[i])
		}
	}
	return out
}

func blocks(candidate, e Appointment) bool {
	// A stored appointment never conflicts with itself when it is rescheduled.
	if candidate.ID != uuid.Nil && e.ID == candidate.ID {
		return false
	}
	return e.Status.Blocking() && Overlaps(candidate, e)
}
