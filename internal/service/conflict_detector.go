package service

import "github.com/noah-isme/gym-backoffice-api/internal/models"

// OfferingsConflict reports whether two offerings of the same instructor collide: they share a
// weekday, their validity windows overlap (open end counts as unbounded) and their time slots overlap.
func OfferingsConflict(a, b models.ClassOffering) bool {
	if !a.Weekdays.Intersects(b.Weekdays) {
		return false
	}
	if !validityOverlaps(a, b) {
		return false
	}
	return a.StartTime < b.EndTime() && b.StartTime < a.EndTime()
}

func validityOverlaps(a, b models.ClassOffering) bool {
	if a.ValidUntil != nil && a.ValidUntil.Before(b.ValidFrom) {
		return false
	}
	if b.ValidUntil != nil && b.ValidUntil.Before(a.ValidFrom) {
		return false
	}
	return true
}

// FindConflict returns the first active offering in others, other than candidate itself,
// that collides with candidate.
func FindConflict(candidate models.ClassOffering, others []models.ClassOffering) *models.ClassOffering {
	for i := range others {
		other := others[i]
		if !other.Active || other.InstructorID != candidate.InstructorID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if OfferingsConflict(candidate, other) {
			return &other
		}
	}
	return nil
}
