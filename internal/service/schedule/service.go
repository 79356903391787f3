package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/cache"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/metrics"
)

const (
	// SlotDuration is the fixed length of every bookable slot.
	SlotDuration = 30 * time.Minute
	// HorizonDays is how many days of slots are offered, today included.
	HorizonDays = 4
)

type Service struct {
	store   repository.Store
	cache   cache.SlotCache
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store repository.Store, slotCache cache.SlotCache, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   slotCache,
		metrics: m,
		now:     time.Now,
	}
}

// GetAvailableSlots computes the doctor's bookable slots over the horizon:
// the declared availability window reprojected onto each day, minus slots
// already taken by SCHEDULED appointments. A doctor without an AVAILABLE
// window is an error, not an empty result.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID) ([]*model.DaySlots, error) {
	s.metrics.SlotQueriesTotal.Inc()

	doctor, err := s.store.Users().Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsVerifiedDoctor() {
		return nil, apperror.NotFound("doctor not found or not verified")
	}

	if days, ok := s.cache.Get(ctx, doctorID.String()); ok {
		s.metrics.SlotCacheHits.Inc()
		return days, nil
	}
	s.metrics.SlotCacheMisses.Inc()

	availability, err := s.store.Availabilities().Latest(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	horizonEnd := endOfDay(now.AddDate(0, 0, HorizonDays-1))
	appointments, err := s.store.Appointments().ListScheduled(ctx, doctorID, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled appointments: %w", err)
	}

	days := filterConflicting(resolveCandidates(availability, now), appointments)

	// Best-effort cache write; a cold cache just means recomputation.
	s.cache.Set(ctx, doctorID.String(), days)

	return days, nil
}

// resolveCandidates projects the availability window's time-of-day onto
// each horizon day and cuts it into SlotDuration pieces. A slot is emitted
// only if it fits entirely inside the window (ending exactly at the window
// end is allowed) and does not start in the past.
func resolveCandidates(availability *model.Availability, now time.Time) []*model.DaySlots {
	days := make([]*model.DaySlots, 0, HorizonDays)

	for i := 0; i < HorizonDays; i++ {
		day := now.AddDate(0, 0, i)
		windowStart := projectOnto(availability.StartTime, day)
		windowEnd := projectOnto(availability.EndTime, day)

		group := &model.DaySlots{
			Date:        day.Format("2006-01-02"),
			DisplayDate: day.Format("Monday, January 2"),
			Slots:       []model.TimeSlot{},
		}

		for current := windowStart; !current.Add(SlotDuration).After(windowEnd); current = current.Add(SlotDuration) {
			if current.Before(now) {
				continue
			}
			next := current.Add(SlotDuration)
			group.Slots = append(group.Slots, model.TimeSlot{
				StartTime: current,
				EndTime:   next,
				Formatted: current.Format("3:04 PM") + " - " + next.Format("3:04 PM"),
			})
		}

		days = append(days, group)
	}

	return days
}

// filterConflicting drops every candidate that overlaps a scheduled
// appointment. Days stay in the output even when all their slots are gone.
func filterConflicting(days []*model.DaySlots, appointments []*model.Appointment) []*model.DaySlots {
	for _, day := range days {
		kept := day.Slots[:0]
		for _, slot := range day.Slots {
			if !overlapsAny(slot, appointments) {
				kept = append(kept, slot)
			}
		}
		day.Slots = kept
	}
	return days
}

func overlapsAny(slot model.TimeSlot, appointments []*model.Appointment) bool {
	for _, apt := range appointments {
		if model.Overlaps(slot.StartTime, slot.EndTime, apt.StartTime, apt.EndTime) {
			return true
		}
	}
	return false
}

// projectOnto keeps t's time-of-day but moves it to day's calendar date.
func projectOnto(t, day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
