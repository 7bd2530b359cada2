package gsync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/cache"
	"github.com/akhramovs/tempora/internal/server/models"
)

// Lock operation names. One in-flight sync per (operation, user).
const (
	opSyncCalendars = "syncCalendars"
	opSyncEvents    = "syncEvents"
)

// eventSyncConcurrency bounds simultaneous provider calls during the
// per-calendar event fan-out.
const eventSyncConcurrency = 3

// calendarService is the slice of the calendars data service the sync uses.
type calendarService interface {
	GetAll(ctx context.Context, userID string) ([]models.Calendar, error)
	CreateBulk(ctx context.Context, userID string, forms []models.CalendarForm) ([]models.Calendar, error)
}

// eventService is the slice of the events data service the sync uses.
type eventService interface {
	CreateBulk(ctx context.Context, userID string, forms []models.EventForm) ([]models.Event, error)
}

// externalIDSource lists already-imported provider ids for the diff step.
// The calendar and event stores both implement it.
type externalIDSource interface {
	SelectExternalIDs(ctx context.Context, userID, source string) ([]string, error)
}

// Service imports the provider's calendars and events for one user at a
// time, guarded by the distributed lock.
type Service struct {
	locker  *cache.Locker
	lockTTL time.Duration
	log     logging.Logger

	calendars calendarService
	events    eventService

	calendarIDs externalIDSource
	eventIDs    externalIDSource
}

// New wires a sync service. lockTTL caps how long a crashed sync can block
// the next one.
func New(locker *cache.Locker, lockTTL time.Duration, calendars calendarService, events eventService, calendarIDs, eventIDs externalIDSource, log logging.Logger) *Service {
	return &Service{
		locker:      locker,
		lockTTL:     lockTTL,
		log:         log.With("component", "gsync"),
		calendars:   calendars,
		events:      events,
		calendarIDs: calendarIDs,
		eventIDs:    eventIDs,
	}
}

// SyncCalendars imports provider calendars the user does not have yet.
// When a sync for this user is already running it returns nil immediately
// without touching anything.
func (s *Service) SyncCalendars(ctx context.Context, userID string, provider Provider) error {
	acquired, err := s.locker.Acquire(ctx, opSyncCalendars, userID, s.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.log.Info(ctx, "calendar sync already running", "userID", userID)
		return nil
	}
	defer s.release(ctx, opSyncCalendars, userID)

	remote, err := provider.ListCalendars(ctx)
	if err != nil {
		return err
	}

	existing, err := s.calendarIDs.SelectExternalIDs(ctx, userID, models.SourceGoogle)
	if err != nil {
		return err
	}
	seen := toSet(existing)

	var forms []models.CalendarForm
	for _, cal := range remote {
		if cal.AccessRole != "owner" {
			continue
		}
		if _, ok := seen[cal.ID]; ok {
			continue
		}
		externalID := cal.ID
		forms = append(forms, models.CalendarForm{
			Name:       cal.Name,
			Color:      nearestColor(cal.ColorHex),
			IsDefault:  false,
			Source:     models.SourceGoogle,
			ExternalID: &externalID,
		})
	}

	created, err := s.calendars.CreateBulk(ctx, userID, forms)
	if err != nil {
		return fmt.Errorf("import calendars: %w", err)
	}
	s.log.Info(ctx, "calendar sync finished", "userID", userID, "remote", len(remote), "imported", len(created))
	return nil
}

// SyncEvents imports provider events into the user's already-imported
// calendars, fanning out per calendar with bounded concurrency. Provider
// errors abort the remaining calendars; earlier inserts stay committed.
func (s *Service) SyncEvents(ctx context.Context, userID string, provider Provider) error {
	acquired, err := s.locker.Acquire(ctx, opSyncEvents, userID, s.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.log.Info(ctx, "event sync already running", "userID", userID)
		return nil
	}
	defer s.release(ctx, opSyncEvents, userID)

	locals, err := s.calendars.GetAll(ctx, userID)
	if err != nil {
		return err
	}

	existing, err := s.eventIDs.SelectExternalIDs(ctx, userID, models.SourceGoogle)
	if err != nil {
		return err
	}
	seen := toSet(existing)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eventSyncConcurrency)

	for _, cal := range locals {
		if cal.Source != models.SourceGoogle || cal.ExternalID == nil {
			continue
		}
		cal := cal
		g.Go(func() error {
			return s.syncCalendarEvents(gctx, userID, provider, cal, seen)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info(ctx, "event sync finished", "userID", userID)
	return nil
}

// syncCalendarEvents imports the missing events of one calendar. seen is
// shared read-only across the fan-out.
func (s *Service) syncCalendarEvents(ctx context.Context, userID string, provider Provider, cal models.Calendar, seen map[string]struct{}) error {
	remote, err := provider.ListEvents(ctx, *cal.ExternalID)
	if err != nil {
		return err
	}

	var forms []models.EventForm
	for _, ev := range remote {
		if ev.Status == "cancelled" || ev.EventType == "birthday" {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		externalID := ev.ID
		color := cal.Color
		if ev.ColorHex != "" {
			color = nearestColor(ev.ColorHex)
		}
		forms = append(forms, models.EventForm{
			CalendarID:  cal.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.Start,
			End:         ev.End,
			AllDay:      ev.AllDay,
			Color:       color,
			Source:      models.SourceGoogle,
			ExternalID:  &externalID,
		})
	}

	created, err := s.events.CreateBulk(ctx, userID, forms)
	if err != nil {
		return fmt.Errorf("import events for calendar %s: %w", cal.ID, err)
	}
	s.log.Info(ctx, "calendar events synced", "userID", userID, "calendarID", cal.ID, "remote", len(remote), "imported", len(created))
	return nil
}

// release drops the sync lock even when ctx is already cancelled.
func (s *Service) release(ctx context.Context, operation, userID string) {
	if err := s.locker.Release(context.WithoutCancel(ctx), operation, userID); err != nil {
		s.log.Warn(ctx, "sync lock release failed", "operation", operation, "userID", userID, "error", err)
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
