// Package gsync reconciles a user's Google Calendar state into the local
// store. Imports are one-way and additive: rows already correlated by
// external id are never touched, so running a sync twice is a no-op.
package gsync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Calendar is a provider-native calendar stripped down to the fields the
// sync needs.
type Calendar struct {
	ID         string
	Name       string
	ColorHex   string
	AccessRole string
	Primary    bool
}

// Event is a provider-native event. All-day events carry date-only
// boundaries with AllDay set.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      string
	EventType   string
	ColorHex    string
}

// Provider abstracts the external calendar API so the sync service can be
// tested without network access.
type Provider interface {
	// ListCalendars returns every calendar visible to the authenticated
	// account.
	ListCalendars(ctx context.Context) ([]Calendar, error)

	// ListEvents returns the events of one calendar, expanded to single
	// instances, from one year ago onward.
	ListEvents(ctx context.Context, calendarID string) ([]Event, error)
}

// eventLookback bounds how far back ListEvents reaches.
const eventLookback = 365 * 24 * time.Hour

// GoogleProvider implements Provider over the Calendar v3 API.
type GoogleProvider struct {
	svc *calendar.Service
}

// OAuthConfig returns the OAuth2 config used for the Google consent flow.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// NewGoogleProvider builds a provider from a previously obtained user token.
// The token source refreshes it transparently when expired.
func NewGoogleProvider(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*GoogleProvider, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

func (p *GoogleProvider) ListCalendars(ctx context.Context) ([]Calendar, error) {
	list, err := p.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	out := make([]Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, Calendar{
			ID:         item.Id,
			Name:       item.Summary,
			ColorHex:   item.BackgroundColor,
			AccessRole: item.AccessRole,
			Primary:    item.Primary,
		})
	}
	return out, nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, calendarID string) ([]Event, error) {
	tmin := time.Now().UTC().Add(-eventLookback).Format(time.RFC3339)

	var out []Event
	call := p.svc.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(tmin).
		OrderBy("startTime").
		Context(ctx)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, ok := fromGoogleEvent(item)
			if !ok {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", calendarID, err)
	}
	return out, nil
}

// fromGoogleEvent maps one API event. Events without any start information
// are dropped.
func fromGoogleEvent(item *calendar.Event) (Event, bool) {
	if item.Start == nil || item.End == nil {
		return Event{}, false
	}

	start, end, allDay, ok := eventSpan(item.Start, item.End)
	if !ok {
		return Event{}, false
	}

	return Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Status:      item.Status,
		EventType:   item.EventType,
		ColorHex:    eventColorHex(item.ColorId),
	}, true
}

// eventSpan splits the two provider date encodings: timed events carry
// RFC3339 timestamps, all-day events carry bare dates in the calendar's
// timezone with an exclusive end date.
func eventSpan(start, end *calendar.EventDateTime) (s, e time.Time, allDay, ok bool) {
	if start.DateTime != "" {
		s, err := time.Parse(time.RFC3339, start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		e, err := time.Parse(time.RFC3339, end.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return s.UTC(), e.UTC(), false, true
	}

	if start.Date != "" {
		s, err := time.Parse("2006-01-02", start.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		e, err := time.Parse("2006-01-02", end.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		// The provider's all-day end date is exclusive; store the last
		// covered day instead.
		return s, e.AddDate(0, 0, -1), true, true
	}

	return time.Time{}, time.Time{}, false, false
}

// Google's fixed event color palette, keyed by colorId.
var googleEventColors = map[string]string{
	"1":  "#a4bdfc",
	"2":  "#7ae7bf",
	"3":  "#dbadff",
	"4":  "#ff887c",
	"5":  "#fbd75b",
	"6":  "#ffb878",
	"7":  "#46d6db",
	"8":  "#e1e1e1",
	"9":  "#5484ed",
	"10": "#51b749",
	"11": "#dc2127",
}

func eventColorHex(colorID string) string {
	return googleEventColors[colorID]
}
