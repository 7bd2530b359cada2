package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/akhramovs/tempora/internal/server/models"
)

// eventService is the slice of the events data service exposed to the model.
type eventService interface {
	GetAll(ctx context.Context, userID string) ([]models.Event, error)
	Create(ctx context.Context, userID string, form models.EventForm) (models.Event, error)
	Search(ctx context.Context, userID, query string, limit int) ([]models.Event, error)
}

type taskService interface {
	GetAll(ctx context.Context, userID string) ([]models.Task, error)
	Create(ctx context.Context, userID string, form models.TaskForm) (models.Task, error)
}

type calendarService interface {
	GetAll(ctx context.Context, userID string) ([]models.Calendar, error)
}

// Toolbox executes the model's tool calls against the data services. Every
// call is scoped to the requesting user; the model never chooses the owner.
type Toolbox struct {
	events    eventService
	tasks     taskService
	calendars calendarService
}

func NewToolbox(events eventService, tasks taskService, calendars calendarService) *Toolbox {
	return &Toolbox{events: events, tasks: tasks, calendars: calendars}
}

// Definitions returns the tool schemas advertised to the model.
func (tb *Toolbox) Definitions() []anthropic.ToolUnionParam {
	tools := []anthropic.ToolParam{
		{
			Name:        "listEvents",
			Description: anthropic.String("List all of the user's calendar events."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{},
			},
		},
		{
			Name:        "createEvent",
			Description: anthropic.String("Create a calendar event. Times are RFC 3339 timestamps in UTC."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"calendarId":  map[string]any{"type": "string", "description": "Target calendar id."},
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"location":    map[string]any{"type": "string"},
					"start":       map[string]any{"type": "string", "format": "date-time"},
					"end":         map[string]any{"type": "string", "format": "date-time"},
					"allDay":      map[string]any{"type": "boolean"},
				},
				Required: []string{"calendarId", "title", "start", "end"},
			},
		},
		{
			Name:        "searchEvents",
			Description: anthropic.String("Search the user's events semantically by free-text query."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer", "description": "Maximum results, default 10."},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "listTasks",
			Description: anthropic.String("List all of the user's tasks."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{},
			},
		},
		{
			Name:        "createTask",
			Description: anthropic.String("Create a task with an optional RFC 3339 due date."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"dueDate":     map[string]any{"type": "string", "format": "date-time"},
				},
				Required: []string{"title"},
			},
		},
		{
			Name:        "listCalendars",
			Description: anthropic.String("List the user's calendars with their ids and colors."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{},
			},
		},
	}

	out := make([]anthropic.ToolUnionParam, len(tools))
	for i := range tools {
		out[i] = anthropic.ToolUnionParam{OfTool: &tools[i]}
	}
	return out
}

// Invoke runs one named tool and returns its JSON result.
func (tb *Toolbox) Invoke(ctx context.Context, userID, name string, input json.RawMessage) (string, error) {
	switch name {
	case "listEvents":
		rows, err := tb.events.GetAll(ctx, userID)
		if err != nil {
			return "", err
		}
		return encode(rows)

	case "createEvent":
		var args struct {
			CalendarID  string    `json:"calendarId"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			Location    string    `json:"location"`
			Start       time.Time `json:"start"`
			End         time.Time `json:"end"`
			AllDay      bool      `json:"allDay"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("createEvent arguments: %w", err)
		}
		row, err := tb.events.Create(ctx, userID, models.EventForm{
			CalendarID:  args.CalendarID,
			Title:       args.Title,
			Description: args.Description,
			Location:    args.Location,
			Start:       args.Start,
			End:         args.End,
			AllDay:      args.AllDay,
			Source:      models.SourceLocal,
		})
		if err != nil {
			return "", err
		}
		return encode(row)

	case "searchEvents":
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("searchEvents arguments: %w", err)
		}
		rows, err := tb.events.Search(ctx, userID, args.Query, args.Limit)
		if err != nil {
			return "", err
		}
		return encode(rows)

	case "listTasks":
		rows, err := tb.tasks.GetAll(ctx, userID)
		if err != nil {
			return "", err
		}
		return encode(rows)

	case "createTask":
		var args struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			DueDate     *time.Time `json:"dueDate"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("createTask arguments: %w", err)
		}
		row, err := tb.tasks.Create(ctx, userID, models.TaskForm{
			Title:       args.Title,
			Description: args.Description,
			DueDate:     args.DueDate,
			Source:      models.SourceLocal,
		})
		if err != nil {
			return "", err
		}
		return encode(row)

	case "listCalendars":
		rows, err := tb.calendars.GetAll(ctx, userID)
		if err != nil {
			return "", err
		}
		return encode(rows)
	}

	return "", fmt.Errorf("unknown tool %q", name)
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
