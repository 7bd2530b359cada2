// Package httpapi exposes the service layer over HTTP: per-entity CRUD
// groups plus the sync, assistant and export endpoints, all behind bearer
// token auth.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/assistant"
	"github.com/akhramovs/tempora/internal/server/dataservice"
	"github.com/akhramovs/tempora/internal/server/gsync"
	"github.com/akhramovs/tempora/internal/server/models"
)

// syncService runs the provider import, one operation at a time per user.
type syncService interface {
	SyncCalendars(ctx context.Context, userID string, provider gsync.Provider) error
	SyncEvents(ctx context.Context, userID string, provider gsync.Provider) error
}

type assistantService interface {
	Chat(ctx context.Context, userID, chatID, text string) (assistant.Reply, error)
}

type exportService interface {
	Export(ctx context.Context, userID string) (string, error)
}

// ProviderFactory builds a calendar provider from a user's OAuth token.
type ProviderFactory func(ctx context.Context, token *oauth2.Token) (gsync.Provider, error)

// Server holds the wired services behind the HTTP surface.
type Server struct {
	secretKey []byte
	validate  *validator.Validate
	log       logging.Logger

	calendars *dataservice.Service[models.Calendar, models.CalendarForm, models.CalendarPatch]
	events    *dataservice.Service[models.Event, models.EventForm, models.EventPatch]
	tasks     *dataservice.Service[models.Task, models.TaskForm, models.TaskPatch]
	birthdays *dataservice.Service[models.Birthday, models.BirthdayForm, models.BirthdayPatch]
	chats     *dataservice.Service[models.Chat, models.ChatForm, models.ChatPatch]

	sync        syncService
	newProvider ProviderFactory
	assistant   assistantService
	export      exportService
}

type ServerOptions struct {
	SecretKey []byte
	Logger    logging.Logger

	Calendars *dataservice.Service[models.Calendar, models.CalendarForm, models.CalendarPatch]
	Events    *dataservice.Service[models.Event, models.EventForm, models.EventPatch]
	Tasks     *dataservice.Service[models.Task, models.TaskForm, models.TaskPatch]
	Birthdays *dataservice.Service[models.Birthday, models.BirthdayForm, models.BirthdayPatch]
	Chats     *dataservice.Service[models.Chat, models.ChatForm, models.ChatPatch]

	Sync        syncService
	NewProvider ProviderFactory
	Assistant   assistantService
	Export      exportService
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		secretKey:   opts.SecretKey,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         opts.Logger.With("component", "httpapi"),
		calendars:   opts.Calendars,
		events:      opts.Events,
		tasks:       opts.Tasks,
		birthdays:   opts.Birthdays,
		chats:       opts.Chats,
		sync:        opts.Sync,
		newProvider: opts.NewProvider,
		assistant:   opts.Assistant,
		export:      opts.Export,
	}
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.secretKey))

		r.Route("/calendars", NewResource(s.calendars, s.validate).Mount)
		r.Route("/events", NewResource(s.events, s.validate).Mount)
		r.Route("/tasks", NewResource(s.tasks, s.validate).Mount)
		r.Route("/birthdays", NewResource(s.birthdays, s.validate).Mount)
		r.Route("/chats", NewResource(s.chats, s.validate).Mount)

		r.Post("/sync/google", s.handleGoogleSync)
		r.Post("/assistant/chat", s.handleAssistantChat)
		r.Get("/export/snapshot", s.handleExportSnapshot)
	})

	return r
}

type googleSyncRequest struct {
	AccessToken  string    `json:"accessToken" validate:"required"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
}

// handleGoogleSync drops the cached calendar and event snapshots, then runs
// calendar sync followed by event sync so imported calendars are visible to
// the event pass.
func (s *Server) handleGoogleSync(w http.ResponseWriter, r *http.Request) {
	var req googleSyncRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	uid := userID(r)

	provider, err := s.newProvider(ctx, &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Expiry:       req.Expiry,
	})
	if err != nil {
		s.log.Error(ctx, "provider setup failed", "error", err)
		writeError(w, err)
		return
	}

	if err := s.calendars.ClearCache(ctx, uid); err != nil {
		writeError(w, err)
		return
	}
	if err := s.events.ClearCache(ctx, uid); err != nil {
		writeError(w, err)
		return
	}

	if err := s.sync.SyncCalendars(ctx, uid, provider); err != nil {
		s.log.Error(ctx, "calendar sync failed", "userID", uid, "error", err)
		writeError(w, err)
		return
	}
	if err := s.sync.SyncEvents(ctx, uid, provider); err != nil {
		s.log.Error(ctx, "event sync failed", "userID", uid, "error", err)
		writeError(w, err)
		return
	}

	writeData(w, nil)
}

type assistantChatRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text" validate:"required"`
}

func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	var req assistantChatRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		writeError(w, err)
		return
	}

	reply, err := s.assistant.Chat(r.Context(), userID(r), req.ChatID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, reply)
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	url, err := s.export.Export(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"url": url})
}
