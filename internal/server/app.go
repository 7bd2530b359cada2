// Package server wires the application together: configuration, storage,
// cache, vector index, sync, assistant and the HTTP endpoint, with
// signal-driven graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/assistant"
	"github.com/akhramovs/tempora/internal/server/cache"
	"github.com/akhramovs/tempora/internal/server/config"
	"github.com/akhramovs/tempora/internal/server/dataservice"
	"github.com/akhramovs/tempora/internal/server/export"
	"github.com/akhramovs/tempora/internal/server/gsync"
	"github.com/akhramovs/tempora/internal/server/httpapi"
	"github.com/akhramovs/tempora/internal/server/models"
	"github.com/akhramovs/tempora/internal/server/shared/db"
	"github.com/akhramovs/tempora/internal/server/vector"
)

type App struct {
	config *config.Config
	logger logging.Logger
	stores db.StoreManager
	server *httpapi.Server
}

// eventText is the embedding projection for events.
func eventText(e models.Event) string {
	return strings.TrimSpace(strings.Join([]string{e.Title, e.Description, e.Location}, " "))
}

// taskText is the embedding projection for tasks.
func taskText(t models.Task) string {
	return strings.TrimSpace(t.Title + " " + t.Description)
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	stores, err := db.NewPostgresStoreManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	c := cache.New(rdb)
	locker := cache.NewLocker(c)

	embedder := vector.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
	eventIndex := vector.NewIndex(stores.Conn(), "events", embedder)
	taskIndex := vector.NewIndex(stores.Conn(), "tasks", embedder)

	calendars := dataservice.New("calendars", stores.Calendars(), logger,
		dataservice.WithCache[models.Calendar, models.CalendarForm, models.CalendarPatch](c, cfg.CacheTTL))
	events := dataservice.New("events", stores.Events(), logger,
		dataservice.WithCache[models.Event, models.EventForm, models.EventPatch](c, cfg.CacheTTL),
		dataservice.WithVector[models.Event, models.EventForm, models.EventPatch](eventIndex, eventText))
	tasks := dataservice.New("tasks", stores.Tasks(), logger,
		dataservice.WithCache[models.Task, models.TaskForm, models.TaskPatch](c, cfg.CacheTTL),
		dataservice.WithVector[models.Task, models.TaskForm, models.TaskPatch](taskIndex, taskText))
	birthdays := dataservice.New("birthdays", stores.Birthdays(), logger,
		dataservice.WithCache[models.Birthday, models.BirthdayForm, models.BirthdayPatch](c, cfg.CacheTTL))
	chats := dataservice.New[models.Chat, models.ChatForm, models.ChatPatch]("chats", stores.Chats(), logger)
	messages := dataservice.New[models.Message, models.MessageForm, models.MessagePatch]("messages", stores.Messages(), logger)

	syncService := gsync.New(locker, cfg.SyncLockTTL, calendars, events, stores.Calendars(), stores.Events(), logger)

	oauthCfg := gsync.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, "")
	newProvider := func(ctx context.Context, token *oauth2.Token) (gsync.Provider, error) {
		return gsync.NewGoogleProvider(ctx, oauthCfg, token)
	}

	toolbox := assistant.NewToolbox(events, tasks, calendars)
	assistantService := assistant.New(cfg.AnthropicAPIKey, toolbox, chats, messages, stores.Messages(), stores.Credits(), logger)

	exportService := export.NewService(cfg, calendars, events)

	srv := httpapi.NewServer(httpapi.ServerOptions{
		SecretKey:   []byte(cfg.SecretKey),
		Logger:      logger,
		Calendars:   calendars,
		Events:      events,
		Tasks:       tasks,
		Birthdays:   birthdays,
		Chats:       chats,
		Sync:        syncService,
		NewProvider: newProvider,
		Assistant:   assistantService,
		Export:      exportService,
	})

	return &App{config: cfg, logger: logger, stores: stores, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	httpServer := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		app.logger.Info(ctx, "shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}

	if err := app.stores.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "app stopped")
}
