package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/assistant"
	"github.com/akhramovs/tempora/internal/server/auth"
	"github.com/akhramovs/tempora/internal/server/dataservice"
	"github.com/akhramovs/tempora/internal/server/gsync"
	"github.com/akhramovs/tempora/internal/server/models"
)

var testSecret = []byte("test-secret")

// memStore is a generic in-memory store; entity specifics are injected as
// build/apply closures.
type memStore[T interface {
	RowID() string
	RowUserID() string
}, F any, P any] struct {
	rows   map[string]T
	order  []string
	nextID int
	build  func(id, userID string, form F) T
	apply  func(row T, patch P) T
}

func newMemStore[T interface {
	RowID() string
	RowUserID() string
}, F any, P any](build func(id, userID string, form F) T, apply func(row T, patch P) T) *memStore[T, F, P] {
	return &memStore[T, F, P]{rows: map[string]T{}, build: build, apply: apply}
}

func (m *memStore[T, F, P]) SelectAll(_ context.Context, userID string) ([]T, error) {
	var out []T
	for _, id := range m.order {
		if row := m.rows[id]; row.RowUserID() == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStore[T, F, P]) SelectByID(_ context.Context, id string) (T, error) {
	row, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, common.ErrNotFound
	}
	return row, nil
}

func (m *memStore[T, F, P]) SelectIDs(_ context.Context, userID string) ([]string, error) {
	var ids []string
	for _, id := range m.order {
		if m.rows[id].RowUserID() == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore[T, F, P]) Insert(_ context.Context, userID string, form F) (T, error) {
	m.nextID++
	row := m.build(fmt.Sprintf("id%d", m.nextID), userID, form)
	m.rows[row.RowID()] = row
	m.order = append(m.order, row.RowID())
	return row, nil
}

func (m *memStore[T, F, P]) InsertBulk(ctx context.Context, userID string, forms []F) ([]T, error) {
	out := make([]T, 0, len(forms))
	for _, f := range forms {
		row, err := m.Insert(ctx, userID, f)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memStore[T, F, P]) Update(_ context.Context, id string, patch P) (T, error) {
	row, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, common.ErrNotFound
	}
	row = m.apply(row, patch)
	m.rows[id] = row
	return row, nil
}

func (m *memStore[T, F, P]) Delete(_ context.Context, id string) (T, error) {
	row, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, common.ErrNotFound
	}
	delete(m.rows, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return row, nil
}

func (m *memStore[T, F, P]) DeleteAll(_ context.Context, userID string) error {
	kept := m.order[:0]
	for _, id := range m.order {
		if m.rows[id].RowUserID() == userID {
			delete(m.rows, id)
		} else {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

type fakeSync struct {
	calendarSyncs int
	eventSyncs    int
}

func (f *fakeSync) SyncCalendars(context.Context, string, gsync.Provider) error {
	f.calendarSyncs++
	return nil
}

func (f *fakeSync) SyncEvents(context.Context, string, gsync.Provider) error {
	f.eventSyncs++
	return nil
}

type fakeAssistant struct {
	err error
}

func (f *fakeAssistant) Chat(_ context.Context, _ string, chatID, text string) (assistant.Reply, error) {
	if f.err != nil {
		return assistant.Reply{}, f.err
	}
	return assistant.Reply{ChatID: "chat1", Text: "echo: " + text}, nil
}

type fakeExport struct{}

func (fakeExport) Export(context.Context, string) (string, error) {
	return "https://minio.local/exports/u1/snap.json", nil
}

func testServer(t *testing.T) (*Server, *fakeSync, *fakeAssistant) {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	calendars := dataservice.New[models.Calendar, models.CalendarForm, models.CalendarPatch]("calendars",
		newMemStore(
			func(id, userID string, f models.CalendarForm) models.Calendar {
				return models.Calendar{ID: id, UserID: userID, Name: f.Name, Color: f.Color, Source: "local"}
			},
			func(row models.Calendar, p models.CalendarPatch) models.Calendar {
				if p.Name != nil {
					row.Name = *p.Name
				}
				if p.Color != nil {
					row.Color = *p.Color
				}
				return row
			}), log)

	events := dataservice.New[models.Event, models.EventForm, models.EventPatch]("events",
		newMemStore(
			func(id, userID string, f models.EventForm) models.Event {
				return models.Event{ID: id, UserID: userID, CalendarID: f.CalendarID, Title: f.Title, Start: f.Start, End: f.End, Source: "local"}
			},
			func(row models.Event, p models.EventPatch) models.Event {
				if p.Title != nil {
					row.Title = *p.Title
				}
				return row
			}), log)

	tasks := dataservice.New[models.Task, models.TaskForm, models.TaskPatch]("tasks",
		newMemStore(
			func(id, userID string, f models.TaskForm) models.Task {
				return models.Task{ID: id, UserID: userID, Title: f.Title, Source: "local"}
			},
			func(row models.Task, p models.TaskPatch) models.Task {
				if p.Title != nil {
					row.Title = *p.Title
				}
				return row
			}), log)

	birthdays := dataservice.New[models.Birthday, models.BirthdayForm, models.BirthdayPatch]("birthdays",
		newMemStore(
			func(id, userID string, f models.BirthdayForm) models.Birthday {
				return models.Birthday{ID: id, UserID: userID, Name: f.Name, Date: f.Date, Source: "local"}
			},
			func(row models.Birthday, p models.BirthdayPatch) models.Birthday {
				if p.Name != nil {
					row.Name = *p.Name
				}
				return row
			}), log)

	chats := dataservice.New[models.Chat, models.ChatForm, models.ChatPatch]("chats",
		newMemStore(
			func(id, userID string, f models.ChatForm) models.Chat {
				return models.Chat{ID: id, UserID: userID, Title: f.Title, Source: "local"}
			},
			func(row models.Chat, p models.ChatPatch) models.Chat {
				if p.Title != nil {
					row.Title = *p.Title
				}
				return row
			}), log)

	sync := &fakeSync{}
	asst := &fakeAssistant{}
	srv := NewServer(ServerOptions{
		SecretKey: testSecret,
		Logger:    log,
		Calendars: calendars,
		Events:    events,
		Tasks:     tasks,
		Birthdays: birthdays,
		Chats:     chats,
		Sync:      sync,
		NewProvider: func(context.Context, *oauth2.Token) (gsync.Provider, error) {
			return nil, nil
		},
		Assistant: asst,
		Export:    fakeExport{},
	})
	return srv, sync, asst
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func mustToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestRouter_RejectsMissingAndBadTokens(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Router()

	rec := doRequest(t, h, http.MethodGet, "/calendars/getAll", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/calendars/getAll", "garbage.token.value", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
}

func TestRouter_CalendarCRUD(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Router()
	token := mustToken(t, "u1")

	rec := doRequest(t, h, http.MethodPost, "/calendars/create", token, models.CalendarForm{Name: "Work", Color: "#3b82f6"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("create envelope: %+v", env)
	}
	created := env.Data.(map[string]any)
	id := created["id"].(string)

	rec = doRequest(t, h, http.MethodGet, "/calendars/getAll", token, nil)
	env = decodeEnvelope(t, rec)
	rows := env.Data.([]any)
	if len(rows) != 1 {
		t.Fatalf("getAll after create: %+v", env)
	}

	newName := "Office"
	rec = doRequest(t, h, http.MethodPut, "/calendars/update/"+id, token, models.CalendarPatch{Name: &newName})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	env = decodeEnvelope(t, rec)
	if env.Data.(map[string]any)["name"] != "Office" {
		t.Fatalf("update result: %+v", env.Data)
	}

	rec = doRequest(t, h, http.MethodDelete, "/calendars/delete/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/calendars/get/"+id, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestRouter_ForeignRowsLookMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Router()

	rec := doRequest(t, h, http.MethodPost, "/calendars/create", mustToken(t, "owner"), models.CalendarForm{Name: "Private"})
	id := decodeEnvelope(t, rec).Data.(map[string]any)["id"].(string)

	intruder := mustToken(t, "intruder")
	if rec := doRequest(t, h, http.MethodGet, "/calendars/get/"+id, intruder, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: status %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/calendars/delete/"+id, intruder, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: status %d", rec.Code)
	}
}

func TestRouter_ValidationErrorsAreFormErrors(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Router()
	token := mustToken(t, "u1")

	rec := doRequest(t, h, http.MethodPost, "/calendars/create", token, map[string]any{"color": "#fff"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success || !env.IsFormError {
		t.Fatalf("expected form error envelope, got %+v", env)
	}
}

func TestRouter_GoogleSyncRunsCalendarThenEventSync(t *testing.T) {
	srv, sync, _ := testServer(t)
	h := srv.Router()
	token := mustToken(t, "u1")

	rec := doRequest(t, h, http.MethodPost, "/sync/google", token, map[string]any{"accessToken": "ya29.token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: status %d body %s", rec.Code, rec.Body.String())
	}
	if sync.calendarSyncs != 1 || sync.eventSyncs != 1 {
		t.Fatalf("sync calls: calendars=%d events=%d", sync.calendarSyncs, sync.eventSyncs)
	}
}

func TestRouter_AssistantChat(t *testing.T) {
	srv, _, asst := testServer(t)
	h := srv.Router()
	token := mustToken(t, "u1")

	rec := doRequest(t, h, http.MethodPost, "/assistant/chat", token, map[string]any{"text": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: status %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if data["text"] != "echo: hello" {
		t.Fatalf("unexpected reply: %+v", data)
	}

	asst.err = common.ErrInsufficientCredits
	rec = doRequest(t, h, http.MethodPost, "/assistant/chat", token, map[string]any{"text": "hello"})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestRouter_ExportSnapshot(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Router()

	rec := doRequest(t, h, http.MethodGet, "/export/snapshot", mustToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Data.(map[string]any)["url"] == "" {
		t.Fatalf("missing url in %+v", env)
	}
}
