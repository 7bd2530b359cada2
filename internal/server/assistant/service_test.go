package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/models"
)

type fakeCompleter struct {
	responses []*anthropic.Message
	calls     int
}

func (f *fakeCompleter) New(_ context.Context, _ anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("no scripted response left")
	}
	msg := f.responses[f.calls]
	f.calls++
	return msg, nil
}

func textResponse(text string) *anthropic.Message {
	return &anthropic.Message{
		Content:    []anthropic.ContentBlockUnion{{Type: "text", Text: text}},
		StopReason: anthropic.StopReasonEndTurn,
	}
}

func toolResponse(id, name string, input string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "tool_use", ID: id, Name: name, Input: json.RawMessage(input)},
		},
		StopReason: anthropic.StopReasonToolUse,
	}
}

type fakeChats struct {
	chats   map[string]models.Chat
	created []models.ChatForm
}

func (f *fakeChats) Get(_ context.Context, id string) (models.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return models.Chat{}, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeChats) Create(_ context.Context, userID string, form models.ChatForm) (models.Chat, error) {
	f.created = append(f.created, form)
	return models.Chat{ID: "chat-new", UserID: userID, Title: form.Title}, nil
}

type fakeMessages struct {
	created []models.MessageForm
}

func (f *fakeMessages) Create(_ context.Context, userID string, form models.MessageForm) (models.Message, error) {
	f.created = append(f.created, form)
	return models.Message{ID: "m", UserID: userID, ChatID: form.ChatID, Role: form.Role, Content: form.Content}, nil
}

type fakeHistory struct {
	messages []models.Message
}

func (f *fakeHistory) SelectByChat(context.Context, string) ([]models.Message, error) {
	return f.messages, nil
}

type fakeCredits struct {
	balance int
	entries []models.CreditForm
}

func (f *fakeCredits) Balance(context.Context, string) (int, error) {
	return f.balance, nil
}

func (f *fakeCredits) Insert(_ context.Context, userID string, form models.CreditForm) (models.Credit, error) {
	f.entries = append(f.entries, form)
	return models.Credit{ID: "cr", UserID: userID, Amount: form.Amount}, nil
}

type fakeEvents struct {
	rows    []models.Event
	created []models.EventForm
}

func (f *fakeEvents) GetAll(context.Context, string) ([]models.Event, error) { return f.rows, nil }

func (f *fakeEvents) Create(_ context.Context, userID string, form models.EventForm) (models.Event, error) {
	f.created = append(f.created, form)
	return models.Event{ID: "ev-new", UserID: userID, Title: form.Title}, nil
}

func (f *fakeEvents) Search(context.Context, string, string, int) ([]models.Event, error) {
	return f.rows, nil
}

type fakeTasks struct {
	rows    []models.Task
	created []models.TaskForm
}

func (f *fakeTasks) GetAll(context.Context, string) ([]models.Task, error) { return f.rows, nil }

func (f *fakeTasks) Create(_ context.Context, userID string, form models.TaskForm) (models.Task, error) {
	f.created = append(f.created, form)
	return models.Task{ID: "t-new", UserID: userID, Title: form.Title}, nil
}

type fakeCalendars struct {
	rows []models.Calendar
}

func (f *fakeCalendars) GetAll(context.Context, string) ([]models.Calendar, error) {
	return f.rows, nil
}

func testService(client completer, chats *fakeChats, msgs *fakeMessages, credits *fakeCredits, tasks *fakeTasks) *Service {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tb := NewToolbox(&fakeEvents{}, tasks, &fakeCalendars{})
	return NewWithClient(client, tb, chats, msgs, &fakeHistory{}, credits, log)
}

func TestChat_InsufficientCredits(t *testing.T) {
	client := &fakeCompleter{}
	svc := testService(client, &fakeChats{}, &fakeMessages{}, &fakeCredits{balance: 0}, &fakeTasks{})

	_, err := svc.Chat(context.Background(), "u1", "", "hello")
	if !errors.Is(err, common.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("completion called despite empty balance")
	}
}

func TestChat_NewThreadPersistsAndBills(t *testing.T) {
	chats := &fakeChats{}
	msgs := &fakeMessages{}
	credits := &fakeCredits{balance: 3}
	client := &fakeCompleter{responses: []*anthropic.Message{textResponse("You have nothing scheduled.")}}
	svc := testService(client, chats, msgs, credits, &fakeTasks{})

	reply, err := svc.Chat(context.Background(), "u1", "", "what is on my agenda today please")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if reply.ChatID != "chat-new" || reply.Text != "You have nothing scheduled." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(chats.created) != 1 || chats.created[0].Title != "what is on my agenda today" {
		t.Fatalf("unexpected chat title: %+v", chats.created)
	}
	if len(msgs.created) != 2 {
		t.Fatalf("expected user and assistant messages, got %+v", msgs.created)
	}
	if msgs.created[0].Role != models.RoleUser || msgs.created[1].Role != models.RoleAssistant {
		t.Fatalf("wrong roles: %+v", msgs.created)
	}
	if len(credits.entries) != 1 || credits.entries[0].Amount != -1 {
		t.Fatalf("expected one -1 credit entry, got %+v", credits.entries)
	}
}

func TestChat_ToolLoopCreatesTask(t *testing.T) {
	tasks := &fakeTasks{}
	client := &fakeCompleter{responses: []*anthropic.Message{
		toolResponse("tu1", "createTask", `{"title":"Buy milk"}`),
		textResponse("Done, I added the task."),
	}}
	svc := testService(client, &fakeChats{}, &fakeMessages{}, &fakeCredits{balance: 1}, tasks)

	reply, err := svc.Chat(context.Background(), "u1", "", "add buy milk to my tasks")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if client.calls != 2 {
		t.Fatalf("expected 2 completion calls, got %d", client.calls)
	}
	if len(tasks.created) != 1 || tasks.created[0].Title != "Buy milk" {
		t.Fatalf("tool did not create the task: %+v", tasks.created)
	}
	if tasks.created[0].Source != models.SourceLocal {
		t.Fatalf("assistant-created task should be local, got %q", tasks.created[0].Source)
	}
	if reply.Text != "Done, I added the task." {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestChat_ForeignChatIsNotFound(t *testing.T) {
	chats := &fakeChats{chats: map[string]models.Chat{
		"c1": {ID: "c1", UserID: "someone-else"},
	}}
	client := &fakeCompleter{responses: []*anthropic.Message{textResponse("hi")}}
	svc := testService(client, chats, &fakeMessages{}, &fakeCredits{balance: 1}, &fakeTasks{})

	_, err := svc.Chat(context.Background(), "u1", "c1", "hello")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign chat, got %v", err)
	}
}

func TestToolbox_UnknownTool(t *testing.T) {
	tb := NewToolbox(&fakeEvents{}, &fakeTasks{}, &fakeCalendars{})
	if _, err := tb.Invoke(context.Background(), "u1", "dropTables", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestChatTitle(t *testing.T) {
	if got := chatTitle("plan my week and find free slots quickly"); got != "plan my week and find free" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := chatTitle("   "); got != "New chat" {
		t.Fatalf("unexpected empty-input title %q", got)
	}
}
