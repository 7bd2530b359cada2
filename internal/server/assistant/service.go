// Package assistant runs the conversational layer: a Messages tool loop over
// the data services, persisted as chat history, billed one credit per
// completed exchange.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/models"
)

const (
	model     = anthropic.ModelClaudeSonnet4_0
	maxTokens = 1024

	// maxToolTurns caps how many tool round-trips one exchange may take.
	maxToolTurns = 5
)

const systemPrompt = "You are Tempora, a scheduling assistant. You manage the " +
	"user's calendars, events, tasks and birthdays through the provided tools. " +
	"Use tools to read or change data instead of guessing. Be concise. " +
	"Today's date is %s."

// completer is the slice of the Messages API the service uses; satisfied by
// anthropic.Client.Messages.
type completer interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type chatService interface {
	Get(ctx context.Context, id string) (models.Chat, error)
	Create(ctx context.Context, userID string, form models.ChatForm) (models.Chat, error)
}

type messageService interface {
	Create(ctx context.Context, userID string, form models.MessageForm) (models.Message, error)
}

// messageHistory loads prior turns of a chat in order.
type messageHistory interface {
	SelectByChat(ctx context.Context, chatID string) ([]models.Message, error)
}

// creditLedger reads the balance and appends consumption entries.
type creditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Insert(ctx context.Context, userID string, form models.CreditForm) (models.Credit, error)
}

// Reply is the outcome of one exchange.
type Reply struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

type Service struct {
	client   completer
	tools    *Toolbox
	chats    chatService
	messages messageService
	history  messageHistory
	credits  creditLedger
	log      logging.Logger
}

// New builds a Service backed by the real Anthropic API.
func New(apiKey string, tools *Toolbox, chats chatService, messages messageService, history messageHistory, credits creditLedger, log logging.Logger) *Service {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewWithClient(&client.Messages, tools, chats, messages, history, credits, log)
}

// NewWithClient injects the completion backend, used by tests.
func NewWithClient(client completer, tools *Toolbox, chats chatService, messages messageService, history messageHistory, credits creditLedger, log logging.Logger) *Service {
	return &Service{
		client:   client,
		tools:    tools,
		chats:    chats,
		messages: messages,
		history:  history,
		credits:  credits,
		log:      log.With("component", "assistant"),
	}
}

// Chat runs one user turn. An empty chatID starts a new thread titled from
// the first words of the message. The exchange is billed only after the
// assistant reply is persisted.
func (s *Service) Chat(ctx context.Context, userID, chatID, text string) (Reply, error) {
	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if balance <= 0 {
		return Reply{}, common.ErrInsufficientCredits
	}

	chat, err := s.resolveChat(ctx, userID, chatID, text)
	if err != nil {
		return Reply{}, err
	}

	history, err := s.history.SelectByChat(ctx, chat.ID)
	if err != nil {
		return Reply{}, err
	}

	if _, err := s.messages.Create(ctx, userID, models.MessageForm{
		ChatID: chat.ID, Role: models.RoleUser, Content: text,
	}); err != nil {
		return Reply{}, err
	}

	answer, err := s.complete(ctx, userID, history, text)
	if err != nil {
		return Reply{}, err
	}

	if _, err := s.messages.Create(ctx, userID, models.MessageForm{
		ChatID: chat.ID, Role: models.RoleAssistant, Content: answer,
	}); err != nil {
		return Reply{}, err
	}

	if _, err := s.credits.Insert(ctx, userID, models.CreditForm{Amount: -1, Reason: "assistant exchange"}); err != nil {
		return Reply{}, err
	}

	return Reply{ChatID: chat.ID, Text: answer}, nil
}

func (s *Service) resolveChat(ctx context.Context, userID, chatID, text string) (models.Chat, error) {
	if chatID == "" {
		return s.chats.Create(ctx, userID, models.ChatForm{Title: chatTitle(text)})
	}
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.UserID != userID {
		return models.Chat{}, common.ErrNotFound
	}
	return chat, nil
}

// complete runs the tool loop until the model stops asking for tools.
func (s *Service) complete(ctx context.Context, userID string, history []models.Message, text string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: fmt.Sprintf(systemPrompt, time.Now().UTC().Format("2006-01-02"))},
		},
		Tools:    s.tools.Definitions(),
		Messages: historyParams(history),
	}
	params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	for turn := 0; turn <= maxToolTurns; turn++ {
		msg, err := s.client.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("completion: %w", err)
		}

		var answer []string
		var results []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				answer = append(answer, block.Text)
			case "tool_use":
				input, err := json.Marshal(block.Input)
				if err != nil {
					return "", fmt.Errorf("tool input for %s: %w", block.Name, err)
				}
				out, err := s.tools.Invoke(ctx, userID, block.Name, input)
				if err != nil {
					s.log.Warn(ctx, "tool call failed", "tool", block.Name, "error", err)
					results = append(results, anthropic.NewToolResultBlock(block.ID, err.Error(), true))
					continue
				}
				results = append(results, anthropic.NewToolResultBlock(block.ID, out, false))
			}
		}

		if msg.StopReason != anthropic.StopReasonToolUse {
			return strings.Join(answer, "\n"), nil
		}

		params.Messages = append(params.Messages, msg.ToParam(), anthropic.NewUserMessage(results...))
	}

	return "", fmt.Errorf("tool loop did not settle after %d turns", maxToolTurns)
}

func historyParams(history []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

// chatTitle derives a thread title from the opening message.
func chatTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = "New chat"
	}
	if len(title) > 200 {
		title = title[:200]
	}
	return title
}
