package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
)

const defaultHistoryLimit = 10

// DefaultSystemPrompt frames the model as the game's narrator.
const DefaultSystemPrompt = `You are the narrator of a Power Rangers text adventure set in Seoul.
Describe what the player sees and what happens after each command in two to four sentences.
Stay in the second person, never speak for the player, and keep the scene consistent with earlier turns.
If a command is impossible, say why in the fiction and suggest what the player could try instead.`

// Config controls the narrator chain.
type Config struct {
	SystemPrompt string
	HistoryLimit int
}

// Service answers player commands with an LLM chain. It satisfies the chat
// store's Responder interface.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	historyLimit int
}

// NewService compiles the prompt and model into a chain.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("narrator requires a chat model")
	}

	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile narrator chain: %w", err)
	}

	return &Service{
		chain:        runnable,
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
	}, nil
}

// Respond generates the game's reply to input.
func (s *Service) Respond(ctx context.Context, history chat.Log, input string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  s.systemPrompt,
		"history": s.buildHistoryMessages(history, input),
		"query":   input,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run narrator chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", fmt.Errorf("narrator returned an empty reply")
	}

	log.Debug().Int("length", len(content)).Msg("[narrator] generated reply")
	return content, nil
}

// buildHistoryMessages keeps the most recent turns, dropping the trailing
// user entry that carries the current input.
func (s *Service) buildHistoryMessages(history chat.Log, input string) []*schema.Message {
	if n := len(history); n > 0 && history[n-1] == chat.UserEntry(input) {
		history = history[:n-1]
	}
	if len(history) == 0 {
		return nil
	}

	startIdx := 0
	if len(history) > s.historyLimit {
		startIdx = len(history) - s.historyLimit
	}

	messages := make([]*schema.Message, 0, len(history)-startIdx)
	for _, entry := range history[startIdx:] {
		switch entry.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Text))
		case chat.RoleGame:
			messages = append(messages, schema.AssistantMessage(entry.Text, nil))
		}
	}
	return messages
}
