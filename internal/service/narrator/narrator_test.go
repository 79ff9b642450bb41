package narrator

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
)

// scriptedModel records the prompt it receives and answers with a fixed line.
type scriptedModel struct {
	reply string
	seen  []*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = input
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) BindTools([]*schema.ToolInfo) error {
	return nil
}

func TestRespondBuildsPromptFromHistory(t *testing.T) {
	fake := &scriptedModel{reply: "  The elevator doors slide open onto Ranger HQ.  "}
	svc, err := NewService(context.Background(), fake, Config{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	history := chat.Log{
		chat.GameEntry("You stand in the hotel lobby."),
		chat.UserEntry("take the elevator"),
	}
	reply, err := svc.Respond(context.Background(), history, "take the elevator")
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if reply != "The elevator doors slide open onto Ranger HQ." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if len(fake.seen) != 3 {
		t.Fatalf("expected system + 1 history + query, got %d messages", len(fake.seen))
	}
	if fake.seen[0].Role != schema.System || fake.seen[0].Content != DefaultSystemPrompt {
		t.Fatalf("unexpected system message %+v", fake.seen[0])
	}
	if fake.seen[1].Role != schema.Assistant {
		t.Fatalf("game entries should map to assistant turns, got %s", fake.seen[1].Role)
	}
	if fake.seen[2].Role != schema.User || fake.seen[2].Content != "take the elevator" {
		t.Fatalf("unexpected query message %+v", fake.seen[2])
	}
}

func TestBuildHistoryMessagesRespectsLimit(t *testing.T) {
	svc := &Service{historyLimit: 2}
	history := chat.Log{
		chat.UserEntry("one"),
		chat.GameEntry("two"),
		chat.UserEntry("three"),
		chat.GameEntry("four"),
	}

	messages := svc.buildHistoryMessages(history, "five")
	if len(messages) != 2 || messages[0].Content != "three" || messages[1].Content != "four" {
		t.Fatalf("unexpected window: %+v", messages)
	}
}

func TestRespondRejectsEmptyReply(t *testing.T) {
	svc, err := NewService(context.Background(), &scriptedModel{reply: "   "}, Config{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if _, err := svc.Respond(context.Background(), nil, "look"); err == nil {
		t.Fatal("expected error for empty reply")
	}
}

func TestNewServiceRequiresModel(t *testing.T) {
	if _, err := NewService(context.Background(), nil, Config{}); err == nil {
		t.Fatal("expected error without model")
	}
}
