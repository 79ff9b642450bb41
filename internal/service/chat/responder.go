package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
)

// DefaultEchoDelay matches the pause before the placeholder reply appears.
const DefaultEchoDelay = 500 * time.Millisecond

// Responder produces the game's reply to a submitted command. It stands in
// for a game backend round trip; the store appends whatever it returns.
type Responder interface {
	Respond(ctx context.Context, history chat.Log, input string) (string, error)
}

// EchoResponder is the placeholder used while no real game backend exists:
// after a fixed delay it acknowledges the command verbatim.
type EchoResponder struct {
	Delay time.Duration
}

// Respond implements Responder.
func (r EchoResponder) Respond(ctx context.Context, _ chat.Log, input string) (string, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Sprintf("Processing command: \"%s\"...", input), nil
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, history chat.Log, input string) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, history chat.Log, input string) (string, error) {
	return f(ctx, history, input)
}
