package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEchoResponderFormat(t *testing.T) {
	got, err := EchoResponder{}.Respond(context.Background(), nil, "open door")
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if got != `Processing command: "open door"...` {
		t.Fatalf("unexpected reply: %s", got)
	}
}

func TestEchoResponderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (EchoResponder{Delay: time.Minute}).Respond(ctx, nil, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
