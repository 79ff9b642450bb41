package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	chatmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
	chat "github.com/zhouzirui/adventure-chat/backend/internal/service/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
)

const twoEntryDocument = `{"chat_history":[{"game":"Zordon: Rangers, report to the Command Center."},{"user":"on my way"}]}`

func documentFS(body string) chat.FSDocumentSource {
	return chat.FSDocumentSource{
		FS:   fstest.MapFS{"chatData.json": &fstest.MapFile{Data: []byte(body)}},
		Name: "chatData.json",
	}
}

func twoEntries() chatmodel.Log {
	return chatmodel.Log{
		chatmodel.GameEntry("Zordon: Rangers, report to the Command Center."),
		chatmodel.UserEntry("on my way"),
	}
}

func newStore(t *testing.T, snapshots storage.Store, document chat.DocumentSource, responder chat.Responder) *chat.Store {
	t.Helper()
	store := chat.NewStore(chat.Config{}, snapshots, document, responder)
	t.Cleanup(store.Close)
	return store
}

func TestLoadFromDocumentWhenStorageEmpty(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(twoEntryDocument), nil)

	if source := store.Load(context.Background()); source != chat.SourceDocument {
		t.Fatalf("expected document source, got %q", source)
	}
	if got := store.Entries(); !reflect.DeepEqual(got, twoEntries()) {
		t.Fatalf("unexpected entries: %#v", got)
	}
}

func TestLoadPrefersSnapshot(t *testing.T) {
	snapshots := storage.NewMemory(0)
	if err := snapshots.Set(context.Background(), chat.DefaultSnapshotKey, []byte(`[{"user":"look"}]`)); err != nil {
		t.Fatalf("seed snapshot err: %v", err)
	}
	store := newStore(t, snapshots, documentFS(twoEntryDocument), nil)

	if source := store.Load(context.Background()); source != chat.SourceSnapshot {
		t.Fatalf("expected snapshot source, got %q", source)
	}
	if got := store.Entries(); !reflect.DeepEqual(got, chatmodel.Log{chatmodel.UserEntry("look")}) {
		t.Fatalf("unexpected entries: %#v", got)
	}
}

func TestCorruptSnapshotMatchesEmptyStorage(t *testing.T) {
	ctx := context.Background()

	clean := newStore(t, storage.NewMemory(0), documentFS(twoEntryDocument), nil)
	clean.Load(ctx)

	for _, corrupt := range []string{`{not json`, `{"user":"hi"}`, `[{"user":"a","game":"b"}]`, `[42]`} {
		snapshots := storage.NewMemory(0)
		if err := snapshots.Set(ctx, chat.DefaultSnapshotKey, []byte(corrupt)); err != nil {
			t.Fatalf("seed snapshot err: %v", err)
		}

		store := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
		if source := store.Load(ctx); source != chat.SourceDocument {
			t.Fatalf("%s: expected fall through to document, got %q", corrupt, source)
		}
		if !reflect.DeepEqual(store.Entries(), clean.Entries()) {
			t.Fatalf("%s: corrupt snapshot recovered %#v, empty storage gave %#v", corrupt, store.Entries(), clean.Entries())
		}
	}
}

func TestLoadFallsBackToWelcomeWhenDocumentFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	document := chat.HTTPDocumentSource{Client: srv.Client(), URL: srv.URL + "/chatData.json"}
	store := newStore(t, storage.NewMemory(0), document, nil)

	if source := store.Load(context.Background()); source != chat.SourceDefault {
		t.Fatalf("expected default source, got %q", source)
	}
	if got := store.Entries(); !reflect.DeepEqual(got, chatmodel.WelcomeLog()) {
		t.Fatalf("expected welcome log, got %#v", got)
	}
}

func TestLoadMalformedDocumentUsesWelcome(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(`{"chat_history": "nope"}`), nil)

	if source := store.Load(context.Background()); source != chat.SourceDefault {
		t.Fatalf("expected default source, got %q", source)
	}
}

func TestLoadDocumentWithoutHistoryIsEmpty(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(`{"title":"Rangers"}`), nil)

	store.Load(context.Background())
	got := store.Entries()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil log, got %#v", got)
	}
}

func TestLoadWithEmptyTerminalFallback(t *testing.T) {
	store := chat.NewStore(chat.Config{DefaultLog: chatmodel.Log{}}, storage.NewMemory(0), nil, nil)
	defer store.Close()

	store.Load(context.Background())
	if got := store.Entries(); len(got) != 0 {
		t.Fatalf("expected empty log, got %#v", got)
	}
}

func TestLoadFromHTTPDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoEntryDocument))
	}))
	defer srv.Close()

	store := newStore(t, storage.NewMemory(0), chat.HTTPDocumentSource{URL: srv.URL}, nil)
	store.Load(context.Background())

	if got := store.Entries(); !reflect.DeepEqual(got, twoEntries()) {
		t.Fatalf("unexpected entries: %#v", got)
	}
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(twoEntryDocument), nil)
	store.Load(context.Background())
	before := store.Entries()

	for _, input := range []string{"", "   ", "\t\n"} {
		if store.Submit(input) {
			t.Fatalf("expected %q to be ignored", input)
		}
	}
	if got := store.Entries(); !reflect.DeepEqual(got, before) {
		t.Fatalf("blank submit changed log: %#v", got)
	}
}

func TestSubmitTrimsText(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(twoEntryDocument), nil)
	store.Load(context.Background())

	if !store.Submit("  hello  ") {
		t.Fatal("expected submit to append")
	}
	got := store.Entries()
	if last := got[len(got)-1]; last != chatmodel.UserEntry("hello") {
		t.Fatalf("unexpected last entry: %#v", last)
	}
}

func TestAppendGame(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(`{"chat_history":[]}`), nil)
	store.Load(context.Background())

	store.AppendGame(chat.NextCommand)
	if got := store.Entries(); !reflect.DeepEqual(got, chatmodel.Log{chatmodel.GameEntry("next")}) {
		t.Fatalf("unexpected entries: %#v", got)
	}
}

func TestSaveThenReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemory(0)

	store := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
	store.Load(ctx)
	store.Submit("go north")
	store.AppendGame("You reach the Youth Center.")
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	reloaded := newStore(t, snapshots, documentFS(`{"chat_history":[]}`), nil)
	if source := reloaded.Load(ctx); source != chat.SourceSnapshot {
		t.Fatalf("expected snapshot source, got %q", source)
	}
	if !reflect.DeepEqual(reloaded.Entries(), store.Entries()) {
		t.Fatalf("reload mismatch: got %#v want %#v", reloaded.Entries(), store.Entries())
	}
}

func TestSaveFailureReportsQuota(t *testing.T) {
	store := newStore(t, storage.NewMemory(4), documentFS(twoEntryDocument), nil)
	store.Load(context.Background())

	err := store.Save(context.Background())
	if !errors.Is(err, chat.ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Fatalf("expected quota cause to be preserved, got %v", err)
	}
}

func TestResetClearsPersistedSnapshot(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemory(0)

	store := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
	store.Load(ctx)
	store.Submit("secret move")
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	source, err := store.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset err: %v", err)
	}
	if source != chat.SourceDocument {
		t.Fatalf("expected document source after reset, got %q", source)
	}
	if !reflect.DeepEqual(store.Entries(), twoEntries()) {
		t.Fatalf("unexpected entries after reset: %#v", store.Entries())
	}

	if _, err := snapshots.Get(ctx, chat.DefaultSnapshotKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected snapshot key to be cleared, got %v", err)
	}

	fresh := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
	if source := fresh.Load(ctx); source == chat.SourceSnapshot {
		t.Fatal("fresh load must not recover the pre-reset snapshot")
	}
}

func TestConnectedSubmitAppendsEchoReply(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(`{"chat_history":[]}`), chat.EchoResponder{Delay: 10 * time.Millisecond})
	store.Load(context.Background())
	store.SetConnected(true)

	updates, cancel := store.Subscribe()
	defer cancel()

	store.Submit("go north")

	want := chatmodel.Log{
		chatmodel.UserEntry("go north"),
		chatmodel.GameEntry(`Processing command: "go north"...`),
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-updates:
			if reflect.DeepEqual(got, want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for echo reply, have %#v", store.Entries())
		}
	}
}

func TestDisconnectedSubmitHasNoReply(t *testing.T) {
	called := make(chan struct{}, 1)
	responder := chat.ResponderFunc(func(context.Context, chatmodel.Log, string) (string, error) {
		called <- struct{}{}
		return "reply", nil
	})
	store := newStore(t, storage.NewMemory(0), documentFS(`{"chat_history":[]}`), responder)
	store.Load(context.Background())

	store.Submit("look")
	store.Close()

	select {
	case <-called:
		t.Fatal("responder must not run while disconnected")
	default:
	}
	if got := store.Entries(); len(got) != 1 {
		t.Fatalf("expected only the user entry, got %#v", got)
	}
}

func TestReplyAfterResetIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	responder := chat.ResponderFunc(func(ctx context.Context, _ chatmodel.Log, input string) (string, error) {
		close(started)
		<-release
		return "late: " + input, nil
	})

	ctx := context.Background()
	store := chat.NewStore(chat.Config{}, storage.NewMemory(0), documentFS(twoEntryDocument), responder)
	store.Load(ctx)
	store.SetConnected(true)
	store.Submit("go north")
	<-started

	if _, err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset err: %v", err)
	}
	close(release)
	store.Close()

	if got := store.Entries(); !reflect.DeepEqual(got, twoEntries()) {
		t.Fatalf("stale reply leaked into reset log: %#v", got)
	}
}

func TestCloseCancelsPendingReply(t *testing.T) {
	store := chat.NewStore(chat.Config{}, storage.NewMemory(0), documentFS(`{"chat_history":[]}`), chat.EchoResponder{Delay: time.Hour})
	store.Load(context.Background())
	store.SetConnected(true)
	store.Submit("wait")

	done := make(chan struct{})
	go func() {
		store.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the pending reply")
	}
	if store.Submit("after close") {
		t.Fatal("closed store must reject submissions")
	}
	if err := store.Save(context.Background()); !errors.Is(err, chat.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWaitBlocksUntilLoaded(t *testing.T) {
	store := newStore(t, storage.NewMemory(0), documentFS(twoEntryDocument), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := store.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline before load, got %v", err)
	}

	go store.Load(context.Background())
	if err := store.Wait(context.Background()); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	if !store.Loaded() {
		t.Fatal("expected store to be loaded")
	}
}

func TestWaitReturnsWhenClosedBeforeLoad(t *testing.T) {
	store := chat.NewStore(chat.Config{}, storage.NewMemory(0), documentFS(twoEntryDocument), nil)
	store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.Wait(ctx); !errors.Is(err, chat.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if store.Load(context.Background()) != chat.SourceNone {
		t.Fatal("Load after Close should not populate the store")
	}
}

func TestWaitAfterLoadAndCloseSucceeds(t *testing.T) {
	store := chat.NewStore(chat.Config{}, storage.NewMemory(0), documentFS(twoEntryDocument), nil)
	store.Load(context.Background())
	store.Close()

	if err := store.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after a completed load should succeed, got %v", err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemory(0)

	store := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
	store.Load(ctx)
	if got := store.Entries(); !reflect.DeepEqual(got, twoEntries()) {
		t.Fatalf("step 1: unexpected entries %#v", got)
	}

	store.Submit("go north")
	want := append(twoEntries(), chatmodel.UserEntry("go north"))
	if got := store.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("step 2: unexpected entries %#v", got)
	}

	if err := store.Save(ctx); err != nil {
		t.Fatalf("step 3: Save err: %v", err)
	}
	raw, err := snapshots.Get(ctx, chat.DefaultSnapshotKey)
	if err != nil {
		t.Fatalf("step 3: snapshot missing: %v", err)
	}
	saved, err := chatmodel.DecodeLog(raw)
	if err != nil || len(saved) != 3 {
		t.Fatalf("step 3: expected 3 saved entries, got %d (%v)", len(saved), err)
	}

	reloaded := newStore(t, snapshots, documentFS(twoEntryDocument), nil)
	reloaded.Load(ctx)
	if got := reloaded.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("step 4: unexpected entries %#v", got)
	}
}
