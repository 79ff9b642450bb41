package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	bgmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/background"
	chatmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrManagerClosed    = errors.New("session manager closed")
)

// Connectivity reports whether a game backend answers.
type Connectivity interface {
	Check(ctx context.Context) bool
}

// Dependencies are shared by every session.
type Dependencies struct {
	Snapshots    storage.Store
	Document     chat.DocumentSource
	Responder    chat.Responder
	Catalog      *bgmodel.Catalog
	Prober       background.Prober
	Connectivity Connectivity
	Chat         chat.Config
}

// Session bundles one tab's chat store and background resolver.
type Session struct {
	chatmodel.Session
	Chat       *chat.Store
	Background *background.Resolver

	ctx     context.Context
	cancel  context.CancelFunc
	started chan struct{}
}

// Wait blocks until the session's startup work (chat load, background probe
// and connectivity check) has finished. It returns chat.ErrClosed when the
// session was disposed before its transcript loaded.
func (s *Session) Wait(ctx context.Context) error {
	if err := s.Chat.Wait(ctx); err != nil {
		return err
	}
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disposes the chat store and the resolver and abandons any startup
// work still running.
func (s *Session) Close() {
	s.cancel()
	s.Chat.Close()
	s.Background.Close()
}

// Manager owns live sessions. Snapshots of different sessions never collide
// because each session's storage is scoped by its id.
type Manager struct {
	deps   Dependencies
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates an empty manager.
func NewManager(deps Dependencies) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session. An empty resumeID mints a new id; otherwise the
// session is rebuilt from its saved snapshot the way a page reload would,
// replacing any live instance with the same id. Startup loading runs in the
// background; callers use Session.Wait to observe it.
func (m *Manager) Create(_ context.Context, resumeID string) (*Session, error) {
	id := uuid.NewString()
	resumed := false
	if resumeID != "" {
		parsed, err := uuid.Parse(resumeID)
		if err != nil {
			return nil, ErrInvalidSessionID
		}
		id = parsed.String()
		resumed = true
	}

	sessCtx, cancel := context.WithCancel(m.ctx)
	sess := &Session{
		Session: chatmodel.Session{
			ID:        id,
			CreatedAt: time.Now().UTC(),
			Resumed:   resumed,
		},
		Chat:       chat.NewStore(m.deps.Chat, storage.NewScoped(m.deps.Snapshots, id), m.deps.Document, m.deps.Responder),
		Background: background.NewResolver(m.deps.Catalog, m.deps.Prober),
		ctx:        sessCtx,
		cancel:     cancel,
		started:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sess.Close()
		return nil, ErrManagerClosed
	}
	previous := m.sessions[id]
	m.sessions[id] = sess
	m.wg.Go(func() { m.start(sess) })
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
		log.Info().Str("session", id).Msg("[session] replaced live session on reload")
	}

	log.Info().Str("session", id).Bool("resumed", resumed).Msg("[session] session created")
	return sess, nil
}

// start runs the mount-time work of a session concurrently.
func (m *Manager) start(sess *Session) {
	defer close(sess.started)

	var wg conc.WaitGroup
	wg.Go(func() {
		source := sess.Chat.Load(sess.ctx)
		log.Debug().Str("session", sess.ID).Str("source", string(source)).Msg("[session] chat loaded")
	})
	wg.Go(func() {
		sess.Background.Init(sess.ctx)
	})
	if m.deps.Connectivity != nil {
		wg.Go(func() {
			sess.Chat.SetConnected(m.deps.Connectivity.Check(sess.ctx))
		})
	}
	wg.Wait()
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End disposes a live session. Its saved snapshot is kept.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	log.Info().Str("session", id).Msg("[session] session ended")
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close disposes every session and waits for startup work to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.cancel()
	for _, sess := range sessions {
		sess.Close()
	}
	m.wg.Wait()
}
