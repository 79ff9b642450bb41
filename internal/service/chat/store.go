package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
)

// DefaultSnapshotKey is the storage slot chat snapshots are written to.
const DefaultSnapshotKey = "savedChatHistoryApp"

// NextCommand is the text appended by the manual advance control.
const NextCommand = "next"

var (
	ErrClosed      = errors.New("chat store closed")
	ErrSaveFailed  = errors.New("failed to save chat history")
	ErrResetFailed = errors.New("failed to clear saved chat history")
)

// Source records where the current transcript came from.
type Source string

const (
	SourceNone     Source = ""
	SourceSnapshot Source = "snapshot"
	SourceDocument Source = "document"
	SourceDefault  Source = "default"
)

// Config is the immutable configuration of a Store.
type Config struct {
	// SnapshotKey defaults to DefaultSnapshotKey.
	SnapshotKey string
	// DefaultLog is the terminal fallback when neither a snapshot nor the
	// fallback document is available. Nil selects chat.WelcomeLog; pass an
	// empty non-nil log to start blank instead.
	DefaultLog chat.Log
}

// Store owns one session's transcript and its persistence lifecycle.
//
// Blocking I/O runs outside the lock; asynchronous completions re-check the
// epoch and closed flag before mutating, so results that arrive after a reset
// or Close are discarded.
type Store struct {
	cfg       Config
	snapshots storage.Store
	document  DocumentSource
	responder Responder

	ctx     context.Context
	cancel  context.CancelFunc
	ready   chan struct{}
	pending sync.WaitGroup

	mu        sync.Mutex
	entries   chat.Log
	source    Source
	loaded    bool
	connected bool
	epoch     uint64
	closed    bool
	subs      map[uint64]chan chat.Log
	nextSub   uint64
}

// NewStore wires a store. document and responder may be nil.
func NewStore(cfg Config, snapshots storage.Store, document DocumentSource, responder Responder) *Store {
	if cfg.SnapshotKey == "" {
		cfg.SnapshotKey = DefaultSnapshotKey
	}
	if cfg.DefaultLog == nil {
		cfg.DefaultLog = chat.WelcomeLog()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		cfg:       cfg,
		snapshots: snapshots,
		document:  document,
		responder: responder,
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		entries:   chat.Log{},
		subs:      make(map[uint64]chan chat.Log),
	}
}

// Load runs the startup chain: snapshot, then fallback document, then the
// terminal default. It never fails; the returned Source tells which tier won.
// Calling Load again re-runs the whole chain.
func (s *Store) Load(ctx context.Context) Source {
	history, source := s.restore(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SourceNone
	}
	s.entries = history
	s.source = source
	s.epoch++
	if !s.loaded {
		s.loaded = true
		close(s.ready)
	}
	s.broadcastLocked()
	s.mu.Unlock()

	return source
}

// Wait blocks until the first Load completes. It returns ErrClosed when the
// store is closed before that happens.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	default:
	}

	select {
	case <-s.ready:
		return nil
	case <-s.ctx.Done():
		if s.Loaded() {
			return nil
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether the first Load has completed.
func (s *Store) Loaded() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Entries returns a copy of the transcript.
func (s *Store) Entries() chat.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Clone()
}

// Source reports which tier populated the transcript last.
func (s *Store) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Connected reports the game-backend flag.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetConnected toggles whether submissions trigger a reply.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// Submit appends a user entry with the trimmed text. Blank input is ignored
// and reported as false. When connected, the responder runs in the
// background and its reply is appended as a game entry.
func (s *Store) Submit(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.entries = append(s.entries, chat.UserEntry(trimmed))
	s.broadcastLocked()

	reply := s.connected && s.responder != nil
	history := s.entries.Clone()
	epoch := s.epoch
	if reply {
		s.pending.Add(1)
	}
	s.mu.Unlock()

	if reply {
		go s.respond(epoch, history, trimmed)
	}
	return true
}

// AppendGame appends a game entry unconditionally.
func (s *Store) AppendGame(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries = append(s.entries, chat.GameEntry(text))
	s.broadcastLocked()
}

// Save writes the transcript under the snapshot key. Failures wrap
// ErrSaveFailed together with the storage error.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	data, err := s.entries.Encode()
	count := len(s.entries)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := s.snapshots.Set(ctx, s.cfg.SnapshotKey, data); err != nil {
		log.Error().Err(err).Str("key", s.cfg.SnapshotKey).Msg("[chat] error saving chat snapshot")
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	log.Info().Int("entries", count).Msg("[chat] chat history saved")
	return nil
}

// Reset deletes the snapshot and repopulates the transcript from the
// fallback document or the terminal default. Replies still in flight are
// dropped. The transcript is repopulated even if the delete fails; the
// returned error then wraps ErrResetFailed.
func (s *Store) Reset(ctx context.Context) (Source, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SourceNone, ErrClosed
	}
	s.epoch++
	s.mu.Unlock()

	var resetErr error
	if err := s.snapshots.Delete(ctx, s.cfg.SnapshotKey); err != nil {
		log.Error().Err(err).Str("key", s.cfg.SnapshotKey).Msg("[chat] error deleting chat snapshot")
		resetErr = fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	history, source := s.fetchDefault(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SourceNone, ErrClosed
	}
	s.entries = history
	s.source = source
	s.epoch++
	s.broadcastLocked()

	log.Info().Str("source", string(source)).Msg("[chat] chat reset to default")
	return source, resetErr
}

// Subscribe returns a channel that receives the latest transcript after every
// change. Slow readers only see the newest state. The returned func
// unsubscribes.
func (s *Store) Subscribe() (<-chan chat.Log, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan chat.Log, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close disposes the store: pending replies are cancelled and discarded and
// subscriber channels are closed. Close waits for in-flight replies.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.pending.Wait()
}

func (s *Store) restore(ctx context.Context) (chat.Log, Source) {
	raw, err := s.snapshots.Get(ctx, s.cfg.SnapshotKey)
	switch {
	case err == nil:
		history, decodeErr := chat.DecodeLog(raw)
		if decodeErr == nil {
			log.Info().Int("entries", len(history)).Msg("[chat] loaded chat from snapshot")
			return history, SourceSnapshot
		}
		log.Warn().Err(decodeErr).Msg("[chat] error parsing chat snapshot, falling back to default document")
	case errors.Is(err, storage.ErrNotFound):
	default:
		log.Error().Err(err).Msg("[chat] error reading chat snapshot, falling back to default document")
	}

	return s.fetchDefault(ctx)
}

func (s *Store) fetchDefault(ctx context.Context) (chat.Log, Source) {
	if s.document == nil {
		return s.cfg.DefaultLog.Clone(), SourceDefault
	}

	history, err := s.document.Fetch(ctx)
	switch {
	case err == nil:
		log.Info().Int("entries", len(history)).Msg("[chat] loaded initial chat from default document")
		return history, SourceDocument
	case errors.Is(err, chat.ErrMissingHistory):
		log.Error().Err(err).Msg("[chat] default document has no chat history")
		return chat.Log{}, SourceDocument
	default:
		log.Error().Err(err).Msg("[chat] failed to fetch chat data, using built-in welcome")
		return s.cfg.DefaultLog.Clone(), SourceDefault
	}
}

func (s *Store) respond(epoch uint64, history chat.Log, input string) {
	defer s.pending.Done()

	text, err := s.responder.Respond(s.ctx, history, input)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Warn().Err(err).Msg("[chat] error communicating with game backend")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		log.Debug().Msg("[chat] discarding stale game reply")
		return
	}
	s.entries = append(s.entries, chat.GameEntry(text))
	s.broadcastLocked()
}

// broadcastLocked pushes the transcript to every subscriber without blocking.
func (s *Store) broadcastLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.entries.Clone()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
