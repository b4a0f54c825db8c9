package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/services"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/stream"
)

const (
	// DefaultSessionID is the session every store starts with.
	DefaultSessionID = "default"
	titleRunes       = 24
	defaultMode      = "chat"
	defaultIntent    = "auto"
)

// Intents lists the intents the backend routes on.
var Intents = []string{"auto", "chat", "profile", "search", "report", "recommendation"}

// Backend is the part of the API the chat store calls.
type Backend interface {
	StreamChat(ctx context.Context, req models.ChatRequest, fn func(stream.Event)) error
	SendMessage(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error)
	ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	ChatSessions(ctx context.Context) ([]models.ChatSessionInfo, error)
	EditMessage(ctx context.Context, req services.EditRequest) ([]models.ChatMessage, error)
	DeleteMessage(ctx context.Context, sessionID string, index int) ([]models.ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Saver persists transcripts locally.
type Saver interface {
	Save(s *models.ChatSession) error
	Delete(id string) error
}

// Options configures a [Store].
type Options struct {
	Mode    string
	Intent  string
	UILang  string
	Context map[string]any

	Clock  shared.Clock
	Logger *log.Logger
	Saver  Saver
}

// Store holds the chat sessions of one user and serializes sends per session.
type Store struct {
	backend Backend
	opts    Options
	logger  *log.Logger

	mu       sync.Mutex
	sessions []*models.ChatSession
	current  string
	sending  map[string]bool
	stats    map[string]json.RawMessage
}

// NewStore creates a store holding only the default session.
func NewStore(backend Backend, opts Options) *Store {
	if opts.Mode == "" {
		opts.Mode = defaultMode
	}
	if opts.Intent == "" {
		opts.Intent = defaultIntent
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Store{
		backend: backend,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "chat"),
		sending: make(map[string]bool),
		stats:   make(map[string]json.RawMessage),
	}
	s.ensureLocked()
	return s
}

func (s *Store) newSessionLocked(id string) *models.ChatSession {
	sess := models.NewChatSession(id)
	now := s.opts.Clock.Now().UTC()
	sess.Created, sess.Updated = now, now
	return sess
}

// ensureLocked keeps at least one session and a valid current id.
func (s *Store) ensureLocked() {
	if len(s.sessions) == 0 {
		s.sessions = []*models.ChatSession{s.newSessionLocked(DefaultSessionID)}
		s.current = DefaultSessionID
	}
	if s.findLocked(s.current) == nil {
		s.current = s.sessions[0].SessionID
	}
}

func (s *Store) findLocked(id string) *models.ChatSession {
	for _, sess := range s.sessions {
		if sess.SessionID == id {
			return sess
		}
	}
	return nil
}

func cloneSession(sess *models.ChatSession) *models.ChatSession {
	c := *sess
	c.Messages = slices.Clone(sess.Messages)
	return &c
}

// Restore replaces the local sessions, for instance with those loaded from the cache.
func (s *Store) Restore(sessions []*models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = s.sessions[:0]
	for _, sess := range sessions {
		if sess != nil && sess.SessionID != "" {
			s.sessions = append(s.sessions, cloneSession(sess))
		}
	}
	s.ensureLocked()
}

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions() []*models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = cloneSession(sess)
	}
	return out
}

// Session returns a copy of the session with id.
func (s *Store) Session(id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return cloneSession(sess), nil
}

// Current returns the id of the selected session.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select makes id the current session.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) == nil {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	s.current = id
	return nil
}

// NewSession starts an empty session, selects it and returns its id.
func (s *Store) NewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := shared.GenerateID()
	s.sessions = slices.Insert(s.sessions, 0, s.newSessionLocked(id))
	s.current = id
	return id
}

// Open selects id, creating an empty local session when it is not known yet.
func (s *Store) Open(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) == nil {
		s.sessions = slices.Insert(s.sessions, 0, s.newSessionLocked(id))
	}
	s.current = id
}

// Sending reports whether a reply is being generated for id.
func (s *Store) Sending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending[id]
}

// LastStats returns the generation stats of the latest reply in id.
func (s *Store) LastStats(id string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[id]
}

// begin claims the sending flag for id, creating the session if needed.
func (s *Store) begin(id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending[id] {
		return nil, shared.ErrBusy
	}
	sess := s.findLocked(id)
	if sess == nil {
		sess = s.newSessionLocked(id)
		s.sessions = slices.Insert(s.sessions, 0, sess)
	}
	s.sending[id] = true
	delete(s.stats, id)
	return sess, nil
}

func (s *Store) end(id string) {
	s.mu.Lock()
	delete(s.sending, id)
	s.mu.Unlock()
}

func (s *Store) request(id, text string) models.ChatRequest {
	return models.ChatRequest{
		SessionID: id,
		Text:      text,
		Mode:      s.opts.Mode,
		Intent:    s.opts.Intent,
		UILang:    s.opts.UILang,
		Context:   s.opts.Context,
	}
}

func (s *Store) stamp() string {
	return s.opts.Clock.Now().UTC().Format(time.RFC3339)
}

// titleLocked names an untitled session after its first message.
func titleLocked(sess *models.ChatSession, text string) {
	if sess.Title == models.DefaultSessionTitle {
		sess.Title = shared.Truncate(text, titleRunes)
	}
}

// Send streams a reply to text in session id.
//
// A user message and an empty assistant message are appended before the
// request goes out; deltas grow the assistant message as they arrive. The
// done event's history then replaces the transcript. An error event from the
// server is returned as an error. on, when set, sees every event after the
// session has been updated.
//
// Blank text is ignored. A send while another is in flight for the same
// session returns [shared.ErrBusy] without a request.
func (s *Store) Send(ctx context.Context, id, text string, on func(stream.Event)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sess, err := s.begin(id)
	if err != nil {
		return err
	}
	defer s.end(id)

	s.mu.Lock()
	now := s.stamp()
	sess.Messages = append(sess.Messages,
		models.ChatMessage{Role: "user", Text: text, Time: now},
		models.ChatMessage{Role: "assistant", Time: now},
	)
	s.mu.Unlock()

	var serverErr string
	err = s.backend.StreamChat(ctx, s.request(id, text), func(ev stream.Event) {
		s.mu.Lock()
		switch ev.Kind {
		case stream.EventDelta:
			if n := len(sess.Messages); n > 0 && sess.Messages[n-1].Role == "assistant" {
				sess.Messages[n-1].Text += ev.Delta
			}
		case stream.EventDone:
			if len(ev.History) > 0 {
				sess.Messages = slices.Clone(ev.History)
			}
			s.stats[id] = ev.FinalStats()
		case stream.EventError:
			serverErr = ev.Detail
			if len(ev.History) > 0 {
				sess.Messages = slices.Clone(ev.History)
			}
		}
		s.mu.Unlock()

		if on != nil {
			on(ev)
		}
	})

	s.mu.Lock()
	titleLocked(sess, text)
	sess.Updated = s.opts.Clock.Now().UTC()
	s.mu.Unlock()
	s.persist(id)

	if err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	if serverErr != "" {
		return fmt.Errorf("%w: %s", shared.ErrStreamFailed, serverErr)
	}
	return nil
}

// SendOnce sends text without streaming and returns the assistant reply.
func (s *Store) SendOnce(ctx context.Context, id, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text", shared.ErrMissingArgument)
	}

	sess, err := s.begin(id)
	if err != nil {
		return nil, err
	}
	defer s.end(id)

	reply, err := s.backend.SendMessage(ctx, s.request(id, text))
	if err != nil {
		return nil, fmt.Errorf("send chat message: %w", err)
	}

	s.mu.Lock()
	if len(reply.History) > 0 {
		sess.Messages = slices.Clone(reply.History)
	}
	s.stats[id] = reply.Message.Stats
	titleLocked(sess, text)
	sess.Updated = s.opts.Clock.Now().UTC()
	s.mu.Unlock()
	s.persist(id)

	msg := reply.Message
	return &msg, nil
}

// replace swaps the transcript of id for history.
func (s *Store) replace(id string, history []models.ChatMessage) {
	s.mu.Lock()
	sess := s.findLocked(id)
	if sess == nil {
		sess = s.newSessionLocked(id)
		s.sessions = slices.Insert(s.sessions, 0, sess)
	}
	sess.Messages = slices.Clone(history)
	sess.Updated = s.opts.Clock.Now().UTC()
	s.mu.Unlock()
	s.persist(id)
}

// LoadHistory fetches the server transcript of id into the store.
func (s *Store) LoadHistory(ctx context.Context, id string) error {
	history, err := s.backend.ChatHistory(ctx, id)
	if err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}
	s.replace(id, history)
	return nil
}

// SyncSessions adds the server's sessions that are missing locally and
// adopts server titles for sessions still named "New Chat".
func (s *Store) SyncSessions(ctx context.Context) ([]models.ChatSessionInfo, error) {
	infos, err := s.backend.ChatSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}

	s.mu.Lock()
	for _, info := range infos {
		if info.SessionID == "" {
			continue
		}
		sess := s.findLocked(info.SessionID)
		if sess == nil {
			sess = s.newSessionLocked(info.SessionID)
			s.sessions = append(s.sessions, sess)
		}
		if info.Title != "" && sess.Title == models.DefaultSessionTitle {
			sess.Title = info.Title
		}
	}
	s.mu.Unlock()
	return infos, nil
}

// Edit rewrites the message at index, asking the server to regenerate the
// reply after it when regenerate is set.
func (s *Store) Edit(ctx context.Context, id string, index int, text string, regenerate bool) error {
	if s.Sending(id) {
		return shared.ErrBusy
	}
	history, err := s.backend.EditMessage(ctx, services.EditRequest{
		SessionID:  id,
		Index:      index,
		Text:       strings.TrimSpace(text),
		Regenerate: regenerate,
	})
	if err != nil {
		return fmt.Errorf("edit message %d: %w", index, err)
	}
	s.replace(id, history)
	return nil
}

// DeleteMessage removes the message at index.
func (s *Store) DeleteMessage(ctx context.Context, id string, index int) error {
	if s.Sending(id) {
		return shared.ErrBusy
	}
	history, err := s.backend.DeleteMessage(ctx, id, index)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", index, err)
	}
	s.replace(id, history)
	return nil
}

// Regenerate drops the user message that produced the reply at index (and
// everything after it) and sends that text again.
func (s *Store) Regenerate(ctx context.Context, id string, index int, on func(stream.Event)) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	msgs := sess.Messages
	if index < 0 || index >= len(msgs) {
		return fmt.Errorf("%w: index %d", shared.ErrInvalidArgument, index)
	}

	userIdx := index
	if msgs[index].Role == "assistant" {
		for i := index - 1; i >= 0; i-- {
			if msgs[i].Role == "user" {
				userIdx = i
				break
			}
		}
	}
	text := strings.TrimSpace(msgs[userIdx].Text)
	if text == "" {
		return nil
	}

	current := len(msgs)
	for current > userIdx {
		history, err := s.backend.DeleteMessage(ctx, id, userIdx)
		if err != nil {
			return fmt.Errorf("regenerate: %w", err)
		}
		s.replace(id, history)
		if len(history) >= current {
			return fmt.Errorf("regenerate: message %d was not removed", userIdx)
		}
		current = len(history)
	}
	return s.Send(ctx, id, text, on)
}

// DeleteSession removes id on the server and locally. Deleting the last
// session leaves a fresh default one.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if s.Sending(id) {
		return shared.ErrBusy
	}
	if err := s.backend.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	s.mu.Lock()
	s.sessions = slices.DeleteFunc(s.sessions, func(sess *models.ChatSession) bool { return sess.SessionID == id })
	delete(s.stats, id)
	s.ensureLocked()
	s.mu.Unlock()

	if s.opts.Saver != nil {
		if err := s.opts.Saver.Delete(id); err != nil {
			s.logger.Warn("failed to drop cached session", "session", id, "error", err)
		}
	}
	return nil
}

func (s *Store) persist(id string) {
	if s.opts.Saver == nil {
		return
	}
	sess, err := s.Session(id)
	if err != nil {
		return
	}
	if err := s.opts.Saver.Save(sess); err != nil {
		s.logger.Warn("failed to cache session", "session", id, "error", err)
	}
}
