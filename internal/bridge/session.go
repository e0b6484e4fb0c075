package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle of one plugin connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const inboxSize = 32

// Session handles the messages of one registered plugin connection. Frames
// are handled one at a time in arrival order.
type Session struct {
	client      *Client
	service     *Service
	rejectEmpty bool
	state       atomic.Int32
}

// NewSession creates a Session for a registered client in state OPEN.
func NewSession(client *Client, service *Service, rejectEmptyPrompt bool) *Session {
	s := &Session{client: client, service: service, rejectEmpty: rejectEmptyPrompt}
	s.state.Store(int32(StateOpen))
	return s
}

// State returns the current connection state.
func (s *Session) State() State { return State(s.state.Load()) }

// Close moves the session to CLOSED. Later frames are ignored.
func (s *Session) Close() { s.state.Store(int32(StateClosed)) }

// Handle processes one inbound text frame.
func (s *Session) Handle(ctx context.Context, data []byte) {
	if s.State() != StateOpen {
		return
	}
	msg, err := DecodeInbound(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, errUnknownMessage) {
			reason = "unknown_type"
		}
		protocolViolationsTotal.WithLabelValues(reason).Inc()
		log.Printf("bridge: %s: skipping message: %v", s.client.Key(), err)
		return
	}

	switch msg.Type {
	case TypePing:
		s.client.MarkAlive()
		s.reply(PongMessage{Type: TypePong})
	case TypeStatus:
		s.handleStatus(ctx)
	case TypeGenerate:
		s.handleGenerate(ctx, msg)
	}
}

func (s *Session) handleStatus(ctx context.Context) {
	p, err := s.service.Project(ctx, s.client.ProjectID)
	if err != nil {
		s.reply(NewError(ErrorText(err)))
		return
	}
	s.reply(StatusMessage{
		Type:         TypeStatus,
		Connected:    true,
		UserID:       s.client.UserID,
		ProjectID:    s.client.ProjectID,
		ProjectName:  p.Name,
		ProjectType:  p.ProjectType,
		CommandCount: p.CommandCount,
	})
}

func (s *Session) handleGenerate(ctx context.Context, msg Inbound) {
	if strings.TrimSpace(msg.Prompt) == "" {
		protocolViolationsTotal.WithLabelValues("empty_prompt").Inc()
		if s.rejectEmpty {
			s.reply(NewError(ErrorText(ErrEmptyPrompt)))
			return
		}
		log.Printf("bridge: %s: skipping generate with empty prompt", s.client.Key())
		return
	}
	if msg.ProjectID != "" && msg.ProjectID != s.client.ProjectID {
		s.reply(NewError(ErrorText(ErrProjectMismatch)))
		return
	}

	cmd, err := s.service.Generate(ctx, Request{
		UserID:    s.client.UserID,
		ProjectID: s.client.ProjectID,
		Prompt:    msg.Prompt,
		Origin:    OriginPlugin,
	})
	if err != nil {
		log.Printf("bridge: %s: generate: %v", s.client.Key(), err)
		s.reply(NewError(ErrorText(err)))
		return
	}
	s.reply(NewGenerated(cmd.GeneratedCode, cmd.CommandType, cmd.ID))
}

func (s *Session) reply(msg any) {
	if err := s.client.Send(msg); err != nil {
		log.Printf("bridge: %s: reply: %v", s.client.Key(), err)
	}
}

// HandlerOpts holds parameters for creating a Handler.
type HandlerOpts struct {
	Service           *Service
	AllowedOrigins    []string // empty allows any origin
	SendBuffer        int
	RejectEmptyPrompt bool
}

// Handler accepts plugin WebSocket connections.
type Handler struct {
	service     *Service
	registry    *Registry
	upgrader    websocket.Upgrader
	sendBuffer  int
	rejectEmpty bool
}

// NewHandler creates a Handler with the given options.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("bridge: service is required")
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 16
	}
	return &Handler{
		service:  opts.Service,
		registry: opts.Service.Registry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		sendBuffer:  opts.SendBuffer,
		rejectEmpty: opts.RejectEmptyPrompt,
	}, nil
}

// originChecker allows requests without an Origin header (the editor
// plugin sends none) and, when a list is given, browsers on that list.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	q := r.URL.Query()
	userID, projectID := q.Get("userId"), q.Get("projectId")
	if userID == "" || projectID == "" {
		protocolViolationsTotal.WithLabelValues("handshake").Inc()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Missing projectId or userId"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	conn.SetReadLimit(maxMessageSize)
	peer := newWSPeer(conn, h.sendBuffer)
	client, err := h.registry.Register(userID, projectID, peer)
	if err != nil {
		peer.Terminate()
		return
	}
	conn.SetPongHandler(func(string) error {
		client.MarkAlive()
		return nil
	})
	log.Printf("bridge: plugin connected: %s from %s", client.Key(), peer.RemoteAddr())

	h.run(conn, client, peer)

	h.registry.release(client)
	peer.Terminate()
	log.Printf("bridge: plugin disconnected: %s", client.Key())
}

// run reads frames and feeds them to the session in order. The reader never
// blocks on the inbox: frames that arrive while it is full are dropped, so
// control frames keep being read while a generation is in progress.
func (h *Handler) run(conn *websocket.Conn, client *Client, peer *wsPeer) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession(client, h.service, h.rejectEmpty)
	inbox := make(chan []byte, inboxSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for data := range inbox {
			session.Handle(ctx, data)
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, CloseSuperseded) && !peer.Closed() {
				log.Printf("bridge: %s: read: %v", client.Key(), err)
			}
			break
		}
		if mt != websocket.TextMessage {
			protocolViolationsTotal.WithLabelValues("binary").Inc()
			continue
		}
		if peer.Closed() {
			break
		}
		select {
		case inbox <- data:
		default:
			protocolViolationsTotal.WithLabelValues("inbox_full").Inc()
			log.Printf("bridge: %s: inbox full, dropping message", client.Key())
		}
	}

	session.Close()
	cancel()
	close(inbox)
	<-done
}
