package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
)

const (
	// DefaultJoinEvent is the event emitted to join a room
	DefaultJoinEvent = "joinRoom"
	// MessageEvent carries one chat message
	MessageEvent = "message"

	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 5 * time.Second
)

// Handler receives the messages of a subscribed room
type Handler func(models.Message)

// Subscription is a live connection scoped to one room
type Subscription interface {
	// Close disconnects. It does not wait for the read loop to finish.
	Close() error
	// Done is closed once no more messages will be delivered
	Done() <-chan struct{}
	// Err returns why the subscription ended, nil when closed by the client
	Err() error
}

// Factory opens realtime subscriptions. A chat session owns each subscription it opens.
type Factory interface {
	Subscribe(ctx context.Context, roomID string, h Handler) (Subscription, error)
}

// SocketIOFactory subscribes to rooms on a Socket.IO v4 server over websocket
type SocketIOFactory struct {
	endpoint         *url.URL
	tokens           api.TokenSource
	joinEvent        string
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	logger           *zap.SugaredLogger
}

// FactoryOption configures a SocketIOFactory
type FactoryOption func(*SocketIOFactory)

// WithTokens sets the token sent on connect
func WithTokens(ts api.TokenSource) FactoryOption {
	return func(f *SocketIOFactory) {
		f.tokens = ts
	}
}

// WithJoinEvent overrides the event used to join a room
func WithJoinEvent(event string) FactoryOption {
	return func(f *SocketIOFactory) {
		if event != "" {
			f.joinEvent = event
		}
	}
}

// WithDialer replaces the websocket dialer
func WithDialer(d *websocket.Dialer) FactoryOption {
	return func(f *SocketIOFactory) {
		f.dialer = d
	}
}

// WithHandshakeTimeout bounds the connect and join handshake
func WithHandshakeTimeout(d time.Duration) FactoryOption {
	return func(f *SocketIOFactory) {
		if d > 0 {
			f.handshakeTimeout = d
		}
	}
}

// WithFactoryLogger sets the logger
func WithFactoryLogger(l *zap.SugaredLogger) FactoryOption {
	return func(f *SocketIOFactory) {
		f.logger = l
	}
}

// NewSocketIOFactory creates a factory for the server at rawURL, e.g. http://localhost:5001
func NewSocketIOFactory(rawURL string, opts ...FactoryOption) (*SocketIOFactory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse socket url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()

	f := &SocketIOFactory{
		endpoint:         u,
		tokens:           api.StaticToken(""),
		joinEvent:        DefaultJoinEvent,
		dialer:           websocket.DefaultDialer,
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.S()
	}
	return f, nil
}

// Endpoint returns the websocket url dialled by the factory
func (f *SocketIOFactory) Endpoint() string {
	return f.endpoint.String()
}

// Subscribe connects, joins roomID and delivers its message events to h until closed
func (f *SocketIOFactory) Subscribe(ctx context.Context, roomID string, h Handler) (Subscription, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, api.Validationf("room id is required")
	}
	if h == nil {
		return nil, errors.New("realtime: nil handler")
	}

	token := ""
	if f.tokens != nil {
		token = f.tokens.Token()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ctx, cancel := context.WithTimeout(ctx, f.handshakeTimeout)
	defer cancel()

	conn, resp, err := f.dialer.DialContext(ctx, f.endpoint.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("socket dial: %w", api.ErrAuthRequired)
		}
		return nil, fmt.Errorf("%w: socket dial %s: %w", api.ErrNetwork, f.endpoint.Redacted(), err)
	}

	s := &subscription{
		conn:    conn,
		roomID:  roomID,
		handler: h,
		logger:  f.logger.With("room", roomID),
		done:    make(chan struct{}),
	}

	deadline, _ := ctx.Deadline()
	if err := s.handshake(deadline, token, f.joinEvent); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go s.readLoop()
	s.logger.Debugw("subscribed to room", "event", f.joinEvent)
	return s, nil
}

type subscription struct {
	conn     *websocket.Conn
	roomID   string
	handler  Handler
	logger   *zap.SugaredLogger
	liveness time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func (s *subscription) handshake(deadline time.Time, token, joinEvent string) error {
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	p, err := s.read()
	if err != nil {
		return err
	}
	if p.Type != eioOpen {
		return fmt.Errorf("%w: expected open packet, got %q", api.ErrServer, p.Type)
	}
	var open openPayload
	if err := json.Unmarshal(p.Data, &open); err != nil {
		return fmt.Errorf("%w: invalid open packet: %w", api.ErrServer, err)
	}
	if open.PingInterval > 0 {
		s.liveness = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	var auth interface{}
	if token != "" {
		auth = map[string]string{"token": token}
	}
	frame, err := encodeConnect(auth)
	if err != nil {
		return err
	}
	if err := s.write(frame); err != nil {
		return err
	}

	for {
		p, err := s.read()
		if err != nil {
			return err
		}
		if p.Type == eioPing {
			if err := s.write([]byte{eioPong}); err != nil {
				return err
			}
			continue
		}
		if p.Type != eioMessage {
			continue
		}
		switch p.SocketType {
		case sioConnect:
			frame, err := encodeEvent(joinEvent, s.roomID)
			if err != nil {
				return err
			}
			return s.write(frame)
		case sioConnectError:
			var ce connectError
			_ = json.Unmarshal(p.Data, &ce)
			return fmt.Errorf("socket connect rejected: %s: %w", ce.Message, api.ErrAuthRequired)
		}
	}
}

func (s *subscription) read() (packet, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return packet{}, fmt.Errorf("%w: socket read: %w", api.ErrNetwork, err)
	}
	return decodePacket(data)
}

func (s *subscription) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: socket write: %w", api.ErrNetwork, err)
	}
	return nil
}

func (s *subscription) readLoop() {
	defer close(s.done)
	for {
		if s.liveness > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.liveness))
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing.Load() {
				s.fail(fmt.Errorf("%w: socket read: %w", api.ErrNetwork, err))
			}
			return
		}
		p, err := decodePacket(data)
		if err != nil {
			s.logger.Warnw("dropping malformed packet", "error", err)
			continue
		}

		switch p.Type {
		case eioPing:
			if err := s.write([]byte{eioPong}); err != nil && !s.closing.Load() {
				s.fail(err)
				_ = s.conn.Close()
				return
			}
		case eioClose:
			s.fail(fmt.Errorf("%w: server closed the connection", api.ErrNetwork))
			_ = s.conn.Close()
			return
		case eioMessage:
			switch p.SocketType {
			case sioEvent:
				s.dispatch(p.Data)
			case sioDisconnect:
				s.fail(fmt.Errorf("%w: server disconnected the socket", api.ErrNetwork))
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *subscription) dispatch(data []byte) {
	name, args, err := decodeEvent(data)
	if err != nil {
		s.logger.Warnw("dropping malformed event", "error", err)
		return
	}
	if name != MessageEvent || len(args) == 0 {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(args[0], &msg); err != nil {
		s.logger.Warnw("dropping malformed message", "error", err)
		return
	}
	// the server may broadcast to every socket, keep this room only
	if msg.GroupChat != "" && msg.GroupChat != s.roomID {
		return
	}
	s.handler(msg)
}

func (s *subscription) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.logger.Warnw("subscription ended", "error", err)
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		_ = s.write(encodeDisconnect())
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

func (s *subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
