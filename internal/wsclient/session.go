// Package wsclient implements the WebSocket session state machine (C6): a
// stateful connection to one upstream node, generalized from the teacher's
// server-side Hub (internal/websocket/hub.go) into a client that dials out,
// authenticates, and routes frames until a reconnect-worthy condition
// occurs.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tw-eew/eewgateway/internal/bulletin"
	"github.com/tw-eew/eewgateway/internal/errs"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// Timeouts from spec.md §4.6 / §5.
const (
	authTimeout  = 60 * time.Second
	idleTimeout  = 90 * time.Second
	serviceDelay = 5 * time.Second // info code 503: wait then re-subscribe
)

// Sink receives routed frame payloads. EEW data frames are forwarded to the
// ingest controller (C8); other frame kinds are best-effort observability
// hooks a caller may ignore.
type Sink interface {
	OnBulletin(ctx context.Context, b bulletin.Bulletin)
	OnNTP(ctx context.Context, serverTime time.Time)
}

// subscribeFrame is the client→server "start" message (spec.md §6).
type subscribeFrame struct {
	Type    string         `json:"type"`
	Key     string         `json:"key"`
	Service []string       `json:"service"`
	Config  map[string]any `json:"config,omitempty"`
}

// envelope is the server→client frame shape: a top-level type plus
// type-specific fields. For "data" frames, Data holds the inner payload and
// Time is merged into it before routing (spec.md §6).
type envelope struct {
	Type string          `json:"type"`
	Code int             `json:"code,omitempty"`
	List []string        `json:"list,omitempty"`
	Time int64           `json:"time,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// innerData is the nested payload of a "data" frame.
type innerData struct {
	Type string `json:"type"`
}

// Session is a single connection attempt to one upstream node.
type Session struct {
	key          string
	services     []string
	logger       logging.Logger
	sink         Sink
	dialer       *websocket.Dialer
	onSubscribed func()
}

// New constructs a Session. key is the upstream API key; services is the
// set of subscribable service identifiers (spec.md §6).
func New(key string, services []string, sink Sink, logger logging.Logger) *Session {
	return &Session{
		key:      key,
		services: services,
		logger:   logger,
		sink:     sink,
		dialer:   websocket.DefaultDialer,
	}
}

// OnSubscribed registers a callback fired once the initial handshake
// succeeds (info code 200), before entering the frame read loop. The
// transport supervisor uses this to stop its best-effort HTTP poller
// exactly when the socket becomes the authoritative source again.
func (s *Session) OnSubscribed(f func()) {
	s.onSubscribed = f
}

// Run dials url ("wss://{node}/websocket"), authenticates, and then reads
// frames until a reconnect-worthy condition or ctx cancellation. It returns
// reopen=true when the caller should rotate to a different node before
// redialing, matching the transition table in spec.md §4.6. A nil error
// with ctx.Err() != nil means the caller requested shutdown.
func (s *Session) Run(ctx context.Context, url string) (reopen bool, err error) {
	conn, _, dialErr := s.dialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return false, errs.New(errs.NetworkTransient, "dial failed", dialErr)
	}
	defer conn.Close()

	if err := s.authenticate(ctx, conn); err != nil {
		if errs.Is(err, errs.AuthFailed) {
			return false, err
		}
		var reopenErr *reopenSignal
		if asReopen(err, &reopenErr) {
			return true, reopenErr.cause
		}
		return false, err
	}

	return s.readLoop(ctx, conn)
}

// reopenSignal wraps a cause that additionally demands a fresh socket on
// the node (spec.md: 400/429 → "reconnect, reopen socket").
type reopenSignal struct{ cause error }

func (r *reopenSignal) Error() string { return r.cause.Error() }
func (r *reopenSignal) Unwrap() error { return r.cause }

func asReopen(err error, target **reopenSignal) bool {
	r, ok := err.(*reopenSignal)
	if ok {
		*target = r
	}
	return ok
}

func (s *Session) authenticate(ctx context.Context, conn *websocket.Conn) error {
	frame := subscribeFrame{Type: "start", Key: s.key, Service: s.services}
	if err := conn.WriteJSON(frame); err != nil {
		return errs.New(errs.NetworkTransient, "subscribe write failed", err)
	}

	deadline := time.Now().Add(authTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errs.New(errs.NetworkTransient, "auth timeout", nil)
		}
		conn.SetReadDeadline(deadline)

		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return errs.New(errs.NetworkTransient, "auth read failed", err)
		}
		if env.Type != "info" {
			continue
		}

		switch env.Code {
		case 200:
			if s.onSubscribed != nil {
				s.onSubscribed()
			}
			return nil
		case 400, 429:
			return &reopenSignal{cause: fmt.Errorf("auth rejected: code %d", env.Code)}
		case 401, 403:
			return errs.New(errs.AuthFailed, fmt.Sprintf("auth rejected: code %d", env.Code), nil)
		default:
			s.logger.Warnf("wsclient: unexpected info code %d during auth, continuing to wait", env.Code)
		}
	}
}

// readLoop handles the Subscribed state: routes frames until a
// reconnect-worthy condition.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) (reopen bool, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, nil
		}

		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errs.New(errs.NetworkTransient, "server closed connection", err)
			}
			if isTimeout(err) {
				return false, errs.New(errs.NetworkTransient, "idle receive timeout", err)
			}
			return true, errs.New(errs.NetworkTransient, "read failed", err)
		}

		if msgType == websocket.BinaryMessage {
			continue // reserved, currently ignored (spec.md §4.6)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Errorf("wsclient: protocol violation decoding frame: %v", err)
			continue
		}

		switch env.Type {
		case "data":
			s.routeData(ctx, env)
		case "info":
			if env.Code == 503 {
				select {
				case <-time.After(serviceDelay):
				case <-ctx.Done():
					return false, nil
				}
				if err := s.authenticate(ctx, conn); err != nil {
					return false, err
				}
			}
		case "ntp":
			s.sink.OnNTP(ctx, time.UnixMilli(env.Time))
		case "verify":
			frame := subscribeFrame{Type: "start", Key: s.key, Service: s.services}
			if err := conn.WriteJSON(frame); err != nil {
				return true, errs.New(errs.NetworkTransient, "re-subscribe write failed", err)
			}
		default:
			s.logger.Debugf("wsclient: unhandled frame type %q", env.Type)
		}
	}
}

func (s *Session) routeData(ctx context.Context, env envelope) {
	var inner innerData
	if err := json.Unmarshal(env.Data, &inner); err != nil {
		s.logger.Errorf("wsclient: protocol violation decoding data frame: %v", err)
		return
	}
	if inner.Type != "eew" {
		return
	}

	var b bulletin.Bulletin
	if err := json.Unmarshal(env.Data, &b); err != nil {
		s.logger.Warnf("wsclient: decode error on eew payload: %v", err)
		return
	}
	s.sink.OnBulletin(ctx, b)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
