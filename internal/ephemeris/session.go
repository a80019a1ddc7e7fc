package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrohelm/natalchart/internal/domain"
)

// writeWait is the time allowed to write one message to the service.
const writeWait = 10 * time.Second

// Session is one websocket connection to the computation service. A session
// is exclusively owned by a single chart computation or geocode lookup and
// is closed when that operation finishes; sessions are never pooled.
type Session struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// DialSession opens a websocket connection to the service. The handshake
// must complete within handshakeTimeout or the dial fails with a
// TimeoutError.
func DialSession(ctx context.Context, url string, handshakeTimeout time.Duration) (*Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if dialCtx.Err() != nil && ctx.Err() == nil {
			return nil, &domain.TimeoutError{Stage: "handshake"}
		}
		return nil, fmt.Errorf("ephemeris: dial %s: %w: %w", url, domain.ErrTransport, err)
	}

	return &Session{conn: conn}, nil
}

// Send JSON-encodes the envelope and writes it with a write deadline.
func (s *Session) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ephemeris: marshal envelope: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ephemeris: write: %w: %w", domain.ErrTransport, err)
	}
	return nil
}

// Messages starts a reader goroutine and returns its channels. The message
// channel delivers raw frames; the error channel delivers the terminal read
// error (including normal closure). Both goroutine and channels wind down
// when the session is closed.
func (s *Session) Messages() (<-chan []byte, <-chan error) {
	msgs := make(chan []byte, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		for {
			_, raw, err := s.conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			msgs <- raw
		}
	}()

	return msgs, errs
}

// Close sends a best-effort close frame and tears down the connection. It is
// safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return s.conn.Close()
}
