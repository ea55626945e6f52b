package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

var (
	// ErrClosed is returned by Send after the connection has ended.
	ErrClosed = errors.New("websocket: connection closed")

	errPeerClosed = errors.New("websocket: peer sent close frame")
)

type ClientConfig struct {
	URL         string
	DialTimeout time.Duration
	Headers     http.Header
	OnMessage   func(data []byte) error
	Logger      *slog.Logger
}

// Client is a single long-lived duplex websocket connection. Writes are
// serialized behind a mutex; a dedicated goroutine owns all reads. Once the
// connection ends, for whatever reason, it stays ended: there is no
// reconnection.
type Client struct {
	conn     net.Conn
	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
	logger   *slog.Logger
}

// ReadMessage reads frames from r until a frame with the FIN bit set
// completes the logical message, accumulating fragment payloads in order.
// Control frames interleaved with fragments are handed to ctrl and do not
// contribute to the message. The FIN flag is the only message boundary;
// the payload content is never inspected.
func ReadMessage(r io.Reader, ctrl func(f ws.Frame) error) (ws.OpCode, []byte, error) {
	var (
		op      ws.OpCode
		payload []byte
		started bool
	)
	for {
		frame, err := ws.ReadFrame(r)
		if err != nil {
			return 0, nil, err
		}
		if frame.Header.Masked {
			ws.Cipher(frame.Payload, frame.Header.Mask, 0)
		}
		if frame.Header.OpCode.IsControl() {
			if ctrl != nil {
				if err := ctrl(frame); err != nil {
					return 0, nil, err
				}
			}
			continue
		}
		if !started {
			op = frame.Header.OpCode
			started = true
		}
		payload = append(payload, frame.Payload...)
		if frame.Header.Fin {
			return op, payload, nil
		}
	}
}

func (c *Client) setDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) shutdown() {
	c.setDone()
	_ = c.conn.Close()
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send writes data as a single masked text frame. Concurrent callers are
// serialized; frame bytes of two sends never interleave on the wire.
func (c *Client) Send(data []byte) error {
	return c.writeFrame(ws.NewTextFrame(data))
}

func (c *Client) writeFrame(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if err := ws.WriteFrame(c.conn, ws.MaskFrameInPlace(f)); err != nil {
		c.shutdown()
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) SendClose(code ws.StatusCode, reason string) {
	_ = c.writeFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// Close initiates a clean shutdown and waits for the peer's close frame,
// bounded by ctx. On timeout the underlying connection is torn down anyway.
func (c *Client) Close(ctx context.Context) error {
	c.SendClose(ws.StatusNormalClosure, "closing")
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.shutdown()
		return fmt.Errorf("close failed: %w", ctx.Err())
	}
}

func (c *Client) handleControl(f ws.Frame) error {
	switch f.Header.OpCode {
	case ws.OpPing:
		if err := c.writeFrame(ws.NewPongFrame(f.Payload)); err != nil {
			return err
		}
	case ws.OpClose:
		c.logger.Debug("rcv: close", slog.String("reason", string(f.Payload)))
		return errPeerClosed
	}
	return nil
}

func Connect(ctx context.Context, config ClientConfig) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("url", config.URL))

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	conn, buf, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, err
	}
	logger.Debug("handshake complete", slog.Any("handshake", hs))

	// The handshake reader may already hold frames the server sent right
	// away; keep reading through it instead of recycling it.
	var rd io.Reader = conn
	if buf != nil {
		rd = buf
	}

	client := &Client{
		conn:   conn,
		done:   make(chan struct{}),
		logger: logger,
	}

	onMessage := config.OnMessage
	if onMessage == nil {
		onMessage = func(data []byte) error { return nil }
	}

	// Ending the session must unblock the pending read.
	go func() {
		select {
		case <-ctx.Done():
			client.shutdown()
		case <-client.done:
		}
	}()

	go func() {
		defer client.shutdown()
		for {
			op, payload, err := ReadMessage(rd, client.handleControl)
			if err != nil {
				switch {
				case errors.Is(err, io.EOF),
					errors.Is(err, errPeerClosed),
					errors.Is(err, net.ErrClosed):
				default:
					logger.Error("ws read failed", slog.Any("err", err))
				}
				return
			}
			if op != ws.OpText {
				logger.Debug("rcv: non-text message dropped", slog.Int("len", len(payload)))
				continue
			}
			if err := onMessage(payload); err != nil {
				logger.Error("message handler failed", slog.Any("err", err))
			}
		}
	}()

	logger.Info("connected to websocket")

	return client, nil
}
