package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/internal/websocket"
)

var errNotConnected = errors.New("session not connected")

// Session is one authenticated duplex connection to the realtime service.
// It owns the socket exclusively: a single receive loop decodes inbound
// events while all public operations funnel through the serialized send path.
type Session struct {
	config *sessionConfig
	logger *slog.Logger

	ws     *websocket.Client
	cancel context.CancelFunc

	mu   sync.Mutex
	opts SessionOptions

	queue       *eventQueue
	created     chan struct{}
	createdOnce sync.Once
	updated     chan struct{}

	onEvent    func(e events.ServerEvent)
	onError    func(err error)
	onToolCall func(name string, args map[string]any) (any, error)

	io *AudioIO
}

func New(opts ...Option) *Session {
	config := &sessionConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	wireRate := config.opts.InputFormat.EffectiveRate()

	return &Session{
		config:  config,
		logger:  config.logger,
		opts:    config.opts,
		queue:   newEventQueue(),
		created: make(chan struct{}),
		updated: make(chan struct{}, 1),
		io:      NewAudioIO(config.sampleRate, wireRate, config.latency()),
	}
}

// OnEvent registers an auxiliary observer over every decoded inbound event.
// It runs on the receive loop, independent of any Stream consumer.
func (s *Session) OnEvent(h func(e events.ServerEvent)) {
	s.onEvent = h
}

// OnError registers an observer for non-fatal errors (decode failures, send
// failures, server error events).
func (s *Session) OnError(h func(err error)) {
	s.onError = h
}

// OnToolCall registers the handler invoked for completed function calls. The
// session transports the call and its result; executing it is the handler's
// business.
func (s *Session) OnToolCall(h func(name string, args map[string]any) (any, error)) {
	s.onToolCall = h
}

// Audio returns the caller-facing PCM endpoints of the session's audio
// bridge.
func (s *Session) Audio() (io.Reader, io.Writer) {
	return s.io.Audio()
}

// Options returns the current reconciled option snapshot.
func (s *Session) Options() SessionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Session) inputRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.InputFormat.EffectiveRate()
}

// Send marshals and transmits any client event. This is the raw passthrough;
// the typed operations below are built on it.
func (s *Session) Send(evt events.ClientEvent) error {
	if s.ws == nil {
		return &TransportError{Op: "send", Err: errNotConnected}
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Base().Type, err)
	}
	if err := s.ws.Send(data); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Update pushes a new option snapshot to the service and waits for the echo.
func (s *Session) Update(opts SessionOptions) error {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()

	// An unsolicited session.updated may have left a stale token behind;
	// this wait must be satisfied only by the echo of this update.
	select {
	case <-s.updated:
	default:
	}

	if err := s.Send(events.NewSessionUpdateEvent(opts.sessionUpdate())); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for session update")
	case <-s.updated:
	}
	return nil
}

// AppendAudio conditions one captured PCM16 buffer (downmix, resample to the
// negotiated input rate) and transmits it. Buffers below 100 ms after
// conversion are rejected before anything is sent.
func (s *Session) AppendAudio(pcm []byte, sampleRate, channels int) error {
	mono, err := DownmixToMono(pcm, channels)
	if err != nil {
		return err
	}

	target := s.inputRate()
	mono = ResampleLinear(mono, sampleRate, target)
	if len(mono) < minAppendBytes(target) {
		return ErrAudioTooShort
	}

	return s.Send(events.NewInputAudioBufferAppendEvent(mono))
}

// AppendAudioURI transmits audio already carried as a base64 data URI. The
// payload is forwarded without re-encoding; the minimum-duration gate still
// applies.
func (s *Session) AppendAudioURI(uri string) error {
	evt := events.NewInputAudioBufferAppendFromURI(uri)
	if raw, err := base64.StdEncoding.DecodeString(evt.Audio); err == nil {
		if len(raw) < minAppendBytes(s.inputRate()) {
			return ErrAudioTooShort
		}
	}
	return s.Send(evt)
}

func (s *Session) CommitAudio() error {
	return s.Send(events.NewInputAudioBufferCommitEvent())
}

func (s *Session) ClearAudio() error {
	return s.Send(events.NewInputAudioBufferClearEvent())
}

func (s *Session) CreateResponse() error {
	return s.Send(events.NewResponseCreateEvent(events.ResponseCreatePayload{}))
}

func (s *Session) CreateResponseWithPayload(p events.ResponseCreatePayload) error {
	return s.Send(events.NewResponseCreateEvent(p))
}

func (s *Session) CancelResponse() error {
	return s.Send(events.NewResponseCancelEvent(""))
}

func (s *Session) CreateItem(item events.ConversationItem) error {
	return s.Send(events.NewConversationItemCreateEvent(item))
}

// UserInput adds a user text message and optionally requests a response.
func (s *Session) UserInput(text string, respond bool) error {
	id, _ := nanoid.New()
	err := s.CreateItem(events.ConversationItem{
		ID:      id,
		Role:    "user",
		Content: []events.ContentPart{events.TextPart(text)},
	})
	if err != nil {
		return err
	}

	if respond {
		return s.CreateResponse()
	}
	return nil
}

// Close ends the session: the shared cancellation signal fires, pending
// reads and writes unblock, and the inbound queue closes.
func (s *Session) Close(ctx context.Context) error {
	if s.ws == nil {
		return nil
	}
	err := s.ws.Close(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

// Connect dials the service, waits for session.created and pushes the
// configured options, returning once the service has echoed them back.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.config.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	headers := http.Header{}
	headers.Add("Authorization", fmt.Sprintf("Bearer %s", s.config.apiKey))

	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ws, err := websocket.Connect(sessionCtx, websocket.ClientConfig{
		URL:       fmt.Sprintf("%s?model=%s", s.config.endpoint, s.Options().Model),
		Headers:   headers,
		Logger:    s.logger,
		OnMessage: s.handleMessage,
	})
	if err != nil {
		cancel()
		return &TransportError{Op: "connect", Err: err}
	}
	s.ws = ws

	go func() {
		<-ws.Done()
		s.queue.Close()
		s.io.Close()
	}()

	select {
	case <-sessionCtx.Done():
		return &TransportError{Op: "connect", Err: sessionCtx.Err()}
	case <-ws.Done():
		return &TransportError{Op: "connect", Err: errors.New("connection ended before session.created")}
	case <-s.created:
	}

	if err := s.Update(s.Options()); err != nil {
		return err
	}

	go s.pumpCapturedAudio()

	return nil
}

// pumpCapturedAudio drains the audio bridge's conditioned capture chunks
// into append events for the lifetime of the connection. The read buffer is
// pinned to the bridge's construction-time chunk size; chunks are re-rated
// when the service has renegotiated the input rate away from the bridge's,
// and aggregated until they clear the minimum-duration gate.
func (s *Session) pumpCapturedAudio() {
	buf := make([]byte, s.io.captureChunk)
	var pending []byte

	for {
		n, err := s.io.agentInputReader.Read(buf)
		if err != nil {
			if err != io.EOF {
				s.logger.Error("failed to read captured audio", slog.Any("err", err))
			}
			return
		}

		chunk := buf[:n]
		target := s.inputRate()
		if target != s.io.wireRate {
			chunk = ResampleLinear(chunk, s.io.wireRate, target)
		}
		pending = append(pending, chunk...)
		if len(pending) < minAppendBytes(target) {
			continue
		}

		if err := s.Send(events.NewInputAudioBufferAppendEvent(pending)); err != nil {
			s.emitError(err)
			return
		}
		pending = pending[:0]
	}
}

// handleMessage is the receive loop's decode-and-dispatch step. Decode
// failures drop the single offending event; everything else is delivered in
// arrival order.
func (s *Session) handleMessage(data []byte) error {
	evt, err := events.ParseServerEvent(data)
	if err != nil {
		s.logger.Error("failed to decode event", slog.Any("err", err))
		s.emitError(err)
		return nil
	}

	switch e := evt.(type) {
	case *events.SessionCreatedEvent:
		s.applyServerSession(&e.Session)
		s.createdOnce.Do(func() { close(s.created) })

	case *events.SessionUpdatedEvent:
		s.applyServerSession(&e.Session)
		select {
		case s.updated <- struct{}{}:
		default:
		}

	case *events.ErrorEvent:
		s.emitError(e)

	case *events.ResponseOutputAudioDeltaEvent:
		if pcm, err := e.Audio(); err != nil {
			s.logger.Error("failed to decode audio delta", slog.Any("err", err))
		} else {
			s.io.PushAgentAudio(pcm)
		}

	case *events.SpeechStartedEvent:
		s.io.ClearOutputBuffer()

	case *events.ResponseDoneEvent:
		s.handleToolCalls(e)
	}

	s.queue.Push(evt)
	if s.onEvent != nil {
		s.onEvent(evt)
	}
	return nil
}

func (s *Session) applyServerSession(srv *events.Session) {
	s.mu.Lock()
	s.opts = reconcileOptions(srv, s.opts)
	s.mu.Unlock()
}

func (s *Session) emitError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) handleToolCalls(e *events.ResponseDoneEvent) {
	if s.onToolCall == nil {
		return
	}

	for _, item := range e.Response.Output {
		if item.Status != "completed" || len(item.Content) == 0 {
			continue
		}
		call := item.Content[0]
		if call.Kind != events.PartFunctionCall {
			continue
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			s.emitError(fmt.Errorf("tool call %s: bad arguments: %w", call.Name, err))
			continue
		}

		res, err := s.onToolCall(call.Name, args)
		s.logger.Debug("tool call",
			slog.String("name", call.Name),
			slog.Any("args", args),
			slog.Any("res", res),
			slog.Any("err", err))

		var output string
		switch {
		case err != nil:
			d, _ := json.Marshal(map[string]any{"error": err.Error()})
			output = string(d)
		case res != nil:
			d, _ := json.Marshal(res)
			output = string(d)
		default:
			d, _ := json.Marshal(map[string]any{"success": true})
			output = string(d)
		}

		_ = s.CreateItem(events.ConversationItem{
			ID:      call.CallID,
			Content: []events.ContentPart{events.FunctionResultPart(call.CallID, output)},
		})
		_ = s.CreateResponse()
	}
}
