package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/require"

	"github.com/voicewire/realtime-go/events"
)

func TestAppendAudioGate(t *testing.T) {
	s := New(WithKey("sk-test"))

	// 99 ms of mono PCM16 at 24 kHz
	err := s.AppendAudio(make([]byte, 4798), 24000, 1)
	require.ErrorIs(t, err, ErrAudioTooShort)

	// exactly 100 ms passes the gate and fails only on the missing connection
	err = s.AppendAudio(make([]byte, 4800), 24000, 1)
	require.NotErrorIs(t, err, ErrAudioTooShort)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestAppendAudioGateAfterConversion(t *testing.T) {
	s := New(WithKey("sk-test"))

	// 150 ms of stereo at 48 kHz collapses to 75 ms at the 24 kHz wire rate
	stereo := make([]byte, 48*150*2*2)
	require.ErrorIs(t, s.AppendAudio(stereo, 48000, 2), ErrAudioTooShort)

	require.ErrorIs(t, s.AppendAudio(make([]byte, 12), 24000, 4), ErrUnsupportedChannelLayout)
}

func TestAppendAudioURIGate(t *testing.T) {
	s := New(WithKey("sk-test"))

	short := base64.StdEncoding.EncodeToString(make([]byte, 100))
	require.ErrorIs(t, s.AppendAudioURI("data:audio/pcm;base64,"+short), ErrAudioTooShort)
}

func TestSendRequiresConnection(t *testing.T) {
	s := New(WithKey("sk-test"))

	err := s.CommitAudio()
	require.ErrorIs(t, err, errNotConnected)
}

func TestConnectRejectsMissingKey(t *testing.T) {
	s := New(WithKey(""), WithEnvKey("REALTIME_TEST_UNSET_VAR"))

	err := s.Connect(context.Background())
	require.ErrorContains(t, err, "missing api key")
}

func TestReceivePathToleratesUndrainedPlayback(t *testing.T) {
	s := New(WithKey("sk-test"))

	data, err := json.Marshal(map[string]any{
		"type":  "response.output_audio.delta",
		"delta": base64.StdEncoding.EncodeToString(make([]byte, 9600)),
	})
	require.NoError(t, err)

	// 70 s of agent audio against the 60 s playback buffer, nobody reading
	// the speaker side
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 350; i++ {
			require.NoError(t, s.handleMessage(data))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receive path stalled on an undrained playback buffer")
	}

	// inbound flow is still live after the flood
	require.NoError(t, s.handleMessage([]byte(`{"type":"session.created","session":{}}`)))
	select {
	case <-s.created:
	default:
		t.Fatal("later events were not processed")
	}
}

// fakeService is a scripted realtime endpoint on a local listener.
type fakeService struct {
	t  *testing.T
	ln net.Listener
}

func newFakeService(t *testing.T, script func(conn net.Conn)) *fakeService {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ws.Upgrade(conn); err != nil {
			return
		}
		script(conn)
	}()

	t.Cleanup(func() { ln.Close() })
	return &fakeService{t: t, ln: ln}
}

func (f *fakeService) url() string {
	return "ws://" + f.ln.Addr().String()
}

func serviceSend(t *testing.T, conn net.Conn, v any) {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ws.WriteFrame(conn, ws.NewTextFrame(data)))
}

// serviceRead returns the next complete data message from the client,
// unmasking and reassembling as needed.
func serviceRead(t *testing.T, conn net.Conn) map[string]any {
	var payload []byte
	for {
		frame, err := ws.ReadFrame(conn)
		require.NoError(t, err)
		if frame.Header.Masked {
			ws.Cipher(frame.Payload, frame.Header.Mask, 0)
		}
		if frame.Header.OpCode.IsControl() {
			continue
		}
		payload = append(payload, frame.Payload...)
		if frame.Header.Fin {
			break
		}
	}

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	return doc
}

func TestSessionLifecycle(t *testing.T) {
	scriptDone := make(chan struct{})
	svc := newFakeService(t, func(conn net.Conn) {
		defer close(scriptDone)

		serviceSend(t, conn, map[string]any{
			"type": "session.created",
			"session": map[string]any{
				"id":    "sess_1",
				"type":  "realtime",
				"model": "gpt-realtime",
			},
		})

		upd := serviceRead(t, conn)
		require.Equal(t, "session.update", upd["type"])
		serviceSend(t, conn, map[string]any{
			"type":    "session.updated",
			"session": upd["session"],
		})

		app := serviceRead(t, conn)
		require.Equal(t, "input_audio_buffer.append", app["type"])
		raw, err := base64.StdEncoding.DecodeString(app["audio"].(string))
		require.NoError(t, err)
		require.Len(t, raw, 4800)

		// a transcript delta split across three frames
		delta, err := json.Marshal(map[string]any{
			"type":  "response.output_audio_transcript.delta",
			"delta": "hello {there}",
		})
		require.NoError(t, err)
		require.NoError(t, ws.WriteFrame(conn, ws.NewFrame(ws.OpText, false, delta[:5])))
		require.NoError(t, ws.WriteFrame(conn, ws.NewFrame(ws.OpContinuation, false, delta[5:9])))
		require.NoError(t, ws.WriteFrame(conn, ws.NewFrame(ws.OpContinuation, true, delta[9:])))

		serviceSend(t, conn, map[string]any{
			"type": "conversation.item.added",
			"item": map[string]any{"id": "item_1"},
		})

		serviceSend(t, conn, map[string]any{
			"type":  "error",
			"error": map[string]any{"code": "429", "message": "rate_limit"},
		})
	})

	s := New(
		WithKey("sk-test"),
		WithEndpoint(svc.url()),
		WithModel("gpt-realtime"),
	)

	var serverErrs []error
	s.OnError(func(err error) { serverErrs = append(serverErrs, err) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	require.Equal(t, "gpt-realtime", s.Options().Model)

	require.NoError(t, s.AppendAudio(make([]byte, 4800), 24000, 1))

	outbound := make(chan events.ClientEvent)
	close(outbound)
	out := s.Stream(ctx, outbound)

	var got []events.ServerEvent
	for evt := range out {
		got = append(got, evt)
		if evt.Base().Type == "error" {
			break
		}
	}

	types := make([]string, len(got))
	for i, evt := range got {
		types[i] = evt.Base().Type
	}
	require.Equal(t, []string{
		"session.created",
		"session.updated",
		"response.output_audio_transcript.delta",
		"conversation.item.added",
		"error",
	}, types)

	tr, ok := got[2].(*events.ResponseOutputAudioTranscriptDeltaEvent)
	require.True(t, ok)
	require.Equal(t, "hello {there}", tr.Delta)

	_, isRaw := got[3].(*events.RawServerEvent)
	require.True(t, isRaw)

	require.Len(t, serverErrs, 1)
	var errEvt *events.ErrorEvent
	require.ErrorAs(t, serverErrs[0], &errEvt)
	require.Equal(t, "429", errEvt.Detail.Code)

	require.NoError(t, s.Close(ctx))

	select {
	case <-scriptDone:
	case <-time.After(5 * time.Second):
		t.Fatal("service script did not finish")
	}
}

func TestUpdateWaitsForOwnEcho(t *testing.T) {
	scriptDone := make(chan struct{})
	svc := newFakeService(t, func(conn net.Conn) {
		defer close(scriptDone)

		serviceSend(t, conn, map[string]any{
			"type":    "session.created",
			"session": map[string]any{"id": "sess_1", "type": "realtime"},
		})

		upd := serviceRead(t, conn)
		serviceSend(t, conn, map[string]any{
			"type":    "session.updated",
			"session": upd["session"],
		})

		// an unsolicited update the client never asked for
		sess := upd["session"].(map[string]any)
		sess["audio"].(map[string]any)["output"].(map[string]any)["voice"] = "marin"
		serviceSend(t, conn, map[string]any{"type": "session.updated", "session": sess})

		// the client's explicit update; delay the echo and override the voice
		upd2 := serviceRead(t, conn)
		require.Equal(t, "session.update", upd2["type"])
		time.Sleep(150 * time.Millisecond)
		sess2 := upd2["session"].(map[string]any)
		sess2["audio"].(map[string]any)["output"].(map[string]any)["voice"] = "verse"
		serviceSend(t, conn, map[string]any{"type": "session.updated", "session": sess2})
	})

	s := New(WithKey("sk-test"), WithEndpoint(svc.url()))

	sawStale := make(chan struct{})
	s.OnEvent(func(e events.ServerEvent) {
		u, ok := e.(*events.SessionUpdatedEvent)
		if ok && u.Session.Audio != nil && u.Session.Audio.Output != nil &&
			u.Session.Audio.Output.Voice == "marin" {
			close(sawStale)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))

	select {
	case <-sawStale:
	case <-time.After(5 * time.Second):
		t.Fatal("unsolicited session.updated never arrived")
	}

	opts := s.Options()
	opts.Voice = "cedar"
	require.NoError(t, s.Update(opts))

	// Update must have waited for its own echo, not the stale token
	require.Equal(t, "verse", s.Options().Voice)

	require.NoError(t, s.Close(ctx))
	<-scriptDone
}

func TestCapturePumpAggregatesChunks(t *testing.T) {
	scriptDone := make(chan struct{})
	svc := newFakeService(t, func(conn net.Conn) {
		defer close(scriptDone)

		serviceSend(t, conn, map[string]any{
			"type":    "session.created",
			"session": map[string]any{"id": "sess_1", "type": "realtime"},
		})
		upd := serviceRead(t, conn)
		serviceSend(t, conn, map[string]any{
			"type":    "session.updated",
			"session": upd["session"],
		})

		// 20 ms capture chunks must arrive coalesced to at least 100 ms
		app := serviceRead(t, conn)
		require.Equal(t, "input_audio_buffer.append", app["type"])
		raw, err := base64.StdEncoding.DecodeString(app["audio"].(string))
		require.NoError(t, err)
		require.Equal(t, 4800, len(raw))
	})

	s := New(WithKey("sk-test"), WithEndpoint(svc.url()), WithLatency(20))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))

	_, mic := s.Audio()
	_, err := mic.Write(make([]byte, 4800))
	require.NoError(t, err)

	select {
	case <-scriptDone:
	case <-time.After(5 * time.Second):
		t.Fatal("service script did not finish")
	}
	require.NoError(t, s.Close(ctx))
}

func TestCapturePumpTracksRenegotiatedRate(t *testing.T) {
	scriptDone := make(chan struct{})
	svc := newFakeService(t, func(conn net.Conn) {
		defer close(scriptDone)

		serviceSend(t, conn, map[string]any{
			"type":    "session.created",
			"session": map[string]any{"id": "sess_1", "type": "realtime"},
		})

		// echo back a renegotiated 16 kHz input rate
		upd := serviceRead(t, conn)
		sess := upd["session"].(map[string]any)
		format := sess["audio"].(map[string]any)["input"].(map[string]any)["format"].(map[string]any)
		format["rate"] = 16000
		serviceSend(t, conn, map[string]any{"type": "session.updated", "session": sess})

		// one 200 ms bridge chunk at 24 kHz re-rated to 16 kHz
		app := serviceRead(t, conn)
		require.Equal(t, "input_audio_buffer.append", app["type"])
		raw, err := base64.StdEncoding.DecodeString(app["audio"].(string))
		require.NoError(t, err)
		require.Equal(t, 6400, len(raw))
	})

	s := New(WithKey("sk-test"), WithEndpoint(svc.url()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	require.Equal(t, 16000, s.Options().InputFormat.Rate)

	_, mic := s.Audio()
	_, err := mic.Write(make([]byte, 9600))
	require.NoError(t, err)

	select {
	case <-scriptDone:
	case <-time.After(5 * time.Second):
		t.Fatal("service script did not finish")
	}
	require.NoError(t, s.Close(ctx))
}
