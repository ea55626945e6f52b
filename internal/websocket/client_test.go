package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/require"
)

func writeServerFrame(t *testing.T, buf *bytes.Buffer, op ws.OpCode, fin bool, payload []byte) {
	t.Helper()
	require.NoError(t, ws.WriteFrame(buf, ws.NewFrame(op, fin, payload)))
}

func TestReadMessageFragmented(t *testing.T) {
	doc := []byte(`{"type":"response.output_audio_transcript.delta","delta":"hello there"}`)

	var buf bytes.Buffer
	writeServerFrame(t, &buf, ws.OpText, false, doc[:10])
	writeServerFrame(t, &buf, ws.OpContinuation, false, doc[10:40])
	writeServerFrame(t, &buf, ws.OpContinuation, true, doc[40:])

	op, payload, err := ReadMessage(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, ws.OpText, op)
	require.Equal(t, doc, payload)

	// buffer drained: exactly one message, not three
	_, _, err = ReadMessage(&buf, nil)
	require.Error(t, err)
}

func TestReadMessageBraceInsideString(t *testing.T) {
	// A fragment ending in "}" must not terminate the message; only FIN does.
	doc := []byte(`{"type":"noise","text":"literal }","more":1}`)
	cut := bytes.IndexByte(doc, '}') + 1

	var buf bytes.Buffer
	writeServerFrame(t, &buf, ws.OpText, false, doc[:cut])
	writeServerFrame(t, &buf, ws.OpContinuation, true, doc[cut:])

	_, payload, err := ReadMessage(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, doc, payload)
	require.True(t, json.Valid(payload))
}

func TestReadMessageControlInterleaved(t *testing.T) {
	doc := []byte(`{"type":"session.created"}`)

	var buf bytes.Buffer
	writeServerFrame(t, &buf, ws.OpText, false, doc[:8])
	writeServerFrame(t, &buf, ws.OpPing, true, []byte("ping"))
	writeServerFrame(t, &buf, ws.OpContinuation, true, doc[8:])

	var pings int
	_, payload, err := ReadMessage(&buf, func(f ws.Frame) error {
		if f.Header.OpCode == ws.OpPing {
			pings++
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, doc, payload)
	require.Equal(t, 1, pings)
}

func TestSendSerializesConcurrentWriters(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	c := &Client{
		conn:   clientSide,
		done:   make(chan struct{}),
		logger: slog.New(slog.DiscardHandler),
	}

	const perWriter = 50
	docA, _ := json.Marshal(map[string]any{"type": "input_audio_buffer.append", "audio": "AAAA"})
	docB, _ := json.Marshal(map[string]any{"type": "input_audio_buffer.commit"})

	read := make(chan error, 1)
	go func() {
		for i := 0; i < perWriter*2; i++ {
			frame, err := ws.ReadFrame(serverSide)
			if err != nil {
				read <- err
				return
			}
			if frame.Header.Masked {
				ws.Cipher(frame.Payload, frame.Header.Mask, 0)
			}
			if !json.Valid(frame.Payload) {
				read <- errInterleaved
				return
			}
		}
		read <- nil
	}()

	var wg sync.WaitGroup
	for _, doc := range [][]byte{docA, docB} {
		wg.Add(1)
		go func(doc []byte) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				require.NoError(t, c.Send(doc))
			}
		}(doc)
	}
	wg.Wait()

	require.NoError(t, <-read)
}

var errInterleaved = errors.New("interleaved frame payload")
