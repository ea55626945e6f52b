package realtime

import (
	"io"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

// AudioIO bridges caller-side PCM at an arbitrary sample rate to the
// session's wire rate. The capture path resamples with linear interpolation
// (cheap, low latency); the playback path uses the sinc resampler since the
// agent's audio is the thing the user actually hears.
type AudioIO struct {
	mu          sync.Mutex
	agentBuffer *ringbuffer.RingBuffer

	// wire rate and capture chunk length the bridge was built with
	wireRate     int
	captureChunk int

	playback *chunkQueue

	userInputWriter   io.Writer // caller writes captured audio here
	userOutputReader  io.Reader // caller reads agent audio here
	agentInputReader  io.Reader // session reads conditioned capture audio here
	agentOutputWriter io.Writer // playback drain writes decoded agent audio here
}

// NewAudioIO sets up the two ring-buffer paths between a caller at
// userSampleRate and the wire at wireRate. latency sizes the capture chunks.
func NewAudioIO(userSampleRate, wireRate int, latency time.Duration) *AudioIO {
	captureChunk := chunkSize(wireRate, latency, 1)
	userBuffer := ringbuffer.New(captureChunk * 4).SetBlocking(true)
	agentBuffer := ringbuffer.New(chunkSize(userSampleRate, 60*time.Second, 1)).SetBlocking(true)

	a := &AudioIO{
		agentBuffer:      agentBuffer,
		wireRate:         wireRate,
		captureChunk:     captureChunk,
		playback:         newChunkQueue(),
		agentInputReader: NewFixedChunkReader(userBuffer, captureChunk),
		agentOutputWriter: &ResampleWriter{
			Sink:      agentBuffer,
			FromRate:  wireRate,
			ToRate:    userSampleRate,
			Resampler: BeepResampler{},
		},
		userOutputReader: NewFixedChunkReader(agentBuffer, chunkSize(userSampleRate, latency, 1)),
		userInputWriter: &ResampleWriter{
			Sink:      userBuffer,
			FromRate:  userSampleRate,
			ToRate:    wireRate,
			Resampler: LinearResampler{},
		},
	}

	go a.playbackLoop()

	return a
}

// playbackLoop moves queued agent audio into the playback ring buffer. The
// ring buffer write blocks while the caller is not draining the speaker
// side; only this goroutine ever parks on it, never the receive loop.
func (a *AudioIO) playbackLoop() {
	for {
		pcm, ok := a.playback.Pop()
		if !ok {
			return
		}
		if _, err := a.agentOutputWriter.Write(pcm); err != nil {
			return
		}
	}
}

// Audio returns the caller-facing endpoints: a reader of agent audio and a
// writer for captured audio, both PCM16 mono at the caller's rate.
func (a *AudioIO) Audio() (io.Reader, io.Writer) {
	return a.userOutputReader, a.userInputWriter
}

// PushAgentAudio queues decoded agent audio at the wire rate. It never
// blocks; an undrained speaker reader grows the queue, bounded by memory.
func (a *AudioIO) PushAgentAudio(pcm []byte) {
	a.playback.Push(append([]byte(nil), pcm...))
}

// ClearOutputBuffer drops queued and buffered agent audio. Called when the
// user starts speaking so stale playback does not trail the interruption.
func (a *AudioIO) ClearOutputBuffer() {
	a.playback.Clear()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agentBuffer.Reset()
}

// Close stops the playback drain. Queued audio is dropped.
func (a *AudioIO) Close() {
	a.playback.Close()
}

// chunkQueue is the unbounded hand-off between the receive loop and the
// playback drain, same discipline as the session's inbound event queue: Push
// never blocks the producer.
type chunkQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
	kick   chan struct{}
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{kick: make(chan struct{}, 1)}
}

func (q *chunkQueue) Push(p []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, p)
	q.mu.Unlock()

	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *chunkQueue) Clear() {
	q.mu.Lock()
	q.chunks = nil
	q.mu.Unlock()
}

func (q *chunkQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Pop blocks until a chunk is queued or the queue closes. Single consumer.
func (q *chunkQueue) Pop() ([]byte, bool) {
	for {
		q.mu.Lock()
		if len(q.chunks) > 0 {
			p := q.chunks[0]
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return p, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		<-q.kick
	}
}
