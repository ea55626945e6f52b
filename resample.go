package realtime

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/faiface/beep"
)

// Resampler converts mono PCM16 between sample rates.
type Resampler interface {
	Resample(pcm []byte, fromRate, toRate int) ([]byte, error)
}

// LinearResampler is the cheap interpolating resampler used on the capture
// path, where latency matters more than stop-band quality.
type LinearResampler struct{}

func (LinearResampler) Resample(pcm []byte, fromRate, toRate int) ([]byte, error) {
	return ResampleLinear(pcm, fromRate, toRate), nil
}

// BeepResampler runs the windowed-sinc resampler from beep. Quality is the
// sinc window half-width; 3 is a reasonable default.
type BeepResampler struct {
	Quality int
}

func (r BeepResampler) Resample(pcm []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate == toRate {
		return pcm, nil
	}
	quality := r.Quality
	if quality == 0 {
		quality = 3
	}
	return resamplePCM(pcm, fromRate, toRate, quality)
}

// ResampleWriter converts every written chunk from FromRate to ToRate before
// passing it to Sink. Write reports the pre-conversion length.
type ResampleWriter struct {
	Sink      io.Writer
	FromRate  int
	ToRate    int
	Resampler Resampler
}

func (w *ResampleWriter) Write(p []byte) (int, error) {
	out, err := w.Resampler.Resample(p, w.FromRate, w.ToRate)
	if err != nil {
		return 0, err
	}
	if _, err := w.Sink.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

type pcmStreamer struct {
	data []int16
	pos  int
}

func newPCMStreamer(b []byte) *pcmStreamer {
	samples := make([]int16, len(b)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return &pcmStreamer{data: samples}
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= len(s.data) {
			return i, false
		}
		val := float64(s.data[s.pos]) / 32768.0
		samples[i][0] = val
		samples[i][1] = val // duplicate mono to stereo
		s.pos++
	}
	return len(samples), true
}

func (s *pcmStreamer) Err() error { return nil }

func resamplePCM(pcmData []byte, fromRate, toRate, quality int) ([]byte, error) {
	streamer := newPCMStreamer(pcmData)

	resampler := beep.Resample(quality, beep.SampleRate(fromRate), beep.SampleRate(toRate), streamer)

	buf := new(bytes.Buffer)
	sample := make([][2]float64, 1024)

	for {
		n, ok := resampler.Stream(sample)
		for i := 0; i < n; i++ {
			mono := (sample[i][0] + sample[i][1]) / 2.0
			int16Val := int16(mono * 32767)
			err := binary.Write(buf, binary.LittleEndian, int16Val)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			break
		}
	}

	return buf.Bytes(), nil
}
