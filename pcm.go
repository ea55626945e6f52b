package realtime

import (
	"encoding/binary"
	"time"
)

const bytesPerSample = 2 // 16-bit PCM

// MinAudioDuration is the shortest buffer the engine will transmit. Anything
// below it is rejected locally before any network interaction.
const MinAudioDuration = 100 * time.Millisecond

// minAppendBytes is the byte-length gate for mono PCM16 at rate Hz.
// 24 kHz yields 4800 bytes.
func minAppendBytes(rate int) int {
	bytesPerSecond := rate * bytesPerSample
	return int(time.Duration(bytesPerSecond) * MinAudioDuration / time.Second)
}

// DownmixToMono reduces 16-bit PCM to one channel by averaging each frame's
// channel pair, rounding half away from zero. Mono input passes through; any
// other channel count is rejected with ErrUnsupportedChannelLayout.
func DownmixToMono(pcm []byte, channels int) ([]byte, error) {
	switch channels {
	case 1:
		return pcm, nil
	case 2:
	default:
		return nil, ErrUnsupportedChannelLayout
	}

	frames := len(pcm) / (bytesPerSample * 2)
	out := make([]byte, frames*bytesPerSample)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		sum := int32(l) + int32(r)
		var avg int32
		if sum >= 0 {
			avg = (sum + 1) / 2
		} else {
			avg = (sum - 1) / 2
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(avg)))
	}
	return out, nil
}

// ResampleLinear converts mono PCM16 from inRate to outRate by linear
// interpolation. Output length is floor(inputSamples*outRate/inRate) samples;
// the last input sample is clamped so no out-of-bounds position is read.
// Equal rates return the input unchanged.
func ResampleLinear(pcm []byte, inRate, outRate int) []byte {
	if inRate == outRate {
		return pcm
	}

	in := len(pcm) / bytesPerSample
	if in == 0 {
		return nil
	}
	n := int(int64(in) * int64(outRate) / int64(inRate))

	out := make([]byte, n*bytesPerSample)
	step := float64(inRate) / float64(outRate)
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= in {
			i0 = in - 1
		}
		i1 := i0 + 1
		if i1 >= in {
			i1 = in - 1
		}
		frac := pos - float64(i0)

		s0 := float64(int16(binary.LittleEndian.Uint16(pcm[i0*2:])))
		s1 := float64(int16(binary.LittleEndian.Uint16(pcm[i1*2:])))
		v := s0 + (s1-s0)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
