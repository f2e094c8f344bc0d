package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// SampleRate is the rate whisper models expect.
const SampleRate = 16000

// ReadWAVMono decodes a PCM WAV file into mono float32 samples in [-1, 1]
// plus the file's native rate. Multi-channel audio is averaged down.
func ReadWAVMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, fmt.Errorf("%s: missing format information", path)
	}

	ch := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	depth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		depth = buf.SourceBitDepth
	}
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += float32(buf.Data[i*ch+c]) / scale
		}
		out[i] = sum / float32(ch)
	}
	return out, rate, nil
}

// ValidateWAV confirms the file decodes fully to its end, i.e. the trailer
// was written and no frame is truncated.
func ValidateWAV(path string) error {
	_, _, err := ReadWAVMono(path)
	return err
}

// ProbeWAV reports the rate and channel count from the header.
func ProbeWAV(path string) (rate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	return int(dec.SampleRate), int(dec.NumChans), nil
}

// ResampleLinear converts mono samples between rates by linear
// interpolation. Good enough for speech fed to whisper.
func ResampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
