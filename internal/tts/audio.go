package tts

import "encoding/binary"

// The telephony transport carries 8-bit G.711 mu-law at 8kHz mono. Providers
// return 16-bit little-endian PCM at their own rates, so every synthesis
// result passes through ResampleToTelephony before leaving this package.
const (
	TelephonyRate = 8000
	// MulawSilence is the mu-law encoding of a zero sample, used to pad short
	// frames.
	MulawSilence = 0xFF
)

// ResampleToTelephony converts 16-bit little-endian mono PCM at srcRate into
// 8kHz mu-law bytes.
func ResampleToTelephony(pcm []byte, srcRate int) []byte {
	samples := decodePCM16(pcm)
	if srcRate != TelephonyRate {
		samples = resample(samples, srcRate, TelephonyRate)
	}
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMulaw(s)
	}
	return out
}

func decodePCM16(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}

// resample performs linear-interpolation rate conversion. Quality is more
// than adequate for 8kHz telephony output.
func resample(in []int16, srcRate, dstRate int) []int16 {
	if len(in) == 0 || srcRate == dstRate {
		return in
	}
	outLen := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, outLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(in[idx])
		b := float64(in[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// linearToMulaw encodes one 16-bit PCM sample as G.711 mu-law.
func linearToMulaw(sample int16) byte {
	const (
		bias = 0x84
		clip = 32635
	)
	s := int(sample)
	sign := 0
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > clip {
		s = clip
	}
	s += bias

	exponent := 7
	for mask := 0x4000; exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^byte(sign | (exponent << 4) | mantissa)
}
