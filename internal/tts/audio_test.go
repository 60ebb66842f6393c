package tts

import (
	"encoding/binary"
	"testing"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestLinearToMulawKnownValues(t *testing.T) {
	cases := []struct {
		sample int16
		want   byte
	}{
		{0, 0xFF},
		{-1, 0x7F},
		{32767, 0x80},
		{-32768, 0x00},
	}
	for _, c := range cases {
		if got := linearToMulaw(c.sample); got != c.want {
			t.Errorf("linearToMulaw(%d) = %#02x, want %#02x", c.sample, got, c.want)
		}
	}
}

func TestLinearToMulawSignBit(t *testing.T) {
	// Positive samples clear the (inverted) sign bit; negative samples set it.
	if got := linearToMulaw(1000); got&0x80 == 0 {
		t.Errorf("positive sample encoded with negative sign: %#02x", got)
	}
	if got := linearToMulaw(-1000); got&0x80 != 0 {
		t.Errorf("negative sample encoded with positive sign: %#02x", got)
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]int16, 480) // 20ms at 24kHz
	out := resample(in, 24000, 8000)
	if len(out) != 160 {
		t.Fatalf("len = %d, want 160", len(out))
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Upsampling a ramp must stay monotonic.
	in := []int16{0, 100, 200, 300}
	out := resample(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("not monotonic at %d: %v", i, out)
		}
	}
}

func TestResampleToTelephonyLength(t *testing.T) {
	// One second of 24kHz PCM becomes one second of 8kHz mu-law.
	pcm := pcmBytes(make([]int16, 24000))
	out := ResampleToTelephony(pcm, 24000)
	if len(out) != 8000 {
		t.Fatalf("len = %d, want 8000", len(out))
	}
	for i, b := range out {
		if b != MulawSilence {
			t.Fatalf("silence sample %d encoded as %#02x", i, b)
		}
	}
}

func TestResampleToTelephonyPassthroughRate(t *testing.T) {
	pcm := pcmBytes([]int16{0, 0, 0, 0})
	out := ResampleToTelephony(pcm, TelephonyRate)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
}
