package voice

import (
	"context"
	"time"

	"github.com/voice-diary-lab/internal/tts"
)

const (
	// frameBytes is one 20ms mulaw frame at 8kHz mono.
	frameBytes    = 160
	frameInterval = 20 * time.Millisecond
)

// frameSender delivers one encoded outbound frame. The session provides a
// WebSocket-backed implementation; tests substitute their own.
type frameSender interface {
	sendFrame(streamSid string, frame []byte) error
}

// paceOut writes audio to the caller in real time: fixed-size frames on a
// fixed cadence, the short tail padded with mulaw silence. It stops early
// when ctx is canceled (barge-in) or the sender fails, reporting how many
// frames went out.
func paceOut(ctx context.Context, sender frameSender, streamSid string, audio []byte) (int, error) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	sent := 0
	for off := 0; off < len(audio); off += frameBytes {
		end := off + frameBytes
		var frame []byte
		if end <= len(audio) {
			frame = audio[off:end]
		} else {
			frame = make([]byte, frameBytes)
			copy(frame, audio[off:])
			for i := len(audio) - off; i < frameBytes; i++ {
				frame[i] = tts.MulawSilence
			}
		}

		if err := sender.sendFrame(streamSid, frame); err != nil {
			return sent, err
		}
		sent++

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
	return sent, nil
}
