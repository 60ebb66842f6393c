// Package voice runs the realtime media session: it bridges the telephony
// WebSocket, the streaming transcriber, and the reply synthesizer.
package voice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// inboundMessage is the envelope for every control frame the telephony
// provider sends over the media WebSocket. The event field discriminates;
// only the matching payload section is populated.
type inboundMessage struct {
	Event string `json:"event"`

	Protocol string `json:"protocol,omitempty"`

	Start *startPayload `json:"start,omitempty"`
	Media *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// outboundMedia is an audio frame sent back to the telephony provider.
type outboundMedia struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// parseInbound decodes one control frame. For media events the base64 audio
// payload is decoded as well.
func parseInbound(data []byte) (inboundMessage, []byte, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, nil, fmt.Errorf("decode control frame: %w", err)
	}
	if msg.Event == "media" {
		if msg.Media == nil {
			return msg, nil, fmt.Errorf("media event without payload")
		}
		audio, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			return msg, nil, fmt.Errorf("decode media payload: %w", err)
		}
		return msg, audio, nil
	}
	return msg, nil, nil
}

// encodeMedia wraps one mulaw frame as an outbound media message.
func encodeMedia(streamSid string, frame []byte) ([]byte, error) {
	out := outboundMedia{Event: "media", StreamSid: streamSid}
	out.Media.Payload = base64.StdEncoding.EncodeToString(frame)
	return json.Marshal(out)
}
