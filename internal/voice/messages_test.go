package voice

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParseInboundStart(t *testing.T) {
	raw := `{"event":"start","start":{"streamSid":"MZ123","callSid":"CA456"}}`
	msg, audio, err := parseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if msg.Event != "start" || msg.Start == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Start.StreamSid != "MZ123" || msg.Start.CallSid != "CA456" {
		t.Errorf("sids = %q/%q", msg.Start.StreamSid, msg.Start.CallSid)
	}
	if audio != nil {
		t.Errorf("start event produced audio: %v", audio)
	}
}

func TestParseInboundMedia(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})
	raw := `{"event":"media","media":{"payload":"` + payload + `"}}`
	msg, audio, err := parseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if msg.Event != "media" {
		t.Fatalf("event = %q", msg.Event)
	}
	if len(audio) != 3 || audio[0] != 0x01 || audio[2] != 0x03 {
		t.Errorf("audio = %v", audio)
	}
}

func TestParseInboundMediaBadBase64(t *testing.T) {
	raw := `{"event":"media","media":{"payload":"not base64!!"}}`
	if _, _, err := parseInbound([]byte(raw)); err == nil {
		t.Fatal("want error for invalid payload encoding")
	}
}

func TestParseInboundMediaMissingPayload(t *testing.T) {
	raw := `{"event":"media"}`
	if _, _, err := parseInbound([]byte(raw)); err == nil {
		t.Fatal("want error for media event without payload")
	}
}

func TestEncodeMediaRoundTrip(t *testing.T) {
	frame := []byte{0xFF, 0x00, 0x7F}
	data, err := encodeMedia("MZ123", frame)
	if err != nil {
		t.Fatalf("encodeMedia: %v", err)
	}

	var out struct {
		Event     string `json:"event"`
		StreamSid string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Event != "media" || out.StreamSid != "MZ123" {
		t.Errorf("envelope = %+v", out)
	}
	decoded, err := base64.StdEncoding.DecodeString(out.Media.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if string(decoded) != string(frame) {
		t.Errorf("payload = %v, want %v", decoded, frame)
	}
}
