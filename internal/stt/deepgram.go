// Package stt streams caller audio to a live transcription service and
// surfaces its events to the call session.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voice-diary-lab/internal/config"
	"github.com/voice-diary-lab/internal/logging"
)

// EventKind discriminates recognizer events.
type EventKind int

const (
	// KindSpeechStarted fires when voice activity begins.
	KindSpeechStarted EventKind = iota
	// KindInterim carries a partial, revisable hypothesis.
	KindInterim
	// KindFinal carries a finalized fragment. SpeechFinal additionally marks
	// the end of the utterance.
	KindFinal
	// KindUtteranceEnd fires when the recognizer decides the utterance is
	// over, regardless of whether a speech-final result preceded it.
	KindUtteranceEnd
	// KindMetadata carries connection metadata; informational only.
	KindMetadata
)

// Event is one recognizer notification.
type Event struct {
	Kind        EventKind
	Transcript  string
	SpeechFinal bool
}

// deepgramMessage is the superset of the live API's JSON frames we care
// about.
type deepgramMessage struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

const (
	deepgramHost = "api.deepgram.com"

	// sendQueueSize bounds buffered outbound audio. At 20ms per frame this is
	// several seconds of backlog; past that frames are dropped rather than
	// stalling the media receive loop.
	sendQueueSize = 256

	closeGrace = 2 * time.Second
)

// Client is a live transcription session over one WebSocket connection.
// Events arrive on Events() until the connection ends.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	sendq  chan []byte

	// sendMu serializes enqueues against the queue close so a Send racing
	// Close cannot hit a closed channel.
	sendMu sync.Mutex
	closed bool

	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
}

// Dial opens a live transcription connection with the given parameters.
func Dial(ctx context.Context, tc config.Transcribe) (*Client, error) {
	q := url.Values{}
	q.Set("model", tc.Model)
	q.Set("language", tc.Language)
	q.Set("encoding", tc.Encoding)
	q.Set("sample_rate", strconv.Itoa(tc.SampleRate))
	q.Set("channels", strconv.Itoa(tc.Channels))
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(tc.EndpointingMS))
	q.Set("vad_events", "true")
	q.Set("smart_format", "true")

	u := url.URL{Scheme: "wss", Host: deepgramHost, Path: "/v1/listen", RawQuery: q.Encode()}

	header := http.Header{}
	header.Set("Authorization", "Token "+tc.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		sendq:  make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// DialTest connects to an arbitrary ws:// URL instead of the production
// endpoint. Tests use it against an in-process server.
func DialTest(ctx context.Context, rawURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		sendq:  make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// Events returns the stream of recognizer events. The channel is closed when
// the connection ends for any reason.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues one audio chunk for transmission. It never blocks: when the
// queue is full the chunk is dropped and counted. Sends after Close are
// dropped silently.
func (c *Client) Send(audio []byte) {
	buf := make([]byte, len(audio))
	copy(buf, audio)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendq <- buf:
	default:
		if n := c.dropped.Add(1); n%50 == 1 {
			logging.Warnw("transcriber send queue full, dropping audio", "dropped_total", n)
		}
	}
}

// Dropped reports how many audio chunks were discarded due to backpressure.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

func (c *Client) isClosed() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.closed
}

// Close tells the recognizer the stream is over and waits briefly for the
// read loop to drain. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.sendq)
		c.sendMu.Unlock()
		select {
		case <-c.done:
		case <-time.After(closeGrace):
			logging.Debugw("transcriber close grace elapsed, forcing connection shutdown")
		}
		_ = c.conn.Close()
	})
}

func (c *Client) writeLoop() {
	for chunk := range c.sendq {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			logging.Debugw("transcriber write failed", "err", err)
			return
		}
	}
	// Queue closed: signal end of stream so buffered audio is finalized.
	_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				logging.Warnw("transcriber connection ended", "err", err)
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debugw("unparseable transcriber frame", "err", err)
			continue
		}

		switch msg.Type {
		case "SpeechStarted":
			c.emit(Event{Kind: KindSpeechStarted})
		case "Results":
			var transcript string
			if len(msg.Channel.Alternatives) > 0 {
				transcript = msg.Channel.Alternatives[0].Transcript
			}
			if msg.IsFinal {
				c.emit(Event{Kind: KindFinal, Transcript: transcript, SpeechFinal: msg.SpeechFinal})
			} else {
				c.emit(Event{Kind: KindInterim, Transcript: transcript})
			}
		case "UtteranceEnd":
			c.emit(Event{Kind: KindUtteranceEnd})
		case "Metadata":
			c.emit(Event{Kind: KindMetadata})
		default:
			logging.Debugw("unknown transcriber event", "type", msg.Type)
		}
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		logging.Warnw("transcriber event channel full, dropping event", "kind", ev.Kind)
	}
}
