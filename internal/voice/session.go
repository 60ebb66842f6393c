package voice

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voice-diary-lab/internal/config"
	"github.com/voice-diary-lab/internal/conversation"
	"github.com/voice-diary-lab/internal/logging"
	"github.com/voice-diary-lab/internal/stt"
)

// apologyText is spoken when reply generation or synthesis fails. It is not
// recorded as a conversation turn.
const apologyText = "I'm sorry, I had trouble understanding. Could you please repeat that?"

// diaryTimeout bounds post-call diary generation and persistence.
const diaryTimeout = 60 * time.Second

// wsConn is the subset of the media WebSocket the session uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// transcriber is the subset of the live STT client the session uses.
type transcriber interface {
	Events() <-chan stt.Event
	Send(audio []byte)
	Close()
}

// JournalStore persists finished conversations. Optional; nil disables
// persistence.
type JournalStore interface {
	SaveJournal(ctx context.Context, callID string, convo *conversation.Context, entry conversation.DiaryEntry) error
}

// Handler upgrades telephony media stream connections and runs one Session
// per call.
type Handler struct {
	Synth      *conversation.Synthesizer
	Registry   *conversation.Registry
	Store      JournalStore
	Transcribe config.Transcribe

	// DialTranscriber overrides the production recognizer dial; tests point
	// it at an in-process server.
	DialTranscriber func(ctx context.Context) (transcriber, error)

	upgrader websocket.Upgrader
}

// NewHandler builds the media stream handler.
func NewHandler(synth *conversation.Synthesizer, registry *conversation.Registry, store JournalStore, tc config.Transcribe) *Handler {
	h := &Handler{
		Synth:      synth,
		Registry:   registry,
		Store:      store,
		Transcribe: tc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Telephony providers connect server-to-server without an Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	h.DialTranscriber = func(ctx context.Context) (transcriber, error) {
		return stt.Dial(ctx, h.Transcribe)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	s := newSession(h, conn)
	s.run(r.Context())
}

// Session is one live call: the receive loop, the transcriber event loop,
// and at most one in-flight response task.
type Session struct {
	handler *Handler
	conn    wsConn
	writeMu sync.Mutex

	id        string
	streamSid string
	callSid   string

	state atomic.Int32
	cs    callState
	convo *conversation.Context
	trans transcriber

	// respWG tracks the in-flight response task so shutdown can wait for it.
	respWG    sync.WaitGroup
	diaryOnce sync.Once
	closeOnce sync.Once
}

func newSession(h *Handler, conn wsConn) *Session {
	s := &Session{
		handler: h,
		conn:    conn,
		id:      uuid.NewString(),
	}
	s.state.Store(int32(stateConnecting))
	return s
}

func (s *Session) setState(st sessionState) {
	prev := sessionState(s.state.Swap(int32(st)))
	if prev != st {
		logging.Debugw("session state change", "session.id", s.id, "from", prev.String(), "to", st.String())
	}
}

func (s *Session) currentState() sessionState { return sessionState(s.state.Load()) }

// run drives the session until the connection ends, then finalizes the call.
func (s *Session) run(ctx context.Context) {
	logging.Infow("media session opened", "session.id", s.id)
	s.receiveLoop(ctx)
	s.finalize()
}

func (s *Session) receiveLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.currentState() != stateClosing && s.currentState() != stateTerminated {
				logging.Warnw("media connection ended", "session.id", s.id, "err", err)
			}
			return
		}

		msg, audio, err := parseInbound(data)
		if err != nil {
			logging.Debugw("bad media frame", "session.id", s.id, "err", err)
			continue
		}

		switch msg.Event {
		case "connected":
			if s.currentState() == stateConnecting {
				s.setState(stateAwaitingStart)
				logging.Debugw("media protocol connected", "session.id", s.id, "protocol", msg.Protocol)
			}
		case "start":
			s.handleStart(ctx, msg)
		case "media":
			s.handleMedia(audio)
		case "stop":
			logging.Infow("caller hung up", append(logging.CallFields(s.callSid, s.streamSid), "session.id", s.id)...)
			return
		default:
			logging.Debugw("unknown media event", "session.id", s.id, "event", msg.Event)
		}
	}
}

func (s *Session) handleStart(ctx context.Context, msg inboundMessage) {
	if s.currentState() != stateAwaitingStart {
		logging.Warnw("start event out of order", "session.id", s.id, "state", s.currentState().String())
		return
	}
	if msg.Start == nil {
		logging.Warnw("start event without payload", "session.id", s.id)
		return
	}
	s.streamSid = msg.Start.StreamSid
	s.callSid = msg.Start.CallSid

	s.convo = conversation.NewContext(s.callSid, conversation.SystemPrompt)
	if !s.handler.Registry.Insert(s.convo) {
		logging.Warnw("duplicate call id, rejecting session", logging.CallFields(s.callSid, s.streamSid)...)
		// Leave the live session's context alone.
		s.convo = nil
		s.shutdown()
		return
	}

	trans, err := s.handler.DialTranscriber(ctx)
	if err != nil {
		logging.Errorw("transcriber dial failed", append(logging.CallFields(s.callSid, s.streamSid), "err", err)...)
		s.handler.Registry.Remove(s.callSid)
		s.convo = nil
		s.shutdown()
		return
	}
	s.trans = trans
	s.setState(stateActive)
	logging.Infow("call started", logging.CallFields(s.callSid, s.streamSid)...)

	go s.transcriberLoop()
	s.startResponseTask(func(taskCtx context.Context) {
		greeting := s.handler.Synth.Greeting(s.convo)
		s.speak(taskCtx, greeting)
	})
}

func (s *Session) handleMedia(audio []byte) {
	if s.currentState() != stateActive {
		return
	}
	// Echo suppression: while the assistant is speaking the inbound leg
	// mostly carries our own audio, so it never reaches the recognizer.
	if s.cs.assistantSpeaking.Load() {
		return
	}
	s.trans.Send(audio)
}

func (s *Session) transcriberLoop() {
	for ev := range s.trans.Events() {
		switch ev.Kind {
		case stt.KindSpeechStarted:
			s.cs.userSpeaking.Store(true)
			// Barge-in: cancel the in-flight response whether it is still
			// generating or already speaking.
			if s.cs.assistantSpeaking.Load() {
				logging.Debugw("barge-in, canceling response", logging.CallFields(s.callSid, s.streamSid)...)
			}
			s.cs.cancelResponse()
		case stt.KindInterim:
			if ev.Transcript != "" {
				logging.Debugw("interim transcript", append(logging.CallFields(s.callSid, s.streamSid), "text", ev.Transcript)...)
			}
		case stt.KindFinal:
			s.cs.appendFinal(ev.Transcript)
			if ev.SpeechFinal {
				s.commitUtterance()
			}
		case stt.KindUtteranceEnd:
			s.commitUtterance()
		case stt.KindMetadata:
		}
	}
	// Mid-session connection loss ends the event stream; the session cannot
	// hear the caller anymore, so it closes. During a normal teardown the
	// state is already past ACTIVE and shutdown is a no-op.
	if s.currentState() == stateActive {
		logging.Warnw("transcriber stream lost, closing session", logging.CallFields(s.callSid, s.streamSid)...)
		s.shutdown()
		return
	}
	logging.Debugw("transcriber event stream ended", logging.CallFields(s.callSid, s.streamSid)...)
}

// commitUtterance turns the buffered transcript into a response task. The
// empty-buffer guard makes back-to-back commit triggers (speech-final plus
// utterance-end) a single commit.
func (s *Session) commitUtterance() {
	if s.currentState() != stateActive {
		return
	}
	utterance := s.cs.takeUtterance()
	if utterance == "" {
		return
	}
	s.cs.userSpeaking.Store(false)
	logging.Infow("utterance committed", append(logging.CallFields(s.callSid, s.streamSid), "text", utterance, "n", s.cs.utteranceCount())...)

	s.startResponseTask(func(taskCtx context.Context) {
		s.respond(taskCtx, utterance)
	})
}

// startResponseTask runs fn as the single in-flight response task, canceling
// any previous one.
func (s *Session) startResponseTask(fn func(ctx context.Context)) {
	taskCtx, cancel := context.WithCancel(context.Background())
	s.cs.setResponseCancel(cancel)
	s.respWG.Add(1)
	go func() {
		defer s.respWG.Done()
		defer cancel()
		fn(taskCtx)
	}()
}

func (s *Session) respond(ctx context.Context, utterance string) {
	reply, err := s.handler.Synth.GenerateReply(ctx, s.convo, utterance)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Errorw("reply generation failed", append(logging.CallFields(s.callSid, s.streamSid), "err", err)...)
		s.speak(ctx, apologyText)
		return
	}

	s.speak(ctx, reply)

	if s.convo.IsEnding() && ctx.Err() == nil {
		logging.Infow("conversation ending", logging.CallFields(s.callSid, s.streamSid)...)
		s.shutdown()
	}
}

// speak synthesizes text and paces it to the caller, holding the
// assistant-speaking flag for the duration.
func (s *Session) speak(ctx context.Context, text string) {
	if text == "" || ctx.Err() != nil {
		return
	}
	audio, err := s.handler.Synth.SynthesizeSpeech(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			logging.Errorw("speech synthesis failed", append(logging.CallFields(s.callSid, s.streamSid), "err", err)...)
		}
		return
	}

	s.cs.assistantSpeaking.Store(true)
	defer s.cs.assistantSpeaking.Store(false)

	sent, err := paceOut(ctx, s, s.streamSid, audio)
	if err != nil {
		logging.Debugw("playback stopped early", append(logging.CallFields(s.callSid, s.streamSid), "frames_sent", sent, "err", err)...)
		return
	}
	logging.Debugw("playback complete", append(logging.CallFields(s.callSid, s.streamSid), "frames_sent", sent)...)
}

// sendFrame implements frameSender over the media WebSocket.
func (s *Session) sendFrame(streamSid string, frame []byte) error {
	data, err := encodeMedia(streamSid, frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// shutdown moves the session toward termination from the session's own side
// (conversation ended, or start failed). The caller-hangup path reaches
// finalize directly when the read loop returns.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.setState(stateClosing)
		// Closing the connection unblocks the receive loop, which runs
		// finalize.
		_ = s.conn.Close()
	})
}

// finalize tears the session down exactly once: stop the response task and
// transcriber, remove the conversation from the registry, and hand it to
// diary generation.
func (s *Session) finalize() {
	s.closeOnce.Do(func() {
		s.setState(stateClosing)
	})
	s.cs.cancelResponse()
	s.respWG.Wait()
	if s.trans != nil {
		s.trans.Close()
	}
	_ = s.conn.Close()

	if s.convo != nil {
		if removed := s.handler.Registry.Remove(s.convo.CallID); removed != nil {
			s.diaryOnce.Do(func() { s.generateDiary(removed) })
		}
	}
	s.setState(stateTerminated)
	logging.Infow("media session closed", append(logging.CallFields(s.callSid, s.streamSid), "session.id", s.id)...)
}

// generateDiary produces the diary entry for a finished call and persists it
// when a store is configured. Calls with no user turns are skipped.
func (s *Session) generateDiary(convo *conversation.Context) {
	hasUserTurn := false
	for _, t := range convo.Turns() {
		if t.Role == conversation.RoleUser {
			hasUserTurn = true
			break
		}
	}
	if !hasUserTurn {
		logging.Infow("no user turns, skipping diary", "call.id", convo.CallID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), diaryTimeout)
	defer cancel()

	entry := s.handler.Synth.GenerateDiaryEntry(ctx, convo)
	logging.Infow("diary entry generated", "call.id", convo.CallID, "title", entry.Title, "mood", entry.Mood)

	if s.handler.Store == nil {
		return
	}
	if err := s.handler.Store.SaveJournal(ctx, convo.CallID, convo, entry); err != nil {
		logging.Errorw("diary persistence failed", "call.id", convo.CallID, "err", err)
	}
}
