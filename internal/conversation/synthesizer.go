package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voice-diary-lab/internal/logging"
	"github.com/voice-diary-lab/internal/tts"
	"github.com/voice-diary-lab/llm"
)

// SystemPrompt guides the diary companion. Responses are kept short because
// the medium is spoken.
const SystemPrompt = `You are a warm, empathetic AI companion helping the user reflect on their day through conversation. Your role is to:

1. Guide the user through daily reflection in a natural, conversational way
2. Ask thoughtful follow-up questions to help them explore their thoughts and feelings
3. Show genuine interest and empathy in their experiences
4. Help them identify patterns, insights, and things they're grateful for
5. Keep responses concise (2-3 sentences) since this is a voice conversation

Conversation style:
- Warm and supportive, like a caring friend
- Ask one question at a time
- Acknowledge their feelings before asking follow-ups
- Use natural, conversational language (not formal or clinical)
- Gently guide them to reflect deeper when appropriate

Start by warmly greeting them and asking how their day was. As the conversation progresses, explore:
- What happened today (events, interactions)
- How they felt about these experiences
- What they learned or realized
- What they're looking forward to or worried about

Keep the conversation flowing naturally. When they seem ready to wrap up, help them identify one key takeaway or intention for tomorrow.`

// closingPhrases end the conversation when found anywhere in a user
// utterance (case-insensitive).
var closingPhrases = []string{"goodbye", "bye", "that's all", "i'm done", "end", "finish"}

// DiaryEntry is the structured record generated from a finished conversation.
type DiaryEntry struct {
	Title             string   `json:"title"`
	Body              string   `json:"body"`
	Mood              string   `json:"mood"`
	KeyPoints         []string `json:"key_points"`
	GratitudeItems    []string `json:"gratitude_items"`
	FollowUpIntention string   `json:"follow_up_intention"`
	Topics            []string `json:"topics"`
	Sentiment         string   `json:"sentiment"`
}

// Synthesizer turns user utterances into assistant replies and finished
// conversations into diary entries.
type Synthesizer struct {
	LLM llm.Client
	TTS tts.Provider

	// now is swappable for tests of the time-of-day greeting.
	now func() time.Time
}

// NewSynthesizer wires a synthesizer to its generation and speech providers.
func NewSynthesizer(llmClient llm.Client, ttsProvider tts.Provider) *Synthesizer {
	return &Synthesizer{LLM: llmClient, TTS: ttsProvider, now: time.Now}
}

// Greeting produces the opening assistant utterance and records it on the
// context. No generation call is made; the greeting only varies by time of
// day.
func (s *Synthesizer) Greeting(convo *Context) string {
	hour := s.now().Hour()
	var timeGreeting string
	switch {
	case hour < 12:
		timeGreeting = "Good morning"
	case hour < 17:
		timeGreeting = "Good afternoon"
	default:
		timeGreeting = "Good evening"
	}
	greeting := timeGreeting + "! I'm here to help you reflect on your day. How has your day been so far?"
	convo.AddTurn(RoleAssistant, greeting)
	return greeting
}

// GenerateReply appends userText as a user turn and produces the assistant's
// next utterance. When the utterance contains a closing phrase the context is
// marked ending and a short closing remark is generated instead of a normal
// continuation. The reply is appended as an assistant turn before returning;
// on error nothing is appended beyond the user turn.
func (s *Synthesizer) GenerateReply(ctx context.Context, convo *Context, userText string) (string, error) {
	convo.AddTurn(RoleUser, userText)

	var (
		reply string
		err   error
	)
	if containsClosingPhrase(userText) {
		convo.SetEnding()
		reply, err = s.generateClosing(ctx, convo)
	} else {
		reply, err = s.LLM.Generate(ctx, convo.Messages(), llm.Options{
			Temperature: 0.8,
			MaxTokens:   150,
		})
	}
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	convo.AddTurn(RoleAssistant, reply)
	return reply, nil
}

func (s *Synthesizer) generateClosing(ctx context.Context, convo *Context) (string, error) {
	messages := convo.Messages()
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: "Please provide a brief, warm closing that acknowledges what we discussed and wishes them well. Keep it to 2-3 sentences.",
	})
	return s.LLM.Generate(ctx, messages, llm.Options{Temperature: 0.7, MaxTokens: 100})
}

// SynthesizeSpeech converts text to transport-format audio.
func (s *Synthesizer) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	return s.TTS.Synthesize(ctx, text)
}

func containsClosingPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// GenerateDiaryEntry writes a first-person diary entry from the finished
// conversation. It never fails: when the generation cannot be parsed as the
// requested JSON the raw text becomes the entry body with neutral defaults
// for the remaining fields.
func (s *Synthesizer) GenerateDiaryEntry(ctx context.Context, convo *Context) DiaryEntry {
	date := s.now().Format("January 2, 2006")
	prompt := fmt.Sprintf(`Based on the following conversation between a user and their AI diary companion,
generate a personal diary entry written from the USER's perspective (first person).

The diary entry should:
1. Be written as if the user wrote it themselves ("I felt...", "Today I...")
2. Capture the key events, thoughts, and feelings they shared
3. Include any insights or realizations from the conversation
4. Be warm and personal in tone
5. Be 2-4 paragraphs long

Conversation transcript:
%s

Generate the diary entry in JSON format:
{
    "title": "A meaningful title for this entry",
    "body": "The diary entry text written in first person...",
    "mood": "The overall mood (e.g., reflective, grateful, anxious, hopeful, tired)",
    "key_points": ["Key moment or thought 1", "Key moment or thought 2"],
    "gratitude_items": ["Something they're grateful for if mentioned"],
    "follow_up_intention": "Any intention or goal for tomorrow if discussed",
    "topics": ["Main topics or themes"],
    "sentiment": "positive, negative, neutral, or mixed"
}

Return ONLY valid JSON, no markdown.`, convo.Transcript())

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a skilled writer who transforms conversations into personal diary entries."},
		{Role: llm.RoleUser, Content: prompt},
	}

	raw, err := s.LLM.Generate(ctx, messages, llm.Options{Temperature: 0.7, MaxTokens: 800})
	if err != nil {
		logging.Errorw("diary generation failed", "call.id", convo.CallID, "err", err)
		return fallbackDiary(date, "")
	}

	var entry DiaryEntry
	if jerr := json.Unmarshal([]byte(stripCodeFences(raw)), &entry); jerr != nil {
		logging.Warnw("diary entry was not valid JSON, using raw text", "call.id", convo.CallID, "err", jerr)
		return fallbackDiary(date, raw)
	}
	if entry.Title == "" {
		entry.Title = "Reflections - " + date
	}
	return entry
}

func fallbackDiary(date, body string) DiaryEntry {
	return DiaryEntry{
		Title:             "Reflections - " + date,
		Body:              body,
		Mood:              "reflective",
		KeyPoints:         []string{},
		GratitudeItems:    []string{},
		FollowUpIntention: "",
		Topics:            []string{},
		Sentiment:         "neutral",
	}
}

// stripCodeFences unwraps a ```json ... ``` (or bare ```) block when the
// model ignores the no-markdown instruction.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		trimmed = trimmed[idx+len("```json"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		return strings.TrimSpace(trimmed)
	}
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[idx+len("```"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
