package conversation

import (
	"strings"
	"testing"
)

func TestNewContextSeedsSystemTurn(t *testing.T) {
	c := NewContext("CA1", "guidance")
	turns := c.Turns()
	if len(turns) != 1 || turns[0].Role != RoleSystem || turns[0].Content != "guidance" {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestTurnsReturnsSnapshot(t *testing.T) {
	c := NewContext("CA1", "guidance")
	snap := c.Turns()
	c.AddTurn(RoleUser, "hello")
	if len(snap) != 1 {
		t.Fatal("snapshot mutated by later append")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestMessagesPreservesOrder(t *testing.T) {
	c := NewContext("CA1", "guidance")
	c.AddTurn(RoleAssistant, "hi there")
	c.AddTurn(RoleUser, "hi")

	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[1].Role != RoleAssistant || msgs[2].Role != RoleUser {
		t.Fatalf("order = %s/%s/%s", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func TestTranscriptOmitsSystemTurn(t *testing.T) {
	c := NewContext("CA1", "guidance")
	c.AddTurn(RoleAssistant, "How was your day?")
	c.AddTurn(RoleUser, "Pretty good.")

	got := c.Transcript()
	want := "AI: How was your day?\nUser: Pretty good."
	if got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}
	if strings.Contains(got, "guidance") {
		t.Error("system turn leaked into transcript")
	}
}

func TestEndingFlag(t *testing.T) {
	c := NewContext("CA1", "guidance")
	if c.IsEnding() {
		t.Fatal("new context already ending")
	}
	c.SetEnding()
	if !c.IsEnding() {
		t.Fatal("SetEnding not observed")
	}
}
