package observers

import (
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("  primera  "),
		schema.AssistantMessage("resp", nil),
		nil,
		schema.UserMessage(" segunda "),
		schema.AssistantMessage("resp2", nil),
	}
	if got := lastUserContent(msgs); got != "segunda" {
		t.Errorf("lastUserContent = %q, want segunda", got)
	}
	if got := lastUserContent(nil); got != "" {
		t.Errorf("lastUserContent(nil) = %q", got)
	}
}

func TestHandlersAreBuilt(t *testing.T) {
	if NewAllCallbacks() == nil {
		t.Error("NewAllCallbacks returned nil")
	}
}
