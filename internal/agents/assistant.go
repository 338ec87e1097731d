package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Assistant answers free-form chat messages, managing the watch list via tools.
type Assistant struct {
	llm      LLMClient
	executor ToolExecutorInterface
	log      zerolog.Logger
}

// NewAssistant creates a chat assistant.
func NewAssistant(llm LLMClient, executor ToolExecutorInterface, log zerolog.Logger) *Assistant {
	return &Assistant{
		llm:      llm,
		executor: executor,
		log:      log.With().Str("component", "assistant").Logger(),
	}
}

const assistantFallback = "Sorry, I could not process that request right now. Try /help for the available commands."

// Reply returns the assistant's answer. Failures produce a polite fallback.
func (a *Assistant) Reply(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return assistantFallback
	}

	resp, err := a.llm.CompleteWithTools(ctx, assistantPrompt, message, GetToolDefinitions(), a.executor)
	if err != nil {
		a.log.Error().Err(err).Msg("Assistant completion failed")
		return assistantFallback
	}
	if strings.TrimSpace(resp) == "" {
		return assistantFallback
	}
	return resp
}
