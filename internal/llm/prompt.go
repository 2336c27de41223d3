// Package llm holds the language model backends used by the chat resolver:
// the hosted Gemini model and a local OpenAI-compatible model.
package llm

import (
	"fmt"
	"strings"

	"github.com/liliang-cn/agriassist/internal/domain"
)

// Request is one generation request for either model
type Request struct {
	Message     string
	Context     string
	Language    string
	UserContext string
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"bn": "Bengali",
	"ta": "Tamil",
	"te": "Telugu",
	"mr": "Marathi",
	"gu": "Gujarati",
	"kn": "Kannada",
	"pa": "Punjabi",
}

// SystemInstruction returns the assistant persona for the given language code
func SystemInstruction(language string) string {
	name, ok := languageNames[language]
	if !ok {
		name = languageNames["en"]
	}

	return fmt.Sprintf(`You are a friendly insurance helper for farmers and rural families.
Use simple words and short sentences. Keep the answer under 120 words.
Talk only about insurance, farming risk and government schemes. If asked about
something else, gently bring the talk back to insurance.
Always reply in %s.
End your answer with exactly one short question that helps you understand the
user's situation better.`, name)
}

// BuildContext formats history as "role: content" lines, oldest first,
// keeping at most the last window messages.
func BuildContext(history []*domain.Message, window int) string {
	if window <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// userTurn renders the context, user background and question as one user message
func userTurn(req Request) string {
	var b strings.Builder
	if req.UserContext != "" {
		fmt.Fprintf(&b, "About the user: %s\n\n", req.UserContext)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", req.Context)
	}
	fmt.Fprintf(&b, "user: %s", req.Message)
	return b.String()
}

// flatPrompt renders the whole request as a single prompt for completion-style models
func flatPrompt(req Request) string {
	return SystemInstruction(req.Language) + "\n\n" + userTurn(req) + "\nassistant:"
}
