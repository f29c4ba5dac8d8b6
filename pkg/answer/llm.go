package answer

import (
	"context"
	"fmt"
	"strings"

	"compliance-navigator-be/pkg/llm"
)

// LLMService answers straight from a language model, without retrieval. It is
// meant for local development; it never reports matches.
type LLMService struct {
	Provider llm.LLMProvider
}

var _ Service = (*LLMService)(nil)

func (s *LLMService) Ask(ctx context.Context, r Request) (*Response, error) {
	text, err := s.Provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt(r)},
		{Role: "user", Content: r.Question},
	}, llm.WithTemperature(0.1), llm.WithMaxTokens(r.MaxWords*2))
	if err != nil {
		return nil, err
	}
	return &Response{AnswerText: strings.TrimSpace(text), Matches: []Match{}}, nil
}

func systemPrompt(r Request) string {
	var b strings.Builder
	b.WriteString("<task>\n")
	fmt.Fprintf(&b, "Answer questions about the regulatory code %q.\n", r.DocumentReference)
	b.WriteString("</task>\n\n")
	b.WriteString("<guidelines>\n")
	if r.MaxWords > 0 {
		fmt.Fprintf(&b, "- Answer in at most %d words\n", r.MaxWords)
	}
	b.WriteString("- Cite every clause you rely on as \"Clause <number>\", e.g. Clause 19.1\n")
	b.WriteString("- If you do not know which clause applies, say so instead of guessing\n")
	b.WriteString("</guidelines>\n")
	return b.String()
}
