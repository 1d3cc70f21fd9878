package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/talentbase/hrgraph/llm"
)

const answerPrompt = `You are a recruiting assistant answering questions about a candidate database.
Use ONLY the context below. If the context does not contain the answer, say so.
Candidate résumés may be written in English or Portuguese; answer in the language of the question.

CONTEXT:
%s

QUESTION: %s

ANSWER:`

// RAG is the answer stage: it turns retrieved context and a question
// into a single completion call.
type RAG struct {
	chat llm.Provider
}

// NewRAG binds the answer stage to a chat provider.
func NewRAG(chat llm.Provider) *RAG {
	return &RAG{chat: chat}
}

// Answer retrieves context for the question and asks the completion
// model once. A completion failure is fatal to the request.
func (r *RAG) Answer(ctx context.Context, question string, retriever Retriever, k int) (string, error) {
	items, err := retriever.Retrieve(ctx, question, k)
	if err != nil {
		return "", err
	}
	return r.AnswerWith(ctx, question, items)
}

// AnswerWith runs the completion stage over already-retrieved context.
func (r *RAG) AnswerWith(ctx context.Context, question string, items []ContextItem) (string, error) {
	if len(items) == 0 {
		return "", ErrNoContext
	}

	prompt := fmt.Sprintf(answerPrompt, BuildContext(items), question)

	resp, err := r.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.0,
	})
	if err != nil {
		return "", fmt.Errorf("answer completion: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// BuildContext renders retrieved items into the prompt context block.
// Expanded profiles serialize their aggregates; every item carries its
// source chunk text so the model keeps the semantic grounding even when
// the graph had nothing to add.
func BuildContext(items []ContextItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		p := item.Profile
		if p != nil && p.Name != "" {
			fmt.Fprintf(&b, "Candidate: %s\n", p.Name)
			if len(p.WorkHistory) > 0 {
				b.WriteString("Work history:\n")
				for _, w := range p.WorkHistory {
					b.WriteString("  - " + formatWork(w.Organization, w.StartDate, w.EndDate) + "\n")
				}
			}
			if len(p.Competencies) > 0 {
				b.WriteString("Competencies:\n")
				for _, c := range p.Competencies {
					if c.Years > 0 {
						fmt.Fprintf(&b, "  - %s (%d years)\n", c.Name, c.Years)
					} else {
						fmt.Fprintf(&b, "  - %s\n", c.Name)
					}
				}
			}
		}
		b.WriteString("Source excerpt:\n")
		b.WriteString(item.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func formatWork(org, start, end string) string {
	switch {
	case start == "" && end == "":
		return org
	case end == "":
		return fmt.Sprintf("%s (since %s)", org, start)
	case start == "":
		return fmt.Sprintf("%s (until %s)", org, end)
	default:
		return fmt.Sprintf("%s (%s to %s)", org, start, end)
	}
}
