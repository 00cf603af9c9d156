// Package explain turns computed results and retrieved order records into
// prompts for the language model.
package explain

import (
	"context"
	"fmt"
	"strings"

	"smartxerox/internal/apperr"
	"smartxerox/internal/domain"
)

const resultPrompt = `You are a professional business analytics assistant.
Explain the result clearly and professionally.

Result:
%s
`

const recordsPrompt = `Answer using only these records:
%s

Question: %s`

// Explainer asks a Generator to phrase facts it is given. It never computes them.
type Explainer struct {
	gen domain.Generator
}

func New(gen domain.Generator) *Explainer {
	return &Explainer{gen: gen}
}

// Explain asks the model to present a deterministic result line.
func (e *Explainer) Explain(ctx context.Context, result string) (string, error) {
	return e.generate(ctx, ResultPrompt(result))
}

// Answer asks the model to answer question from records alone.
func (e *Explainer) Answer(ctx context.Context, question string, records []domain.SearchResult) (string, error) {
	return e.generate(ctx, RecordsPrompt(question, records))
}

func (e *Explainer) generate(ctx context.Context, prompt string) (string, error) {
	out, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return "", apperr.Generation(err)
	}
	return out, nil
}

// ResultPrompt renders the analytics explanation prompt.
func ResultPrompt(result string) string {
	return fmt.Sprintf(resultPrompt, result)
}

// RecordsPrompt renders the grounded question-answering prompt, one record per line.
func RecordsPrompt(question string, records []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(r.Document.Text)
	}
	return fmt.Sprintf(recordsPrompt, b.String(), question)
}
