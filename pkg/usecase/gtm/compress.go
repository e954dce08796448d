package gtm

import (
	"context"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// compressionRatio is the share of history bytes folded into a summary
	compressionRatio = 0.7

	roleSummary = "summary"
)

var errNothingToCompress = goerr.New("insufficient history to compress")

func turnSize(t Turn) int {
	return len(t.Role) + len(t.Text)
}

// compressHistory replaces the oldest turns, up to compressionRatio of the
// total size, with a single summary turn.
func (u *UseCase) compressHistory(ctx context.Context, history []Turn) ([]Turn, error) {
	total := 0
	for _, t := range history {
		total += turnSize(t)
	}
	threshold := int(float64(total) * compressionRatio)

	cut, cumulative := 0, 0
	for i, t := range history {
		cumulative += turnSize(t)
		if cumulative >= threshold {
			cut = i + 1
			break
		}
	}
	if cut < 2 || cut >= len(history) {
		return nil, errNothingToCompress
	}

	prompt, err := render("summarize.md", map[string]any{"Turns": history[:cut]})
	if err != nil {
		return nil, err
	}
	summary, err := u.llm.Generate(ctx, prompt, u.profile(agent.Root)...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize history", goerr.V("turns", cut))
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, goerr.New("empty summary generated", goerr.V("turns", cut))
	}

	compressed := make([]Turn, 0, len(history)-cut+1)
	compressed = append(compressed, Turn{Role: roleSummary, Text: summary})
	return append(compressed, history[cut:]...), nil
}
