package gtm

import (
	"context"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/repository"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// maxTurns bounds the conversation history kept by a Session; older turns
// are summarized once it is exceeded
const maxTurns = 20

// Turn is one message of a status conversation
type Turn struct {
	Role string
	Text string
}

// Status summarizes workspace progress with the LLM
func (u *UseCase) Status(ctx context.Context) (string, error) {
	return u.ask(ctx, nil, "")
}

func (u *UseCase) ask(ctx context.Context, history []Turn, question string) (string, error) {
	ws, err := repository.LoadWorkspace(ctx, u.repo)
	if err != nil {
		return "", err
	}

	prompt, err := renderStatus(ws, history, question)
	if err != nil {
		return "", err
	}

	answer, err := u.llm.Generate(ctx, prompt, u.profile(agent.Root)...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate status")
	}
	return strings.TrimSpace(answer), nil
}

func renderStatus(ws *model.Workspace, history []Turn, question string) (string, error) {
	return render("status.md", map[string]any{
		"CustomerCount":  len(ws.Customers),
		"Segmentation":   ws.Segmentation,
		"OnboardingDocs": ws.OnboardingDocs,
		"EmailsSent":     ws.EmailsSent,
		"FollowupRuns":   ws.FollowupRuns,
		"History":        history,
		"Question":       question,
	})
}

// Session is a progress conversation with the root agent. The workspace is
// reloaded on every question.
type Session struct {
	uc      *UseCase
	history []Turn
}

func (u *UseCase) NewSession() *Session {
	return &Session{uc: u}
}

// Send answers message and appends both to the history
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	answer, err := s.uc.ask(ctx, s.history, message)
	if err != nil {
		return "", err
	}

	s.history = append(s.history, Turn{Role: "user", Text: message}, Turn{Role: "assistant", Text: answer})
	if len(s.history) > maxTurns {
		s.history = s.shrink(ctx)
	}
	return answer, nil
}

// shrink folds old turns into a summary. When summarizing fails the oldest
// turns are dropped instead.
func (s *Session) shrink(ctx context.Context) []Turn {
	compressed, err := s.uc.compressHistory(ctx, s.history)
	if err == nil && len(compressed) <= maxTurns {
		return compressed
	}
	if err != nil {
		logging.From(ctx).Warn("failed to compress chat history, truncating", "error", err)
	}
	return s.history[len(s.history)-maxTurns:]
}

// History returns the kept turns, oldest first
func (s *Session) History() []Turn {
	return s.history
}
