// Package backend abstracts the local text-completion service that answers
// helpdesk questions.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/miradorstack/helpdesk/internal/utils"
)

// Completer turns a prompt into an answer. Implementations must honour ctx
// cancellation so callers can bound the call with a timeout.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Named is implemented by completers that report a label for logs and errors.
type Named interface {
	Name() string
}

// DefaultSystemPrompt frames the model as a tier 1 offline support agent.
const DefaultSystemPrompt = "You are an IT helpdesk assistant (Tier 1 support agent). " +
	"Provide clear, step-by-step troubleshooting instructions for common technical issues. " +
	"Your answers must not rely on any cloud or internet-based services. Never ask the user to go online. " +
	"Be concise and polite, and always include a check-in question at the end to see if the instructions helped."

// Failure reasons reported on BackendFailure.
const (
	ReasonNotInstalled = "not_installed"
	ReasonTimeout      = "timeout"
	ReasonError        = "error"
)

// Placeholder answers stored when the backend cannot produce one.
const (
	AnswerNoResponse   = "I'm sorry, I don't have a response at the moment."
	AnswerNotInstalled = "It appears the local language model is not installed. Please ask your IT administrator " +
		"to install an Ollama-compatible model. In the meantime, refer to internal troubleshooting guides or contact IT directly."
	AnswerTimeout = "The local language model took too long to respond. Your request has been logged; " +
		"please contact your IT staff for assistance."
	AnswerError = "I'm sorry, I couldn't generate a response because the local model encountered an error. " +
		"Please contact your IT staff for assistance."
)

// ErrNotInstalled marks a backend whose runtime is absent on this host.
var ErrNotInstalled = errors.New("completion runtime not installed")

// BuildPrompt wraps question in the instruction template. An empty system
// prompt uses DefaultSystemPrompt.
func BuildPrompt(system, question string) string {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	return fmt.Sprintf("%s\nUser: %s\nAssistant:", system, strings.TrimSpace(question))
}

// Resolve asks c for an answer and always returns a non-empty one. When the
// backend fails, the answer is a fixed placeholder and failure describes why.
func Resolve(ctx context.Context, c Completer, prompt string, timeout time.Duration) (answer string, failure error) {
	if c == nil {
		return AnswerNotInstalled, &utils.BackendFailure{Backend: "none", Reason: ReasonNotInstalled}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := c.Complete(ctx, prompt)
	if err != nil {
		reason := failureReason(ctx, err)
		return placeholderFor(reason), &utils.BackendFailure{Backend: nameOf(c), Reason: reason, Err: err}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return AnswerNoResponse, nil
	}
	return out, nil
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrNotInstalled), errors.Is(err, exec.ErrNotFound):
		return ReasonNotInstalled
	default:
		return ReasonError
	}
}

func placeholderFor(reason string) string {
	switch reason {
	case ReasonNotInstalled:
		return AnswerNotInstalled
	case ReasonTimeout:
		return AnswerTimeout
	default:
		return AnswerError
	}
}

func nameOf(c Completer) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}
