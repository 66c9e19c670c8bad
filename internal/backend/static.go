package backend

import "context"

// Static answers every prompt with the same text. It keeps the assistant
// usable on hosts with no model runtime at all.
type Static struct {
	Answer string
}

// Name identifies the backend in logs.
func (Static) Name() string { return "static" }

// Complete returns the configured answer, or the not-installed guidance when empty.
func (s Static) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Answer == "" {
		return AnswerNotInstalled, nil
	}
	return s.Answer, nil
}
