// Package llm talks to the completion service used for intent analysis and
// casual replies. Model output is untrusted input: callers extract and
// validate JSON with ExtractJSON before using any field.
package llm

import (
	"context"
	"errors"
)

var (
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNoJSON        = errors.New("llm: no json object in response")
)

// Completer returns the model's text answer for a system instruction and a
// user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
