// Package llm provides chat-completion backends for the classifiers.
package llm

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat-completion backend. Classifiers depend only on this
// interface; which vendor serves a request is decided once at wiring time.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string

	// Complete sends the conversation and returns the assistant's reply.
	Complete(ctx context.Context, messages []Message) (string, error)
}
