package repositories

import (
	"context"
	"errors"
	"fmt"
)

// VoiceProvider abstracts the remote conversational voice service.
// Audio crosses this boundary base64-encoded, the same way clients send it.
type VoiceProvider interface {
	// Exchange sends one utterance to the conversational agent and returns its spoken reply
	Exchange(ctx context.Context, audioData, audioFormat string) (string, error)
	// Synthesize renders text with the agent voice (fallback path)
	Synthesize(ctx context.Context, text string) (string, error)
}

var (
	// ErrVoiceNotConfigured is returned before any network call when credentials are missing.
	ErrVoiceNotConfigured = errors.New("voice provider credentials not configured")
	// ErrNoAudio is returned when the provider succeeds without returning audio.
	ErrNoAudio = errors.New("no audio in provider response")
	// ErrInvalidAudio wraps base64 decode failures of the client payload.
	ErrInvalidAudio = errors.New("invalid audio encoding")
)

// ProviderError carries a non-success provider response for diagnostics.
// It is logged, never shown to clients.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.StatusCode, e.Body)
}

// VoiceErrorKind classifies a provider error into a short label for metrics and logs.
func VoiceErrorKind(err error) string {
	var providerErr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrVoiceNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrNoAudio):
		return "no_audio"
	case errors.Is(err, ErrInvalidAudio):
		return "invalid_audio"
	case errors.As(err, &providerErr):
		return "api_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport_error"
	}
}
