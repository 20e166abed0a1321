package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeAudioInput    MessageType = "audio_input"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeStatus        MessageType = "status"
	MessageTypeAudioResponse MessageType = "audio_response"
	MessageTypeError         MessageType = "error"
)

// DefaultAudioFormat is assumed when an audio_input omits its format.
const DefaultAudioFormat = "webm"

// Client-facing texts. They never carry provider details.
const (
	StatusReady        = "Voice assistant connected and ready"
	StatusProcessing   = "Processing your voice..."
	ErrInvalidFormat   = "Invalid message format"
	ErrNoAudioData     = "No audio data received"
	ErrVoiceResponse   = "Failed to generate voice response"
	ErrProcessingInput = "Error processing your request"
	ErrVoiceInput      = "Error processing your voice input"
)

// ErrMalformedMessage is returned by DecodeInbound for frames that are not a JSON object
// with well-typed fields.
var ErrMalformedMessage = errors.New("malformed message")

// Inbound is a decoded client envelope: one of *AudioInputMessage, *PingMessage
// or *UnrecognizedMessage.
type Inbound interface {
	inbound()
	Kind() string
}

// AudioInputMessage carries one base64-encoded utterance.
type AudioInputMessage struct {
	Audio  string
	Format string
}

// PingMessage is an application-level liveness probe.
type PingMessage struct{}

// UnrecognizedMessage is any well-formed envelope whose type we do not handle.
type UnrecognizedMessage struct {
	Type string
}

func (*AudioInputMessage) inbound()   {}
func (*PingMessage) inbound()         {}
func (*UnrecognizedMessage) inbound() {}

func (*AudioInputMessage) Kind() string   { return string(MessageTypeAudioInput) }
func (*PingMessage) Kind() string         { return string(MessageTypePing) }
func (*UnrecognizedMessage) Kind() string { return "unrecognized" }

// inboundEnvelope is the wire shape shared by all client messages. Fields stay
// raw so a wrong-typed field never turns a well-formed object into a decode failure.
type inboundEnvelope struct {
	Type   json.RawMessage `json:"type"`
	Audio  json.RawMessage `json:"audio"`
	Format json.RawMessage `json:"format"`
}

// DecodeInbound validates a text frame and maps it to its variant. Only frames
// that are not a JSON object fail; a missing or non-string type is unrecognized.
func DecodeInbound(data []byte) (Inbound, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformedMessage)
	}

	var env inboundEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msgType, ok := rawString(env.Type)
	if !ok {
		return &UnrecognizedMessage{Type: string(env.Type)}, nil
	}

	switch MessageType(msgType) {
	case MessageTypeAudioInput:
		// non-string audio counts as absent
		audio, _ := rawString(env.Audio)
		format, _ := rawString(env.Format)
		if format == "" {
			format = DefaultAudioFormat
		}
		return &AudioInputMessage{Audio: audio, Format: format}, nil
	case MessageTypePing:
		return &PingMessage{}, nil
	default:
		return &UnrecognizedMessage{Type: msgType}, nil
	}
}

// rawString reports the value of a JSON string field and whether it was one.
func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// OutboundMessage is every envelope sent to the client.
type OutboundMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message,omitempty"`
	Audio   string      `json:"audio,omitempty"`
}

// CreateStatusMessage creates a status update
func CreateStatusMessage(message string) *OutboundMessage {
	return &OutboundMessage{Type: MessageTypeStatus, Message: message}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage() *OutboundMessage {
	return &OutboundMessage{Type: MessageTypePong}
}

// CreateAudioResponseMessage wraps base64 audio from the provider
func CreateAudioResponseMessage(audio string) *OutboundMessage {
	return &OutboundMessage{Type: MessageTypeAudioResponse, Audio: audio}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(message string) *OutboundMessage {
	return &OutboundMessage{Type: MessageTypeError, Message: message}
}
