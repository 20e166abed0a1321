package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestDecodeInbound_AudioInput(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantAudio  string
		wantFormat string
	}{
		{
			name:       "explicit format",
			message:    `{"type": "audio_input", "audio": "SGVsbG8=", "format": "wav"}`,
			wantAudio:  "SGVsbG8=",
			wantFormat: "wav",
		},
		{
			name:       "default format",
			message:    `{"type": "audio_input", "audio": "SGVsbG8="}`,
			wantAudio:  "SGVsbG8=",
			wantFormat: "webm",
		},
		{
			name:       "missing audio still decodes",
			message:    `{"type": "audio_input"}`,
			wantFormat: "webm",
		},
		{
			name:       "null audio",
			message:    `{"type": "audio_input", "audio": null}`,
			wantFormat: "webm",
		},
		{
			name:       "non-string audio counts as absent",
			message:    `{"type": "audio_input", "audio": 42, "format": "ogg"}`,
			wantFormat: "ogg",
		},
		{
			name:       "non-string format falls back to default",
			message:    `{"type": "audio_input", "audio": "SGVsbG8=", "format": {"codec": "opus"}}`,
			wantAudio:  "SGVsbG8=",
			wantFormat: "webm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DecodeInbound([]byte(tt.message))
			if err != nil {
				t.Fatalf("DecodeInbound() error = %v", err)
			}
			msg, ok := result.(*AudioInputMessage)
			if !ok {
				t.Fatalf("Expected *AudioInputMessage, got %T", result)
			}
			if msg.Audio != tt.wantAudio {
				t.Errorf("Audio = %q, want %q", msg.Audio, tt.wantAudio)
			}
			if msg.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", msg.Format, tt.wantFormat)
			}
		})
	}
}

func TestDecodeInbound_Ping(t *testing.T) {
	for _, msg := range []string{
		`{"type":"ping","timestamp":1700000000}`,
		`{"type":"ping","audio":5}`,
		`{"type":"ping","format":{}}`,
	} {
		result, err := DecodeInbound([]byte(msg))
		if err != nil {
			t.Fatalf("DecodeInbound(%s) error = %v", msg, err)
		}
		if _, ok := result.(*PingMessage); !ok {
			t.Errorf("DecodeInbound(%s) = %T, want *PingMessage", msg, result)
		}
		if result.Kind() != "ping" {
			t.Errorf("Kind() = %q", result.Kind())
		}
	}
}

func TestDecodeInbound_Unrecognized(t *testing.T) {
	for _, msg := range []string{
		`{"type": "listening_start"}`,
		`{"audio": "SGVsbG8="}`,
		`{}`,
		`{"type": 42}`,
		`{"type": null}`,
		`{"type": ["ping"]}`,
	} {
		result, err := DecodeInbound([]byte(msg))
		if err != nil {
			t.Errorf("DecodeInbound(%s) error = %v", msg, err)
			continue
		}
		if _, ok := result.(*UnrecognizedMessage); !ok {
			t.Errorf("DecodeInbound(%s) = %T, want *UnrecognizedMessage", msg, result)
		}
	}
}

func TestDecodeInbound_InvalidJSON(t *testing.T) {
	invalidMessages := []string{
		`{invalid json}`,
		`{"type": "audio_input", "audio":}`,
		``,
		`null`,
		`[{"type":"ping"}]`,
		`"ping"`,
		`42`,
	}

	for i, msg := range invalidMessages {
		t.Run(fmt.Sprintf("invalid_json_%d", i), func(t *testing.T) {
			_, err := DecodeInbound([]byte(msg))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestOutboundWireFormat(t *testing.T) {
	tests := []struct {
		name    string
		message *OutboundMessage
		want    string
	}{
		{name: "status", message: CreateStatusMessage(StatusReady), want: `{"type":"status","message":"Voice assistant connected and ready"}`},
		{name: "pong", message: CreatePongMessage(), want: `{"type":"pong"}`},
		{name: "audio", message: CreateAudioResponseMessage("QQ=="), want: `{"type":"audio_response","audio":"QQ=="}`},
		{name: "error", message: CreateErrorMessage(ErrNoAudioData), want: `{"type":"error","message":"No audio data received"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.message)
			if err != nil {
				t.Fatalf("Failed to marshal message: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}
