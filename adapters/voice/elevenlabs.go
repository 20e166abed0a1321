package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/truthlens/server/domain/repositories"
	"github.com/satriahrh/truthlens/server/internal/metrics"
)

const (
	defaultAPIBaseURL    = "https://api.elevenlabs.io/v1"
	defaultVoiceID       = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	conversationModelID  = "flash_v2.5"             // low-latency model
	synthesisModelID     = "eleven_multilingual_v2" // fallback TTS model
	defaultHTTPTimeout   = 60 * time.Second
	maxErrorBodyBytes    = 4096
	operationExchange    = "exchange"
	operationSynthesize  = "synthesize"
	defaultAudioFormat   = "webm"
	conversationEndpoint = "/convai/conversation"
)

// VoiceSettings represents voice settings for Eleven Labs API
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// GenerationConfig controls how the provider chunks generated speech.
type GenerationConfig struct {
	ChunkLengthSchedule []int `json:"chunk_length_schedule"`
}

// ConversationRequest is the payload of the conversational endpoint.
type ConversationRequest struct {
	AgentID          string           `json:"agent_id"`
	Audio            string           `json:"audio"`
	AudioFormat      string           `json:"audio_format"`
	ModelID          string           `json:"model_id"`
	VoiceSettings    VoiceSettings    `json:"voice_settings"`
	GenerationConfig GenerationConfig `json:"generation_config"`
}

// SynthesisRequest is the payload of the text-to-speech endpoint.
type SynthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type conversationResponse struct {
	Audio *string `json:"audio"`
}

// Fixed rendering parameters shared by both endpoints.
var (
	defaultVoiceSettings = VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.8,
		Style:           0.3,
		UseSpeakerBoost: true,
	}
	defaultChunkSchedule = []int{120, 160, 250, 290}
)

// Config holds credentials and endpoint for the client.
// Required fields for Exchange: APIKey, AgentID. Synthesize needs APIKey only.
type Config struct {
	APIKey     string
	AgentID    string
	APIBaseURL string // default "https://api.elevenlabs.io/v1"
	HTTPClient *http.Client
}

// Client implements VoiceProvider on top of the ElevenLabs HTTP API.
// It keeps no per-call state and is safe for concurrent use.
type Client struct {
	apiKey     string
	agentID    string
	apiBaseURL string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// Ensure Client implements the VoiceProvider interface
var _ repositories.VoiceProvider = (*Client)(nil)

// NewClient creates a client. Missing credentials are reported once here and
// surface as repositories.ErrVoiceNotConfigured on each call.
func NewClient(config Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	if config.APIKey == "" {
		logger.Warn("ELEVENLABS_API_KEY not set, voice responses disabled")
	}
	if config.AgentID == "" {
		logger.Warn("ELEVENLABS_AGENT_ID not set, conversational exchange disabled")
	}

	return &Client{
		apiKey:     config.APIKey,
		agentID:    config.AgentID,
		apiBaseURL: apiBaseURL,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// Exchange posts one base64 utterance to the conversational endpoint and returns
// the base64 audio reply.
func (c *Client) Exchange(ctx context.Context, audioData, audioFormat string) (audio string, err error) {
	defer c.observe(operationExchange, time.Now(), &err)

	if c.apiKey == "" || c.agentID == "" {
		return "", repositories.ErrVoiceNotConfigured
	}
	if audioFormat == "" {
		audioFormat = defaultAudioFormat
	}

	// The provider takes the base64 string as-is; decoding only validates it.
	if _, err := base64.StdEncoding.DecodeString(audioData); err != nil {
		return "", fmt.Errorf("elevenlabs: %w: %v", repositories.ErrInvalidAudio, err)
	}

	request := ConversationRequest{
		AgentID:          c.agentID,
		Audio:            audioData,
		AudioFormat:      audioFormat,
		ModelID:          conversationModelID,
		VoiceSettings:    defaultVoiceSettings,
		GenerationConfig: GenerationConfig{ChunkLengthSchedule: defaultChunkSchedule},
	}

	resp, err := c.post(ctx, c.apiBaseURL+conversationEndpoint, "application/json", request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded conversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	if decoded.Audio == nil {
		return "", repositories.ErrNoAudio
	}

	return *decoded.Audio, nil
}

// Synthesize renders text through the text-to-speech endpoint and returns the
// audio bytes base64-encoded. The agent id doubles as voice id when set.
func (c *Client) Synthesize(ctx context.Context, text string) (audio string, err error) {
	defer c.observe(operationSynthesize, time.Now(), &err)

	if c.apiKey == "" {
		return "", repositories.ErrVoiceNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("elevenlabs: text cannot be empty")
	}

	voiceID := c.agentID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	request := SynthesisRequest{
		Text:          text,
		ModelID:       synthesisModelID,
		VoiceSettings: defaultVoiceSettings,
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.apiBaseURL, voiceID)
	resp, err := c.post(ctx, url, "audio/mpeg", request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: read audio: %w", err)
	}

	return base64.StdEncoding.EncodeToString(audioBytes), nil
}

// post sends a JSON request and returns the response only when it is a 200.
// Any other status is drained into a *repositories.ProviderError.
func (c *Client) post(ctx context.Context, url, accept string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	c.logger.Debug("Sending request to Eleven Labs API", zap.String("url", url))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &repositories.ProviderError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	return resp, nil
}

func (c *Client) observe(operation string, start time.Time, err *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveProvider(operation, repositories.VoiceErrorKind(*err), time.Since(start))
}
