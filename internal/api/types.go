package api

// HealthResponse represents the payload of the health check
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	VoiceAssistant string `json:"voice_assistant"`
	ActiveSessions int    `json:"active_sessions"`
}

// AnalyzeResponse represents the fixed result of the analysis placeholder
type AnalyzeResponse struct {
	FactualAccuracy int    `json:"factual_accuracy"`
	Bias            string `json:"bias"`
	EmotionalTone   string `json:"emotional_tone"`
	Recommendation  string `json:"recommendation"`
}

// ChatResponse represents the reply of the chat placeholder
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
