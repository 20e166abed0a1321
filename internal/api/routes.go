package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/truthlens/server/internal/websocket"
)

const serviceName = "truthlens-api"

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, voiceEnabled bool, gatherer prometheus.Gatherer, logger *zap.Logger) {
	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/health", func(c echo.Context) error {
		return healthCheck(c, hub, voiceEnabled)
	})

	// Analysis and chat are served by other backends; these keep the
	// frontend contract alive.
	v1.POST("/analyze", func(c echo.Context) error {
		return analyzeText(c, logger)
	})
	v1.POST("/chat", func(c echo.Context) error {
		return chat(c, logger)
	})

	// Voice assistant relay
	e.GET("/ws/voice", hub.HandleWebSocket)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func healthCheck(c echo.Context, hub *websocket.Hub, voiceEnabled bool) error {
	voice := "disabled"
	if voiceEnabled {
		voice = "enabled"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "healthy",
		Service:        serviceName,
		VoiceAssistant: voice,
		ActiveSessions: hub.ActiveCount(),
	})
}

func analyzeText(c echo.Context, logger *zap.Logger) error {
	if err := bindObject(c); err != nil {
		logger.Warn("Failed to bind analyze request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON object",
		})
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{
		FactualAccuracy: 75,
		Bias:            "neutral",
		EmotionalTone:   "balanced",
		Recommendation:  "Cross-reference with additional sources",
	})
}

func chat(c echo.Context, logger *zap.Logger) error {
	if err := bindObject(c); err != nil {
		logger.Warn("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON object",
		})
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response: "This is a placeholder response. Please integrate with your existing chat backend.",
	})
}

// bindObject accepts any JSON object body.
func bindObject(c echo.Context) error {
	var body map[string]any
	return c.Bind(&body)
}
