package feed

import (
	"context"
	"fmt"

	"github.com/nitplane/nitplane/internal/websocket"
	"github.com/nitplane/nitplane/pkg/logger"
)

// Broadcaster pushes a message to every connected browser
type Broadcaster interface {
	Broadcast(message *websocket.Message)
}

// WebSocketHandler handles incoming WebSocket messages for flight data and
// forwards service updates to the hub
type WebSocketHandler struct {
	service *Service
	logger  *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(service *Service, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		logger:  log.Named("feed-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeFlightsRequest:
		return h.handleFlightsRequest(client)
	case websocket.MessageTypeReferenceUpdate:
		return h.handleReferenceUpdate(data)
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

func (h *WebSocketHandler) handleFlightsRequest(client *websocket.Client) error {
	result := h.service.Latest()
	if result == nil {
		return fmt.Errorf("no flight data yet")
	}

	if !client.SendMessage(ResultMessage(websocket.MessageTypeFlightsSnapshot, result)) {
		h.logger.Debug("Failed to queue snapshot for client")
	}
	return nil
}

// handleReferenceUpdate accepts {"latitude": .., "longitude": ..}. Both keys set
// to null clear the override; missing keys are an error.
func (h *WebSocketHandler) handleReferenceUpdate(data map[string]any) error {
	rawLat, hasLat := data["latitude"]
	rawLon, hasLon := data["longitude"]
	if !hasLat || !hasLon {
		return fmt.Errorf("reference_update needs latitude and longitude")
	}

	if rawLat == nil && rawLon == nil {
		h.service.ClearReference()
		return nil
	}

	lat, latOK := rawLat.(float64)
	lon, lonOK := rawLon.(float64)
	if !latOK || !lonOK {
		return fmt.Errorf("reference_update needs numeric latitude and longitude")
	}
	return h.service.SetReference(lat, lon)
}

// Run forwards every service update to the hub until ctx is done. It is the
// single consumer of Service.Updates.
func (h *WebSocketHandler) Run(ctx context.Context, hub Broadcaster) {
	updates := h.service.Updates()
	for {
		select {
		case result := <-updates:
			hub.Broadcast(ResultMessage(websocket.MessageTypeFlightsUpdate, result))
		case <-ctx.Done():
			return
		}
	}
}

// ResultMessage wraps a fetch result in a WebSocket message
func ResultMessage(messageType string, result *FetchResult) *websocket.Message {
	return &websocket.Message{
		Type: messageType,
		Data: map[string]any{
			"mode":       result.Mode,
			"flights":    result.Flights,
			"count":      result.Count,
			"reference":  result.Reference,
			"fetched_at": result.FetchedAt,
			"reason":     result.Reason,
		},
	}
}
