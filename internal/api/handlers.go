package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nitplane/nitplane/internal/airlines"
	"github.com/nitplane/nitplane/internal/auth"
	"github.com/nitplane/nitplane/internal/config"
	"github.com/nitplane/nitplane/internal/feed"
	"github.com/nitplane/nitplane/internal/geo"
	"github.com/nitplane/nitplane/internal/websocket"
	"github.com/nitplane/nitplane/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	feedService *feed.Service
	authService *auth.Service
	airlines    *airlines.Directory
	config      *config.Config
	logger      *logger.Logger
	wsServer    *websocket.Server
	now         func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(feedService *feed.Service, authService *auth.Service, directory *airlines.Directory, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		feedService: feedService,
		authService: authService,
		airlines:    directory,
		config:      config,
		logger:      logger.Named("api-handler"),
		wsServer:    wsServer,
		now:         time.Now,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	LoggedIn  bool       `json:"logged_in"`
	Username  string     `json:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Login verifies credentials and sets the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		h.logger.Error("Failed to log in", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Auth.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.authService.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	WriteJSON(w, http.StatusOK, sessionResponse{
		LoggedIn:  true,
		Username:  session.Username,
		ExpiresAt: &session.ExpiresAt,
	})
}

// Logout deletes the session and clears the cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), sessionID(r, h.config.Auth.CookieName)); err != nil {
		h.logger.Error("Failed to delete session", logger.Error(err))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
}

// GetSession reports whether the caller is logged in
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.authService.Authenticate(r.Context(), sessionID(r, h.config.Auth.CookieName))
	if err != nil {
		WriteJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		LoggedIn:  true,
		Username:  session.Username,
		ExpiresAt: &session.ExpiresAt,
	})
}

// GetHealth returns the feed status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	lastFetch, live := h.feedService.GetStatus()

	response := map[string]interface{}{
		"status":     "ok",
		"live":       live,
		"last_fetch": lastFetch,
		"ws_clients": h.wsServer.ClientCount(),
	}
	if latest := h.feedService.Latest(); latest != nil {
		response["mode"] = latest.Mode
		response["flight_count"] = latest.Count
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]interface{}{
		"feed": map[string]interface{}{
			"fetch_interval_seconds": h.config.Feed.FetchIntervalSecs,
			"proximity_filter":       h.config.Feed.ProximityEnabled(),
			"radius_km":              h.config.Feed.RadiusKm,
			"max_flights":            h.config.Feed.MaxFlights,
		},
		"station": map[string]interface{}{
			"latitude":                 h.config.Station.Latitude,
			"longitude":                h.config.Station.Longitude,
			"location_refresh_minutes": h.config.Station.LocationRefreshMinutes,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetFlights returns the latest fetch result
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	result := h.feedService.Latest()
	if result == nil {
		writeError(w, http.StatusServiceUnavailable, "No flight data yet")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type referenceResponse struct {
	Latitude            float64        `json:"latitude"`
	Longitude           float64        `json:"longitude"`
	OverrideActive      bool           `json:"override_active"`
	MagneticDeclination float64        `json:"magnetic_declination"`
	Station             geo.Coordinate `json:"station"`
}

// GetReference returns the effective reference point
func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.referenceResponse())
}

func (h *Handler) referenceResponse() referenceResponse {
	ref := h.feedService.Reference()
	return referenceResponse{
		Latitude:            ref.Latitude,
		Longitude:           ref.Longitude,
		OverrideActive:      h.feedService.ReferenceOverridden(),
		MagneticDeclination: geo.MagneticDeclination(ref, h.now()),
		Station:             h.feedService.Station(),
	}
}

// SetReference sets or clears the reference override. Both coordinates set to
// null clear it; missing keys are rejected.
func (h *Handler) SetReference(w http.ResponseWriter, r *http.Request) {
	var req map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to parse reference request", logger.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	rawLat, hasLat := req["latitude"]
	rawLon, hasLon := req["longitude"]
	if !hasLat || !hasLon {
		writeError(w, http.StatusBadRequest, "Both latitude and longitude are required")
		return
	}

	var lat, lon *float64
	if err := json.Unmarshal(rawLat, &lat); err != nil {
		writeError(w, http.StatusBadRequest, "Latitude must be a number or null")
		return
	}
	if err := json.Unmarshal(rawLon, &lon); err != nil {
		writeError(w, http.StatusBadRequest, "Longitude must be a number or null")
		return
	}

	switch {
	case lat == nil && lon == nil:
		h.feedService.ClearReference()
	case lat == nil || lon == nil:
		writeError(w, http.StatusBadRequest, "Both latitude and longitude are required")
		return
	default:
		if err := h.feedService.SetReference(*lat, *lon); err != nil {
			writeError(w, http.StatusBadRequest, "Latitude must be within [-90,90] and longitude within [-180,180]")
			return
		}
		if session, ok := SessionFromContext(r.Context()); ok {
			h.logger.Debug("Reference set via API", logger.String("username", session.Username))
		}
	}

	WriteJSON(w, http.StatusOK, h.referenceResponse())
}

// ClearReference reverts to the station reference
func (h *Handler) ClearReference(w http.ResponseWriter, r *http.Request) {
	h.feedService.ClearReference()
	WriteJSON(w, http.StatusOK, h.referenceResponse())
}

// GetAirline returns airline display data for a callsign
func (h *Handler) GetAirline(w http.ResponseWriter, r *http.Request) {
	callsign := chi.URLParam(r, "callsign")

	airline, ok := h.airlines.Lookup(callsign)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown airline")
		return
	}

	WriteJSON(w, http.StatusOK, airlineResponse{
		Airline: airline,
		LogoURL: h.airlines.LogoURL(callsign),
	})
}

type airlineResponse struct {
	airlines.Airline
	LogoURL string `json:"logo_url,omitempty"`
}

// ListAirlines returns the whole airline directory
func (h *Handler) ListAirlines(w http.ResponseWriter, r *http.Request) {
	all := h.airlines.All()
	out := make([]airlineResponse, 0, len(all))
	for _, a := range all {
		out = append(out, airlineResponse{Airline: a, LogoURL: h.airlines.LogoURL(a.Code)})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"airlines": out,
		"count":    len(out),
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
