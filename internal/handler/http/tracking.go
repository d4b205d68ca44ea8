package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/handler/http/response"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/jwt"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/sse"
)

const streamKeepalive = 30 * time.Second

type TrackingHandler interface {
	Start(w http.ResponseWriter, r *http.Request)
	Stop(w http.ResponseWriter, r *http.Request)
	Position(w http.ResponseWriter, r *http.Request)
	Error(w http.ResponseWriter, r *http.Request)
	State(w http.ResponseWriter, r *http.Request)

	// SSE
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type trackingHandlerImpl struct {
	trackingService tracking.TrackingService
	jwtService      jwt.Service
	hub             *sse.Hub
}

func NewTrackingHandler(trackingService tracking.TrackingService, jwtService jwt.Service, hub *sse.Hub) TrackingHandler {
	return &trackingHandlerImpl{
		trackingService: trackingService,
		jwtService:      jwtService,
		hub:             hub,
	}
}

// Start implements TrackingHandler.
func (h *trackingHandlerImpl) Start(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	state, err := h.trackingService.Start(r.Context(), identity)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Tracking started", state)
}

// Stop implements TrackingHandler.
func (h *trackingHandlerImpl) Stop(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.trackingService.Stop(r.Context(), identity.MemberID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Tracking stopped", nil)
}

// Position implements TrackingHandler.
func (h *trackingHandlerImpl) Position(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req tracking.PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.MemberID = identity.MemberID
	req.ClubID = identity.ClubID

	state, err := h.trackingService.PushPosition(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Accepted(w, state)
}

// Error implements TrackingHandler.
func (h *trackingHandlerImpl) Error(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req tracking.FeedErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.MemberID = identity.MemberID
	req.ClubID = identity.ClubID

	state, err := h.trackingService.PushError(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Accepted(w, state)
}

// State implements TrackingHandler.
func (h *trackingHandlerImpl) State(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	state, err := h.trackingService.GetState(r.Context(), identity.MemberID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, state)
}

// StreamToken generates a short-lived token for SSE connections
func (h *trackingHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(identity)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, tracking.SSETokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream pushes tracking state changes over SSE
func (h *trackingHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// EventSource cannot set headers, so the token comes in the query
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(identity.MemberID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"member_id\":%q}\n\n", identity.MemberID)
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
