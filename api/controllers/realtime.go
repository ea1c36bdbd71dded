package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/sharedlists-backend/api/responses"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
)

// LiveUpgrader is the websocket side of the realtime hub.
type LiveUpgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

// RealtimeConnect hands an authenticated request to the hub for the websocket upgrade.
func RealtimeConnect(hub LiveUpgrader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("realtime"))
			return
		}
		hub.ServeWS(w, r, userID)
	}
}
