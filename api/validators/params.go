package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
)

// ParseUUIDParam reads a chi URL parameter as a UUID. label names the entity in the error.
func ParseUUIDParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid "+label+" ID").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
