package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/sharedlists-backend/api/middleware"
	"github.com/angelmondragon/sharedlists-backend/api/validators"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
)

func currentUser(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return userID, nil
}

// userAndList resolves the caller and the {listId} route parameter.
func userAndList(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := currentUser(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	listID, err := validators.ParseUUIDParam(r, "listId", "list")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, listID, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
