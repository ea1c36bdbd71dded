package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/sharedlists-backend/api/responses"
	"github.com/angelmondragon/sharedlists-backend/api/validators"
	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
)

type createItemRequest struct {
	Name     string  `json:"name" validate:"required,notblank,max=200"`
	Quantity *string `json:"quantity,omitempty" validate:"omitempty,max=50"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type updateItemRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	Quantity *string `json:"quantity,omitempty" validate:"omitempty,max=50"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Position *int    `json:"position,omitempty" validate:"omitempty,min=0"`
}

type reorderRequest struct {
	ItemOrders []items.ReorderEntry `json:"item_orders" validate:"required,min=1"`
}

func itemParams(r *http.Request) (userID, listID, itemID uuid.UUID, err error) {
	userID, listID, err = userAndList(r)
	if err != nil {
		return
	}
	itemID, err = validators.ParseUUIDParam(r, "itemId", "item")
	return
}

func ItemsIndex(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, err := userAndList(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), userID, listID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ItemsCreate(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, err := userAndList(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Add(r.Context(), userID, listID, items.CreateItemInput{
			Name:     body.Name,
			Quantity: body.Quantity,
			Notes:    body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, item)
	}
}

func ItemsUpdate(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Update(r.Context(), userID, listID, itemID, items.UpdateItemInput{
			Name:     body.Name,
			Quantity: body.Quantity,
			Notes:    body.Notes,
			Position: body.Position,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ItemsDelete(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, listID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"item_id": itemID.String()})
	}
}

func ItemsToggleCheck(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.ToggleCheck(r.Context(), userID, listID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ItemsClearChecked(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, err := userAndList(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ClearChecked(r.Context(), userID, listID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ItemsReorder(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, listID, err := userAndList(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reorderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reorder(r.Context(), userID, listID, body.ItemOrders)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
