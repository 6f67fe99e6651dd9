package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/api/responses"
	"github.com/mercadito-app/mercadito-backend/api/validators"
	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
)

const maxInventoryLookup = 100

type setCountRequest struct {
	Count int `json:"count" validate:"gte=0"`
}

// InventoryCounts returns live stock counts for the requested product ids.
// Unknown ids are simply absent from the response.
func InventoryCounts(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := parseProductIDs(r.URL.Query().Get("ids"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counts, err := svc.GetCounts(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make(map[string]int, len(counts))
		for id, count := range counts {
			payload[id.String()] = count
		}
		responses.WriteSuccess(w, map[string]any{"counts": payload})
	}
}

// SetInventoryCount overwrites the stock level of one of the vendor's
// products.
func SetInventoryCount(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setCountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetCount(r.Context(), vendorID, productID, req.Count); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "count": req.Count})
	}
}

func parseProductIDs(raw string) ([]uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ids query parameter is required")
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxInventoryLookup {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many product ids requested")
	}

	ids := make([]uuid.UUID, 0, len(parts))
	seen := make(map[uuid.UUID]struct{}, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
