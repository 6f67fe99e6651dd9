package controllers

import (
	"net/http"

	"github.com/mercadito-app/mercadito-backend/api/responses"
	"github.com/mercadito-app/mercadito-backend/api/validators"
	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
)

type locationUpdateRequest struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	IsActive bool    `json:"is_active"`
}

// VendorsNearby serves the discovery query: active vendors within a radius of
// the caller, nearest first.
func VendorsNearby(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		radius, err := validators.ParseQueryInt(r, "radius_meters", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summaries, err := svc.ListNearby(r.Context(), vendors.NearbyQuery{
			Lat:       lat,
			Lng:       lng,
			MaxMeters: radius,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"vendors": summaries})
	}
}

// VendorsList serves the full vendor directory, with distances when the
// caller supplies an origin.
func VendorsList(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin, err := parseOrigin(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summaries, err := svc.ListSummaries(r.Context(), origin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"vendors": summaries})
	}
}

func VendorDetail(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := pathUUID(r, "vendorID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		origin, err := parseOrigin(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetSummary(r.Context(), vendorID, origin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// VendorUpdateLocation records a location ping for the authenticated vendor.
func VendorUpdateLocation(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req locationUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateLocation(r.Context(), vendorID, vendors.LocationUpdate{
			Lat:      req.Lat,
			Lng:      req.Lng,
			IsActive: req.IsActive,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func VendorLocationStatus(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetLocationStatus(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// parseOrigin returns the optional lat/lng query point; both must be present
// or both absent.
func parseOrigin(r *http.Request) (*vendors.Origin, error) {
	lat, err := validators.ParseOptionalQueryFloat(r, "lat")
	if err != nil {
		return nil, err
	}
	lng, err := validators.ParseOptionalQueryFloat(r, "lng")
	if err != nil {
		return nil, err
	}
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be provided together")
	}
	return &vendors.Origin{Lat: *lat, Lng: *lng}, nil
}
