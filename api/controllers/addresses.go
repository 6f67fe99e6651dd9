package controllers

import (
	"net/http"

	"github.com/mercadito-app/mercadito-backend/api/responses"
	"github.com/mercadito-app/mercadito-backend/api/validators"
	"github.com/mercadito-app/mercadito-backend/internal/addresses"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
)

type createAddressRequest struct {
	Label     string   `json:"label" validate:"required"`
	Address   string   `json:"address" validate:"required"`
	Lat       *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	IsDefault bool     `json:"is_default"`
}

type updateAddressRequest struct {
	Label     *string  `json:"label,omitempty"`
	Address   *string  `json:"address,omitempty"`
	Lat       *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	IsDefault *bool    `json:"is_default,omitempty"`
}

func CreateAddress(svc addresses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createAddressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := svc.Create(r.Context(), addresses.CreateAddressInput{
			CustomerID: customerID,
			Label:      req.Label,
			Address:    req.Address,
			Lat:        req.Lat,
			Lng:        req.Lng,
			IsDefault:  req.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, address)
	}
}

func ListAddresses(svc addresses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"addresses": list})
	}
}

func UpdateAddress(svc addresses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := pathUUID(r, "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateAddressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := svc.Update(r.Context(), customerID, addressID, addresses.UpdateAddressInput{
			Label:     req.Label,
			Address:   req.Address,
			Lat:       req.Lat,
			Lng:       req.Lng,
			IsDefault: req.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, address)
	}
}

func DeleteAddress(svc addresses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := pathUUID(r, "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), customerID, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
