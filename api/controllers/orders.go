package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/api/responses"
	"github.com/mercadito-app/mercadito-backend/api/validators"
	"github.com/mercadito-app/mercadito-backend/internal/addresses"
	"github.com/mercadito-app/mercadito-backend/internal/orders"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

type orderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// placeOrderRequest accepts the delivery destination either as a saved
// address id or as an inline snapshot. Exactly one must be supplied.
type placeOrderRequest struct {
	Items           []orderLineRequest     `json:"items" validate:"required,min=1,dive"`
	AddressID       *uuid.UUID             `json:"address_id,omitempty"`
	DeliveryAddress *types.AddressSnapshot `json:"delivery_address,omitempty"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// PlaceOrder creates an order for the authenticated customer. Saved addresses
// are snapshotted at placement time so later edits never rewrite history.
func PlaceOrder(svc orders.Service, addressBook addresses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := resolveDeliveryAddress(r, addressBook, customerID, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orders.OrderLineInput, 0, len(req.Items))
		for _, line := range req.Items {
			items = append(items, orders.OrderLineInput{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}

		order, err := svc.Place(r.Context(), orders.PlaceOrderInput{
			CustomerID:      customerID,
			Items:           items,
			DeliveryAddress: snapshot,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func CustomerOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CustomerOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForCustomer(r.Context(), customerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// VendorOrders serves the vendor's incoming queue, optionally filtered by
// status.
func VendorOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter orders.VendorListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			filter.Status = &raw
		}

		list, err := svc.ListByVendor(r.Context(), vendorID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func VendorOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForVendor(r.Context(), vendorID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// TransitionOrder advances an order through its lifecycle. Accepting an order
// also takes the stock in the same transaction.
func TransitionOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := actorVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.Transition(r.Context(), vendorID, orderID, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func resolveDeliveryAddress(r *http.Request, addressBook addresses.Service, customerID uuid.UUID, req *placeOrderRequest) (*types.AddressSnapshot, error) {
	switch {
	case req.AddressID != nil && req.DeliveryAddress != nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide address_id or delivery_address, not both")
	case req.AddressID != nil:
		return addressBook.Snapshot(r.Context(), customerID, *req.AddressID)
	case req.DeliveryAddress != nil:
		return req.DeliveryAddress, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
}
