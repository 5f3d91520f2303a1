package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/netgate/internal/order"
	"github.com/pitabwire/netgate/model"
)

func handleOrderCreateSite(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, r, model.NewUnauthorizedError("missing or invalid tenant ID"))
			return
		}

		var body model.CreateSiteOrder
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, r, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := svc.ProcessOrder(r.Context(), rctx.TenantID, model.OrderTypeSite, body)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}

func handleOrderList(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, r, model.NewUnauthorizedError("missing or invalid tenant ID"))
			return
		}

		orders := svc.ListOrders(r.Context(), rctx.TenantID)
		if orders == nil {
			orders = []model.Order{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"count":   len(orders),
			"results": orders,
		})
	}
}

func handleOrderStatus(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, r, model.NewUnauthorizedError("missing or invalid tenant ID"))
			return
		}
		orderID := chi.URLParam(r, "orderId")

		status, err := svc.OrderStatus(r.Context(), rctx.TenantID, orderID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

func handleOrderCancel(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, r, model.NewUnauthorizedError("missing or invalid tenant ID"))
			return
		}
		orderID := chi.URLParam(r, "orderId")

		cancelled, err := svc.CancelOrder(r.Context(), rctx.TenantID, orderID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		status := model.StatusOf(cancelled)
		WriteJSON(w, http.StatusOK, status)
	}
}
