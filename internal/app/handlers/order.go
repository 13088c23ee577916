package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/proshop/internal/service"
	"github.com/linemk/proshop/internal/storage"
)

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type ShippingAddressRequest struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderRequest - входной JSON для POST /api/orders
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddressRequest `json:"shipping_address"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// CreateOrderHandler обрабатывает POST /api/orders.
// Сбой уведомления администратора не влияет на ответ: заказ к этому моменту уже сохранен.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		in := service.CreateOrderInput{
			ShippingAddress: models.ShippingAddress{
				Address:    req.ShippingAddress.Address,
				City:       req.ShippingAddress.City,
				PostalCode: req.ShippingAddress.PostalCode,
				Country:    req.ShippingAddress.Country,
			},
		}
		for _, item := range req.Items {
			in.Items = append(in.Items, service.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		order, err := orderService.CreateOrder(r.Context(), userID, in)
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			writeOrderError(w, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, order)
	}
}

// UpdateOrderStatusHandler обрабатывает PATCH /api/orders/{id}/status (только администратор)
func UpdateOrderStatusHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req UpdateOrderStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		order, err := orderService.UpdateStatus(r.Context(), id, req.Status)
		if err != nil {
			logger.Error("failed to update order status", slog.Any("error", err))
			writeOrderError(w, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}

// PayOrderHandler обрабатывает PATCH /api/orders/{id}/pay (владелец заказа или администратор)
func PayOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PayOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}
		role, _ := jwtmiddleware.RoleFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orderService.MarkPaid(r.Context(), id, userID, role == models.RoleAdmin)
		if err != nil {
			logger.Error("failed to mark order paid", slog.Any("error", err))
			writeOrderError(w, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}

// MyOrdersHandler обрабатывает GET /api/orders/mine
func MyOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MyOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		orders, err := orderService.ListMine(r.Context(), userID)
		if err != nil {
			logger.Error("failed to list orders", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if orders == nil {
			orders = []*models.Order{}
		}

		writeJSON(w, logger, http.StatusOK, orders)
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound), errors.Is(err, storage.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
