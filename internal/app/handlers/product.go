package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/service"
	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
)

// UpdateProductRequest - частичное обновление, отсутствующие поля не меняются
type UpdateProductRequest struct {
	Name     *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Price    *decimal.Decimal `json:"price"`
	Discount *float64         `json:"discount" validate:"omitempty,gte=0,lte=100"`
}

// UpdateProductHandler обрабатывает PATCH /api/products/{id}.
// Рассылка о скидке выполняется в фоне, ответ ее не ждет.
func UpdateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		var req UpdateProductRequest
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

		product, err := productService.UpdateProduct(r.Context(), id, service.ProductUpdate{
			Name:     req.Name,
			Price:    req.Price,
			Discount: req.Discount,
		})
		if err != nil {
			logger.Error("failed to update product", slog.Any("error", err))
			switch {
			case errors.Is(err, storage.ErrProductNotFound):
				http.Error(w, "product not found", http.StatusNotFound)
			case errors.Is(err, storage.ErrProductLocked):
				http.Error(w, "product is being updated, retry later", http.StatusConflict)
			case errors.Is(err, service.ErrInvalidDiscount),
				errors.Is(err, service.ErrInvalidPrice),
				errors.Is(err, service.ErrInvalidName):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, logger, http.StatusOK, productResponse(product))
	}
}

// ProductResponse - товар вместе с итоговой ценой
type ProductResponse struct {
	*models.Product
	FinalPrice decimal.Decimal `json:"final_price"`
}

func productResponse(p *models.Product) ProductResponse {
	return ProductResponse{Product: p, FinalPrice: p.DiscountedPrice()}
}
