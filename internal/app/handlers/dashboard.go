package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/proshop/internal/service"
)

// DashboardHandler обрабатывает GET /api/dashboard (только администратор)
func DashboardHandler(log *slog.Logger, dashboardService service.DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DashboardHandler"
		logger := log.With(slog.String("op", op))

		dashboard, err := dashboardService.ComputeDashboard(r.Context())
		if err != nil {
			logger.Error("failed to compute dashboard", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, dashboard)
	}
}
