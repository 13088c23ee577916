package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/proshop/internal/app"
	"github.com/linemk/proshop/internal/app/handlers"
	"github.com/linemk/proshop/internal/config"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/proshop/internal/lib/logger"
	"github.com/linemk/proshop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/linemk/proshop/internal/service"
	"github.com/linemk/proshop/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом, подключением к БД и фоновым раннером
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	notificationRepo := storage.NewNotificationRepository(application.DB)

	authService := service.NewAuthService(log, userRepo, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	if err := authService.EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password); err != nil {
		log.Error("failed to bootstrap admin", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to bootstrap admin"))
	}

	offers := service.NewOfferDispatcher(log, userRepo, notificationRepo, application.Metrics)
	productService := service.NewProductService(log, application.DB, productRepo, offers, application.Runner)

	orderEvents := service.NewOrderEventPublisher(log, userRepo, notificationRepo, application.Metrics, cfg.Notifications.OrderRecipientID)
	orderService := service.NewOrderService(log, application.DB, userRepo, productRepo, orderRepo, orderEvents)

	sampler := service.NewCatalogSampler(log, productRepo)
	dashboardService := service.NewSalesAggregator(log, orderRepo, sampler, service.DashboardOptions{
		WindowDays:   cfg.Dashboard.WindowDays,
		TopProducts:  cfg.Dashboard.TopProducts,
		RecentOrders: cfg.Dashboard.RecentOrders,
	})
	notificationService := service.NewNotificationService(log, notificationRepo, cfg.Notifications.ListLimit)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(application.Metrics.Middleware)

	router.Handle("/metrics", metrics.Handler(application.Registry))

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(log, authService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())

		r.Post("/api/orders", handlers.CreateOrderHandler(log, orderService))
		r.Get("/api/orders/mine", handlers.MyOrdersHandler(log, orderService))
		// оплатить может владелец или администратор, проверка в сервисе
		r.Patch("/api/orders/{id}/pay", handlers.PayOrderHandler(log, orderService))

		r.Get("/api/notifications", handlers.ListNotificationsHandler(log, notificationService))
		r.Patch("/api/notifications/read-all", handlers.MarkAllNotificationsReadHandler(log, notificationService))
		r.Patch("/api/notifications/{id}/read", handlers.MarkNotificationReadHandler(log, notificationService))
		r.Delete("/api/notifications/clear", handlers.ClearNotificationsHandler(log, notificationService))
		r.Delete("/api/notifications/{id}", handlers.DeleteNotificationHandler(log, notificationService))
		r.Delete("/api/notifications", handlers.DeleteNotificationsHandler(log, notificationService))

		// только для администраторов
		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.RequireRole(models.RoleAdmin))

			r.Patch("/api/products/{id}", handlers.UpdateProductHandler(log, productService))
			r.Patch("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(log, orderService))
			r.Get("/api/dashboard", handlers.DashboardHandler(log, dashboardService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	// после остановки HTTP новые рассылки не появятся, дожидаемся поставленных
	if err := application.Close(ctx); err != nil {
		log.Error("background tasks were not drained", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
