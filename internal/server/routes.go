package server

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/handler"
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

// ルーティングに必要なもの
type Deps struct {
	JWTSecret string
	Users     repository.UserRepository

	Products      *handler.ProductHandler
	AdminProducts *handler.AdminProductHandler
	Orders        *handler.OrderHandler

	// /healthz でDBを確認する。nilなら常にok
	Ping func(ctx context.Context) error
}

func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", healthz(d.Ping))

	d.Products.RegisterRoutes(e)
	d.AdminProducts.RegisterRoutes(e, d.JWTSecret, d.Users)
	d.Orders.RegisterRoutes(e, d.JWTSecret, d.Users)
}

type healthResponse struct {
	Status string `json:"status"`
}

func healthz(ping func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "db unavailable"})
			}
		}
		return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	}
}
