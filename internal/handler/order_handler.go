package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// カートの1行。価格は受け取らない
type CartLineRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Size      string `json:"size"`
}

type CheckoutResponse struct {
	Message       string      `json:"message"`
	OrderID       int64       `json:"orderId"`
	PaymentStatus string      `json:"paymentStatus"`
	TotalAmount   model.Money `json:"totalAmount"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, jwtSecret string, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(jwtSecret))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.checkout)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

// 決済失敗も200で返す。呼び出し側はpaymentStatusで分岐する
func (h *OrderHandler) checkout(c echo.Context) error {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req []CartLineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	lines := make([]model.CartLine, 0, len(req))
	for _, r := range req {
		lines = append(lines, model.CartLine{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			Size:      r.Size,
		})
	}

	res, err := h.uc.Checkout(c.Request().Context(), userID, lines)
	if err != nil {
		return writeError(c, err)
	}

	msg := "order created and paid"
	if res.Outcome != model.PaymentOutcomePaid {
		msg = "order created but payment failed"
	}

	return c.JSON(http.StatusOK, CheckoutResponse{
		Message:       msg,
		OrderID:       res.OrderID,
		PaymentStatus: res.Outcome.String(),
		TotalAmount:   res.TotalAmount,
	})
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrder(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
