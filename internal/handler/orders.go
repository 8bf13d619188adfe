package handler

import (
	"errors"
	"io"
	"net/http"

	"storefront-payments/internal/auth"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/model"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GatewaySignatureHeader carries the hex HMAC the gateway computes over the
// raw webhook body.
const GatewaySignatureHeader = "X-Gateway-Signature"

type OrderHandler struct {
	orderService service.OrderService
	resolver     *auth.Resolver
	production   bool
	logger       *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, resolver *auth.Resolver, production bool, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		resolver:     resolver,
		production:   production,
		logger:       logger,
	}
}

func (h *OrderHandler) PreCreate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PreCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Amount <= 0 || req.Currency == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "amount and currency are required")
	}

	resp, err := h.orderService.PreCreate(ctx, &req)
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) SaveOrder(c echo.Context) error {
	ctx := c.Request().Context()

	ident, err := h.resolver.Resolve(ctx, c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req dto.SaveOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.GatewayOrderID == "" || req.PaymentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "gatewayOrderId and paymentId are required")
	}

	order, err := h.orderService.SaveOrder(ctx, ident, &req)
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, &dto.SaveOrderResponse{
		Success: true,
		Order:   order,
	})
}

// ListOrders returns the caller's orders. An unresolvable identity yields an
// empty list, not an error; it must never leak another user's orders.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	ident, err := h.resolver.Resolve(ctx, c.Request())
	if err != nil {
		return c.JSON(http.StatusOK, []*dto.OrderView{})
	}

	orders, err := h.orderService.ListOrders(ctx, ident)
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GatewayWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}

	resp, err := h.orderService.HandleWebhook(ctx, c.Request().Header.Get(GatewaySignatureHeader), body)
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	var req dto.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "gatewayOrderId, paymentId and signature are required")
	}

	return c.JSON(http.StatusOK, &dto.VerifyResponse{
		Success: h.orderService.VerifySignature(&req),
	})
}

// httpError maps service errors to status codes. Store failures surface
// their detail only outside production.
func (h *OrderHandler) httpError(err error) error {
	switch {
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, model.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, model.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	case errors.Is(err, model.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	h.logger.Error("request failed", zap.Error(err))
	if h.production {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
