package api

import (
	"errors"
	"net/http"
	"strings"

	"cinema-order-engine/internal/domain/order"
	reqdto "cinema-order-engine/internal/handler/dto/request"
	resdto "cinema-order-engine/internal/handler/dto/response"
	"cinema-order-engine/internal/handler/httperr"
	"cinema-order-engine/internal/handler/middleware"
	"cinema-order-engine/internal/usecase/commands"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var errInvalidIdempotencyKey = errors.New("invalid idempotency key format")

var statusByKind = map[order.Kind]int{
	order.KindUserNotFound:         http.StatusNotFound,
	order.KindShowingNotFound:      http.StatusNotFound,
	order.KindEmptyOrder:           http.StatusBadRequest,
	order.KindSeatsRequired:        http.StatusBadRequest,
	order.KindInvalidSeat:          http.StatusBadRequest,
	order.KindInvalidQuantity:      http.StatusBadRequest,
	order.KindProductUnavailable:   http.StatusUnprocessableEntity,
	order.KindInsufficientBalance:  http.StatusPaymentRequired,
	order.KindSeatConflict:         http.StatusConflict,
	order.KindIdempotencyKeyReused: http.StatusConflict,
	order.KindPersistenceFailure:   http.StatusServiceUnavailable,
}

type OrderHandler struct {
	orderCommands commands.OrderCommands
}

func NewOrderHandler(orderCommands commands.OrderCommands) *OrderHandler {
	return &OrderHandler{
		orderCommands: orderCommands,
	}
}

// @Summary Place order
// @Description Reserve seats for a showing and/or buy concessions, paid from the caller's wallet
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "UUID; repeating it replays the first result"
// @Param request body reqdto.PlaceOrderRequest true "Order request"
// @Success 201 {object} resdto.OrderResponse
// @Success 200 {object} resdto.OrderResponse "Replayed"
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 402 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 422 {object} httperr.Response
// @Failure 503 {object} httperr.Response
// @Router /orders [post]
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	payer, ok := middleware.GetUserName(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError,
			errors.New("payer missing from context"), "", "Internal server error", nil)
		return
	}

	key, err := idempotencyKey(c)
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "", "Invalid Idempotency-Key header", nil)
		return
	}

	var req reqdto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "", "Invalid request format", nil)
		return
	}

	result, err := h.orderCommands.PlaceOrder(c.Request.Context(), req.ToInput(payer, key))
	if err != nil {
		abortWithOrderError(c, err)
		return
	}

	res, err := resdto.FromPlaceOrderResult(result)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "", "Internal server error", nil)
		return
	}

	status, outcome := http.StatusCreated, "placed"
	if result.Replayed {
		status, outcome = http.StatusOK, "replayed"
	}
	middleware.SetOrderOutcome(c, result.OrderID, outcome)
	c.JSON(status, res)
}

func idempotencyKey(c *gin.Context) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if raw == "" {
		return nil, nil
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		return nil, errInvalidIdempotencyKey
	}
	return &key, nil
}

func abortWithOrderError(c *gin.Context, err error) {
	var oe *order.Error
	if !errors.As(err, &oe) {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "", "Internal server error", nil)
		return
	}

	middleware.SetOrderOutcome(c, 0, strings.ToLower(oe.Kind.String()))

	status, ok := statusByKind[oe.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var detail any
	switch {
	case oe.Seat != nil:
		detail = gin.H{"seat": oe.Seat.String()}
	case oe.ProductID != 0:
		detail = gin.H{"productId": oe.ProductID}
	}

	httperr.AbortWithError(c, status, err, oe.Kind.String(), oe.Message(), detail)
}
