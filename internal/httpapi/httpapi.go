package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"posledger/backend/internal/logger"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type API struct {
	service       *service.Service
	tokens        *TokenVerifier
	allowedOrigin string
	log           *zap.Logger
}

// New wires the handlers. A nil verifier disables bearer authentication.
func New(svc *service.Service, tokens *TokenVerifier, allowedOrigin string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		service:       svc,
		tokens:        tokens,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(a.requestContext(), a.recovery(), a.securityHeaders(), bodyLimit(maxBodyBytes))

	r.GET("/healthz", a.handleHealth)

	v1 := r.Group("/api/v1", a.requireActor())

	v1.POST("/orders", a.handleCreateOrder)
	v1.POST("/orders/merge", a.handleMergeOrders)
	v1.POST("/orders/split", a.handleSplitOrder)
	v1.GET("/orders/:id", a.handleGetOrder)
	v1.PATCH("/orders/:id", a.handleUpdateOrder)
	v1.POST("/orders/:id/cancel", a.handleCancelOrder)

	v1.POST("/invoices", a.handleCreateInvoice)
	v1.GET("/invoices/:id", a.handleGetInvoice)
	v1.POST("/invoices/:id/payments", a.handleRecordPayment)

	v1.POST("/purchase-orders", a.handleCreatePurchaseOrder)
	v1.GET("/purchase-orders/:id", a.handleGetPurchaseOrder)
	v1.PATCH("/purchase-orders/:id", a.handleUpdatePurchaseOrder)

	v1.POST("/returns", a.handleCreateReturn)
	v1.GET("/returns/:id", a.handleGetReturn)

	v1.POST("/customers", a.handleCreateCustomer)
	v1.GET("/customers/:id", a.handleGetCustomer)
	v1.POST("/reward-tiers", a.handleCreateRewardTier)
	v1.PATCH("/reward-tiers/:id", a.handleUpdateRewardTier)
	v1.POST("/loyalty-rewards", a.handleCreateLoyaltyReward)

	v1.POST("/discounts", a.handleCreateDiscount)
	v1.POST("/coupons", a.handleCreateCoupon)

	v1.POST("/variants", a.handleCreateVariant)
	v1.GET("/stock/:variantId", a.handleGetStock)
	v1.POST("/stock/adjustments", a.handleAdjustStock)
	v1.POST("/categories", a.handleCreateCategory)
	v1.PUT("/categories/:id/parent", a.handleSetCategoryParent)
	v1.POST("/units", a.handleCreateUnit)
	v1.PUT("/units/:id/reference", a.handleSetUnitReference)

	return r
}

// requestContext tags every request with an id and a request-scoped logger
// that the service picks up from the context.
func (a *API) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		reqLog := a.log.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLog.Error("request", fields...)
		case status >= 400:
			reqLog.Warn("request", fields...)
		default:
			reqLog.Info("request", fields...)
		}
	}
}

func (a *API) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", p),
					zap.Stack("stacktrace"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

func (a *API) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Access-Control-Allow-Origin", a.allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,OPTIONS")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		h.Set("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeJSON rejects unknown fields and trailing garbage.
func decodeJSON(c *gin.Context, dest any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", store.ErrInvalidInput, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: malformed json: %v", store.ErrInvalidInput, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: unexpected data after json body", store.ErrInvalidInput)
	}
	return nil
}

// statusFor maps a service error onto the HTTP status a client should see.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, store.ErrPromotionExpired), errors.Is(err, store.ErrPromotionExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		logger.FromContext(c.Request.Context()).Error("internal error", zap.Error(err))
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respond writes v with status or the mapped error.
func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, v)
}
