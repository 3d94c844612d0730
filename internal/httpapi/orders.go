package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posledger/backend/internal/domain"
)

func (a *API) handleCreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	order, err := a.service.CreateOrder(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"order": order}, err)
}

func (a *API) handleGetOrder(c *gin.Context) {
	order, err := a.service.GetOrder(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, gin.H{"order": order}, err)
}

func (a *API) handleUpdateOrder(c *gin.Context) {
	var req domain.UpdateOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	order, err := a.service.UpdateOrder(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"order": order}, err)
}

func (a *API) handleCancelOrder(c *gin.Context) {
	order, err := a.service.CancelOrder(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, gin.H{"order": order}, err)
}

func (a *API) handleMergeOrders(c *gin.Context) {
	var req domain.MergeOrdersRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	resp, err := a.service.MergeOrders(c.Request.Context(), req)
	respond(c, http.StatusOK, resp, err)
}

func (a *API) handleSplitOrder(c *gin.Context) {
	var req domain.SplitOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	order, err := a.service.SplitOrder(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"order": order}, err)
}

func (a *API) handleCreateInvoice(c *gin.Context) {
	var req domain.CreateInvoiceRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	result, err := a.service.CreateInvoice(c.Request.Context(), req)
	respond(c, http.StatusCreated, result, err)
}

func (a *API) handleGetInvoice(c *gin.Context) {
	invoice, err := a.service.GetInvoice(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, gin.H{"invoice": invoice}, err)
}

func (a *API) handleRecordPayment(c *gin.Context) {
	var req domain.RecordPaymentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	invoice, err := a.service.RecordPayment(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"invoice": invoice}, err)
}
