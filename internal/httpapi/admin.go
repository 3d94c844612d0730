package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posledger/backend/internal/domain"
)

func (a *API) handleCreatePurchaseOrder(c *gin.Context) {
	var req domain.CreatePurchaseOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	po, err := a.service.CreatePurchaseOrder(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"purchase_order": po}, err)
}

func (a *API) handleGetPurchaseOrder(c *gin.Context) {
	po, err := a.service.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, gin.H{"purchase_order": po}, err)
}

func (a *API) handleUpdatePurchaseOrder(c *gin.Context) {
	var req domain.UpdatePurchaseOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	po, err := a.service.UpdatePurchaseOrder(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"purchase_order": po}, err)
}

func (a *API) handleCreateReturn(c *gin.Context) {
	var req domain.CreateReturnOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	ret, err := a.service.CreateReturnOrder(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"return": ret}, err)
}

func (a *API) handleGetReturn(c *gin.Context) {
	ret, err := a.service.GetReturnOrder(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, gin.H{"return": ret}, err)
}

func (a *API) handleCreateCustomer(c *gin.Context) {
	var req domain.CreateCustomerRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	customer, err := a.service.CreateCustomer(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"customer": customer}, err)
}

func (a *API) handleGetCustomer(c *gin.Context) {
	profile, err := a.service.GetCustomer(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, profile, err)
}

func (a *API) handleCreateRewardTier(c *gin.Context) {
	var req domain.RewardTierRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	tier, err := a.service.CreateRewardTier(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"tier": tier}, err)
}

func (a *API) handleUpdateRewardTier(c *gin.Context) {
	var req domain.RewardTierUpdateRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	tier, err := a.service.UpdateRewardTier(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"tier": tier}, err)
}

func (a *API) handleCreateLoyaltyReward(c *gin.Context) {
	var req domain.LoyaltyRewardRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	reward, err := a.service.CreateLoyaltyReward(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"reward": reward}, err)
}

func (a *API) handleCreateDiscount(c *gin.Context) {
	var req domain.DiscountRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	discount, err := a.service.CreateDiscount(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"discount": discount}, err)
}

func (a *API) handleCreateCoupon(c *gin.Context) {
	var req domain.CouponRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	coupon, err := a.service.CreateCoupon(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"coupon": coupon}, err)
}

func (a *API) handleCreateVariant(c *gin.Context) {
	var req domain.CreateVariantRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	variant, err := a.service.CreateVariant(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"variant": variant}, err)
}

func (a *API) handleGetStock(c *gin.Context) {
	view, err := a.service.GetStock(c.Request.Context(), c.Param("variantId"))
	respond(c, http.StatusOK, view, err)
}

func (a *API) handleAdjustStock(c *gin.Context) {
	var req domain.StockAdjustmentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	view, err := a.service.AdjustStock(c.Request.Context(), req)
	respond(c, http.StatusCreated, view, err)
}

func (a *API) handleCreateCategory(c *gin.Context) {
	var req domain.CategoryRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	category, err := a.service.CreateCategory(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"category": category}, err)
}

func (a *API) handleSetCategoryParent(c *gin.Context) {
	var req domain.ParentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	category, err := a.service.SetCategoryParent(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"category": category}, err)
}

func (a *API) handleCreateUnit(c *gin.Context) {
	var req domain.UnitRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	unit, err := a.service.CreateUnit(c.Request.Context(), req)
	respond(c, http.StatusCreated, gin.H{"unit": unit}, err)
}

func (a *API) handleSetUnitReference(c *gin.Context) {
	var req domain.ParentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	unit, err := a.service.SetUnitReference(c.Request.Context(), c.Param("id"), req)
	respond(c, http.StatusOK, gin.H{"unit": unit}, err)
}
