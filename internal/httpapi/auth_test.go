package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
)

const testSecret = "test-secret-key-with-enough-entropy"

func TestNewTokenVerifierDisabledWithoutSecret(t *testing.T) {
	assert.Nil(t, NewTokenVerifier("  "))
	assert.NotNil(t, NewTokenVerifier(testSecret))
}

func TestParseTokenRoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token, err := v.Sign("emp-7", "cashier", time.Hour)
	require.NoError(t, err)

	actor, err := v.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{EmployeeID: "emp-7", Role: "cashier"}, actor)
}

func TestParseTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	other, err := NewTokenVerifier("another-secret-that-does-not-match").Sign("emp-7", "cashier", time.Hour)
	require.NoError(t, err)
	_, err = v.ParseToken(other)
	assert.ErrorIs(t, err, errInvalidToken)

	expired, err := v.Sign("emp-7", "cashier", -time.Minute)
	require.NoError(t, err)
	_, err = v.ParseToken(expired)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = v.ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestRequireActorGuardsAPIRoutes(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	h := newTestAPI(t, v)

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stock/var-tea", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stock/var-tea", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := v.Sign("emp-9", "cashier", time.Hour)
	require.NoError(t, err)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/stock/var-tea", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorFromTokenHandlesReturn(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	h := newTestAPI(t, v)
	token, err := v.Sign("emp-returns", "cashier", time.Hour)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/returns", domain.CreateReturnOrderRequest{
		Lines: []domain.ReturnLineInput{{VariantID: "var-egg", Qty: 2, UnitPrice: decimal.NewFromInt(25)}},
	}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ret := decodeBody[struct {
		Return domain.ReturnOrder `json:"return"`
	}](t, rec).Return
	assert.Equal(t, "emp-returns", ret.HandledByID)
	assert.True(t, ret.TotalRefund.Equal(decimal.NewFromInt(50)))
}
