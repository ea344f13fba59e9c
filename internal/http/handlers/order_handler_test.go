package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

type orderFixture struct {
	seller, buyer           uuid.UUID
	sellerToken, buyerToken string
	order                   models.Order
}

func newOrderFixture(t *testing.T, env *apiEnv, price int64) orderFixture {
	t.Helper()
	f := orderFixture{seller: uuid.New(), buyer: uuid.New()}
	f.sellerToken = env.token(t, f.seller, models.RoleUser)
	f.buyerToken = env.token(t, f.buyer, models.RoleUser)
	env.fund(t, f.buyer, price)
	listing := env.listing(t, f.seller, price)

	w := env.do(t, http.MethodPost, "/api/purchases", f.buyerToken, map[string]string{"listing_id": listing.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f.order = decode[models.Order](t, w)
	return f
}

func TestOrderHandler_ShipAndConfirm(t *testing.T) {
	env := newAPIEnv(t)
	f := newOrderFixture(t, env, 200)
	base := "/api/orders/" + f.order.ID.String()

	w := env.do(t, http.MethodPost, base+"/ship", f.sellerToken, map[string]string{"tracking_number": "RU123456789"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	shipped := decode[models.Order](t, w)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "RU123456789", *shipped.TrackingNumber)

	w = env.do(t, http.MethodPost, base+"/confirm", f.buyerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[service.SettlementResult](t, w)
	assert.Equal(t, int64(200), result.SellerAmount)
	assert.Zero(t, result.Commission)

	w = env.do(t, http.MethodPost, base+"/confirm", f.buyerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_SETTLED", errorCode(t, w))

	wallet := decode[models.Wallet](t, env.do(t, http.MethodGet, "/api/wallet", f.sellerToken, nil))
	assert.Equal(t, int64(200), wallet.Balance)
}

func TestOrderHandler_Errors(t *testing.T) {
	env := newAPIEnv(t)
	f := newOrderFixture(t, env, 100)
	base := "/api/orders/" + f.order.ID.String()

	w := env.do(t, http.MethodPost, base+"/ship", f.sellerToken, map[string]string{"tracking_number": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_TRACKING", errorCode(t, w))

	w = env.do(t, http.MethodPost, base+"/ship", f.buyerToken, map[string]string{"tracking_number": "T1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = env.do(t, http.MethodPost, base+"/ship", f.sellerToken, map[string]string{"tracking_number": "T1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = env.do(t, http.MethodPost, base+"/confirm", f.buyerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, w))

	w = env.do(t, http.MethodPost, base+"/confirm", f.sellerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/orders/not-a-uuid/confirm", f.buyerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), f.buyerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderHandler_GetAndList(t *testing.T) {
	env := newAPIEnv(t)
	f := newOrderFixture(t, env, 100)

	w := env.do(t, http.MethodGet, "/api/orders/"+f.order.ID.String(), f.sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Order](t, w)
	require.NotNil(t, got.Listing)
	assert.Equal(t, f.order.ListingID, got.Listing.ID)

	stranger := env.token(t, uuid.New(), models.RoleUser)
	w = env.do(t, http.MethodGet, "/api/orders/"+f.order.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	mine := decode[service.MyOrders](t, env.do(t, http.MethodGet, "/api/orders/my", f.buyerToken, nil))
	assert.Len(t, mine.Purchases, 1)
	assert.Empty(t, mine.Sales)

	mine = decode[service.MyOrders](t, env.do(t, http.MethodGet, "/api/orders/my", f.sellerToken, nil))
	assert.Empty(t, mine.Purchases)
	assert.Len(t, mine.Sales, 1)
}
