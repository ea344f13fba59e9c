package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/models"
)

func TestSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tokens := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	seed := NewSeedService(env.store, env.wallets, tokens)

	res, err := seed.Seed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, res.Listings, 10)
	assert.Equal(t, DefaultSeedBalance, env.balance(t, res.Buyer.ID))
	assert.Zero(t, env.balance(t, res.Affiliate.ID))

	listings, err := env.store.ListListingsByOwner(ctx, res.Affiliate.ID)
	require.NoError(t, err)
	assert.Len(t, listings, 10)

	id, role, err := tokens.ParseAccess(res.Affiliate.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Affiliate.ID, id)
	assert.Equal(t, models.RoleAffiliate, role)

	// Засеянный покупатель может купить объявление партнёра.
	listing, err := env.store.GetListing(ctx, res.Listings[0])
	require.NoError(t, err)
	order := env.buy(t, res.Buyer.ID, listing, "")
	assert.Equal(t, int64(2500), order.Amount)
}
