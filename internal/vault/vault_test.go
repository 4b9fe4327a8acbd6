package vault

import (
	"testing"

	"poolbet/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_CollectAndPay(t *testing.T) {
	v := New()
	require.NoError(t, v.Mint("alice", domain.AssetNative, 1_000))
	require.NoError(t, v.Mint("bob", domain.AssetToken, 500))

	require.NoError(t, v.Collect("alice", domain.AssetNative, 600))
	require.NoError(t, v.Collect("bob", domain.AssetToken, 500))
	assert.Equal(t, int64(1_100), v.PoolBalance(), "native is wrapped into pool token")

	assert.ErrorIs(t, v.Collect("bob", domain.AssetToken, 1), domain.ErrInsufficientFunds)
	assert.ErrorIs(t, v.Pay("alice", domain.AssetToken, 1_101), domain.ErrInsufficientContractBalance)

	require.NoError(t, v.Pay("alice", domain.AssetToken, 100))
	require.NoError(t, v.Pay("bob", domain.AssetNative, 1_000))
	assert.Equal(t, int64(100), v.BalanceOf("alice", domain.AssetToken))
	assert.Equal(t, int64(1_000), v.BalanceOf("bob", domain.AssetNative))
	assert.NotPanics(t, v.Verify)
}

func TestVault_HookRunsAfterBalances(t *testing.T) {
	v := New()
	require.NoError(t, v.Mint("alice", domain.AssetToken, 100))
	require.NoError(t, v.Collect("alice", domain.AssetToken, 100))

	var seen int64 = -1
	v.OnTransfer = func(to domain.Account, asset domain.Asset, amount int64) {
		seen = v.BalanceOf(to, asset)
	}
	require.NoError(t, v.Pay("alice", domain.AssetToken, 40))
	assert.Equal(t, int64(40), seen)
}

func TestVault_Transfer(t *testing.T) {
	v := New()
	require.NoError(t, v.Mint("alice", domain.AssetToken, 100))
	assert.ErrorIs(t, v.Transfer("alice", domain.PoolAccount, domain.AssetToken, 1), domain.ErrWrongParameter)
	require.NoError(t, v.Transfer("alice", "bob", domain.AssetToken, 30))
	assert.Equal(t, int64(70), v.BalanceOf("alice", domain.AssetToken))
	assert.Equal(t, int64(30), v.BalanceOf("bob", domain.AssetToken))
}
