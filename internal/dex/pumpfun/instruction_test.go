package pumpfun

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTradeParams() TradeParams {
	return TradeParams{
		Mint:            solana.NewWallet().PublicKey(),
		Curve:           solana.NewWallet().PublicKey(),
		AssociatedCurve: solana.NewWallet().PublicKey(),
		UserTokenATA:    solana.NewWallet().PublicKey(),
		User:            solana.NewWallet().PublicKey(),
	}
}

func TestBuildBuyInstruction(t *testing.T) {
	params := testTradeParams()

	ix, err := BuildBuyInstruction(params, 5_000_000, 1_030_000_000)
	require.NoError(t, err)

	assert.Equal(t, ProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 12)
	assert.Equal(t, GlobalAccount, accounts[0].PublicKey)
	assert.Equal(t, FeeRecipient, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, params.Mint, accounts[2].PublicKey)
	assert.Equal(t, params.Curve, accounts[3].PublicKey)
	assert.Equal(t, params.AssociatedCurve, accounts[4].PublicKey)
	assert.Equal(t, params.UserTokenATA, accounts[5].PublicKey)
	assert.Equal(t, params.User, accounts[6].PublicKey)
	assert.True(t, accounts[6].IsSigner)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[9].PublicKey)
	assert.Equal(t, EventAuthority, accounts[10].PublicKey)
	assert.Equal(t, ProgramID, accounts[11].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, BuyDiscriminator, binary.LittleEndian.Uint64(data[0:8]))
	assert.Equal(t, uint64(5_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(1_030_000_000), binary.LittleEndian.Uint64(data[16:24]))
}

func TestBuildSellInstruction(t *testing.T) {
	params := testTradeParams()

	ix, err := BuildSellInstruction(params, 5_000_000, 900_000_000)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 12)
	// sell swaps the rent sysvar slot for the associated-token program
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, accounts[8].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[9].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, SellDiscriminator, binary.LittleEndian.Uint64(data[0:8]))
	assert.Equal(t, uint64(900_000_000), binary.LittleEndian.Uint64(data[16:24]))
}

func TestBuildRejectsZeroAmount(t *testing.T) {
	params := testTradeParams()

	_, err := BuildBuyInstruction(params, 0, 1)
	assert.Error(t, err)

	_, err = BuildSellInstruction(params, 0, 1)
	assert.Error(t, err)
}
