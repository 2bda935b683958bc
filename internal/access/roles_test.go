package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x01")
	manager  = common.HexToAddress("0x02")
	executor = common.HexToAddress("0x03")
	stranger = common.HexToAddress("0x04")
)

func TestOwnerHoldsEveryCapability(t *testing.T) {
	r := NewRoles(owner)
	assert.True(t, r.HasCapability(owner, Executor))
	assert.True(t, r.HasCapability(owner, Manager))
	assert.False(t, r.HasCapability(stranger, Executor))
	assert.False(t, r.HasCapability(common.Address{}, Executor))

	require.NoError(t, RequireOwner(r, owner))
	assert.ErrorIs(t, RequireOwner(r, stranger), ErrNotAuthorized)
	assert.ErrorIs(t, RequireCapability(r, stranger, Executor), ErrNotAuthorized)
}

func TestManagerGrantsExecutor(t *testing.T) {
	r := NewRoles(owner)
	require.NoError(t, r.Grant(owner, Manager, manager))

	require.NoError(t, r.Grant(manager, Executor, executor))
	assert.True(t, r.HasCapability(executor, Executor))
	assert.NoError(t, RequireCapability(r, executor, Executor))

	// managers cannot mint other managers
	assert.ErrorIs(t, r.Grant(manager, Manager, stranger), ErrNotAuthorized)
	assert.ErrorIs(t, r.Grant(stranger, Executor, stranger), ErrNotAuthorized)

	require.NoError(t, r.Revoke(manager, Executor, executor))
	assert.False(t, r.HasCapability(executor, Executor))
}

func TestTransferOwnership(t *testing.T) {
	r := NewRoles(owner)
	assert.ErrorIs(t, r.TransferOwnership(stranger, stranger), ErrNotAuthorized)
	assert.Error(t, r.TransferOwnership(owner, common.Address{}))

	require.NoError(t, r.TransferOwnership(owner, stranger))
	assert.Equal(t, stranger, r.Owner())
	assert.ErrorIs(t, RequireOwner(r, owner), ErrNotAuthorized)
	assert.False(t, r.HasCapability(owner, Executor))
}
