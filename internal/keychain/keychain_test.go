package keychain

import (
	"testing"

	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestMasterPassword(t *testing.T) {
	keyring.MockInit()

	_, err := MasterPassword(Service, Account)
	assert.ErrorIs(t, err, models.ErrNoPassword)

	require.NoError(t, SetMasterPassword(Service, Account, "s3cret"))
	got, err := MasterPassword(Service, Account)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, SetMasterPassword(Service, Account, ""))
	_, err = MasterPassword(Service, Account)
	assert.ErrorIs(t, err, models.ErrNoPassword)

	require.NoError(t, SetMasterPassword(Service, Account, ""))
}
