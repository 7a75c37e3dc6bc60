package commands

import (
	"testing"

	"github.com/fluxnet/fluxnet/src/config"
	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStaticNodes(t *testing.T) {
	records, err := parseStaticNodes([]string{"02aa@10.0.0.1", " 03bb@10.0.0.2:16125 "})
	require.NoError(t, err)
	assert.Equal(t, []peers.NodeRecord{
		peers.NewNodeRecord("02aa", "10.0.0.1"),
		peers.NewNodeRecord("03bb", "10.0.0.2:16125"),
	}, records)

	for _, bad := range []string{"02aa", "@10.0.0.1", "02aa@"} {
		_, err := parseStaticNodes([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestNewRegistry(t *testing.T) {
	conf := config.NewDefaultConfig()
	conf.SetDataDir(t.TempDir())

	conf.Registry = config.RegistryJSON
	r, err := newRegistry(conf)
	require.NoError(t, err)
	assert.IsType(t, &peers.JSONRegistry{}, r)

	conf.Registry = config.RegistryDaemon
	r, err = newRegistry(conf)
	require.NoError(t, err)
	assert.IsType(t, &peers.DaemonRegistry{}, r)

	conf.Registry = config.RegistryStatic
	r, err = newRegistry(conf)
	require.NoError(t, err)
	assert.IsType(t, &peers.StaticRegistry{}, r)

	conf.Registry = "ldap"
	_, err = newRegistry(conf)
	assert.Error(t, err)
}

func TestNewIdentity(t *testing.T) {
	conf := config.NewDefaultConfig()
	conf.SetDataDir(t.TempDir())

	_, err := newIdentity(conf)
	assert.Error(t, err, "no key file yet")

	key, err := keys.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, keys.NewSimpleKeyfile(conf.Keyfile()).WriteKey(key))

	id, err := newIdentity(conf)
	require.NoError(t, err)
	got, err := id.PrivateKey("")
	require.NoError(t, err)
	assert.Equal(t, keys.PrivateKeyHex(key), keys.PrivateKeyHex(got))

	wif, err := keys.EncodeWIF(key)
	require.NoError(t, err)
	conf.PrivateKey = wif
	conf.SetDataDir(t.TempDir())

	id, err = newIdentity(conf)
	require.NoError(t, err)
	got, err = id.PrivateKey("")
	require.NoError(t, err)
	assert.Equal(t, keys.PrivateKeyHex(key), keys.PrivateKeyHex(got))

	conf.PrivateKey = "not a key"
	_, err = newIdentity(conf)
	assert.Error(t, err)
}
