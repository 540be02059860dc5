package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	a1, err := deriveKey("alpha")
	require.NoError(t, err)
	a2, err := deriveKey("alpha")
	require.NoError(t, err)
	b, err := deriveKey("beta")
	require.NoError(t, err)

	assert.Equal(t, 0, a1.D.Cmp(a2.D))
	assert.NotEqual(t, 0, a1.D.Cmp(b.D))
	assert.True(t, a1.Curve.IsOnCurve(a1.X, a1.Y))
	assert.Equal(t, "P-256", a1.Curve.Params().Name)
}

func TestVerifyPublicKey(t *testing.T) {
	a, err := New("alpha")
	require.NoError(t, err)
	b, err := New("beta")
	require.NoError(t, err)

	aKey, err := deriveKey("alpha")
	require.NoError(t, err)
	aPub, err := x509.MarshalPKIXPublicKey(&aKey.PublicKey)
	require.NoError(t, err)
	verify := verifyPublicKey(aPub)

	assert.NoError(t, verify(a.Server.Certificates[0].Certificate, nil))
	assert.ErrorIs(t, verify(b.Server.Certificates[0].Certificate, nil), ErrKeyMismatch)
	assert.Error(t, verify(nil, nil))
}

func handshake(t *testing.T, serverPass, clientPass string) error {
	t.Helper()
	srv, err := New(serverPass)
	require.NoError(t, err)
	cli, err := New(clientPass)
	require.NoError(t, err)

	sc, cc := net.Pipe()
	defer sc.Close()
	defer cc.Close()

	go func() {
		_ = tls.Server(sc, srv.Server).Handshake()
		sc.Close()
	}()
	_, _, err = cli.Client.ClientHandshake(testContext(t), serverName, cc)
	return err
}

func TestHandshake(t *testing.T) {
	assert.NoError(t, handshake(t, "", DefaultPassphrase))
	assert.Error(t, handshake(t, "alpha", "beta"))
}
