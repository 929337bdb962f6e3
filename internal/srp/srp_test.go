package srp_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sauerbraten/srpauth/internal/srp"
	"github.com/sauerbraten/srpauth/internal/srptest"
)

func TestComputeVerifierIsDeterministic(t *testing.T) {
	salt := []byte{1, 2, 3, 4}
	v1 := srp.ComputeVerifier(salt, []byte("alice"), []byte("hunter2"))
	v2 := srp.ComputeVerifier(salt, []byte("alice"), []byte("hunter2"))
	require.Equal(t, v1, v2)

	v3 := srp.ComputeVerifier(salt, []byte("alice"), []byte("different"))
	require.NotEqual(t, v1, v3)
}

func TestFullHandshakeSucceedsWithMatchingPassword(t *testing.T) {
	salt := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	username := "alice"
	password := "hunter2"

	v := srp.ComputeVerifier(salt, []byte(username), []byte(password))

	client, err := srptest.NewClient(username, password)
	require.NoError(t, err)

	B, b, err := srp.ServerEphemeral(v)
	require.NoError(t, err)

	keys, err := srp.ServerSessionKey(client.Ephemeral(), b, B, v, []byte(username), salt)
	require.NoError(t, err)

	clientM := client.ComputeProof(salt, B)
	require.True(t, srp.VerifyProof(clientM, keys.MExpected))
	require.True(t, client.CheckHAMK(keys.HAMK))
}

func TestHandshakeFailsWithWrongPassword(t *testing.T) {
	salt := []byte{1, 1, 1, 1}
	username := "bob"

	v := srp.ComputeVerifier(salt, []byte(username), []byte("correct"))

	client, err := srptest.NewClient(username, "incorrect")
	require.NoError(t, err)

	B, b, err := srp.ServerEphemeral(v)
	require.NoError(t, err)

	keys, err := srp.ServerSessionKey(client.Ephemeral(), b, B, v, []byte(username), salt)
	require.NoError(t, err)

	clientM := client.ComputeProof(salt, B)
	require.False(t, srp.VerifyProof(clientM, keys.MExpected))
}

func TestServerSessionKeyRejectsZeroEphemeral(t *testing.T) {
	salt := []byte{9, 9, 9, 9}
	username := []byte("carol")
	v := srp.ComputeVerifier(salt, username, []byte("whatever"))

	B, b, err := srp.ServerEphemeral(v)
	require.NoError(t, err)

	_, err = srp.ServerSessionKey([]byte{0}, b, B, v, username, salt)
	require.ErrorIs(t, err, srp.ErrVerifierUnsafe)
}

func TestServerSessionKeyRejectsEphemeralCongruentToN(t *testing.T) {
	salt := []byte{9, 9, 9, 9}
	username := []byte("carol")
	v := srp.ComputeVerifier(salt, username, []byte("whatever"))

	B, b, err := srp.ServerEphemeral(v)
	require.NoError(t, err)

	nBytes := new(big.Int).SetBytes(groupN2048()).Bytes()

	_, err = srp.ServerSessionKey(nBytes, b, B, v, username, salt)
	require.ErrorIs(t, err, srp.ErrVerifierUnsafe)
}

func groupN2048() []byte {
	N, _ := new(big.Int).SetString(""+
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050"+
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8"+
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748"+
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6"+
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73", 16)
	return N.Bytes()
}
