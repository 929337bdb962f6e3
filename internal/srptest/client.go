// Package srptest implements just enough of the SRP-6a client side to drive
// the server engine and protocol handlers in tests. It exists purely as test
// tooling; the real client lives outside this repository. It uses the same
// RFC 5054 2048-bit group and SHA-1 hash as the server engine (internal/srp).
package srptest

import (
	"crypto/rand"
	"crypto/sha1"
	"math/big"
)

var (
	N, _ = new(big.Int).SetString(""+
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050"+
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8"+
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748"+
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6"+
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73", 16)
	g = big.NewInt(2)
	k = hashInt(N.Bytes(), g.Bytes())
)

func hashBytes(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(parts...))
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Client holds the ephemeral state of one simulated handshake attempt.
type Client struct {
	username, password, salt []byte
	a                         *big.Int
	A                         *big.Int

	K []byte
	M []byte
}

// NewClient starts a handshake for username/password, generating a fresh
// ephemeral keypair (a, A).
func NewClient(username, password string) (*Client, error) {
	aInt, err := rand.Int(rand.Reader, new(big.Int).Sub(N, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	aInt.Add(aInt, big.NewInt(1))
	A := new(big.Int).Exp(g, aInt, N)
	return &Client{
		username: []byte(username),
		password: []byte(password),
		a:        aInt,
		A:        A,
	}, nil
}

// Ephemeral returns the client's public ephemeral A.
func (c *Client) Ephemeral() []byte { return c.A.Bytes() }

// ComputeProof derives the shared key and client proof M from the server's
// ephemeral B and the user's salt, mirroring the formula in internal/srp.
func (c *Client) ComputeProof(salt, B []byte) []byte {
	c.salt = salt
	BInt := new(big.Int).SetBytes(B)

	u := hashInt(c.A.Bytes(), B)
	inner := hashBytes(c.username, []byte(":"), c.password)
	x := hashInt(salt, inner)

	gx := new(big.Int).Exp(g, x, N)
	kgx := new(big.Int).Mul(k, gx)
	base := new(big.Int).Sub(BInt, kgx)
	base.Mod(base, N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)

	S := new(big.Int).Exp(base, exp, N)
	c.K = hashBytes(S.Bytes())

	hN := hashBytes(N.Bytes())
	hg := hashBytes(g.Bytes())
	groupXOR := xor(hN, hg)
	hUsername := hashBytes(c.username)

	c.M = hashBytes(groupXOR, hUsername, salt, c.A.Bytes(), B, c.K)
	return c.M
}

// CheckHAMK verifies the server's proof against the client's own derived key.
func (c *Client) CheckHAMK(hamk []byte) bool {
	expected := hashBytes(c.A.Bytes(), c.M, c.K)
	if len(expected) != len(hamk) {
		return false
	}
	for i := range expected {
		if expected[i] != hamk[i] {
			return false
		}
	}
	return true
}
