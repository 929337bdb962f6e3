// Package srp implements the server side of SRP-6a (RFC 5054) over a fixed
// 2048-bit group: verifier derivation, ephemeral generation, shared-secret
// and proof computation, and proof verification.
package srp

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"math/big"
)

// ErrVerifierUnsafe is returned when the client's ephemeral A is ≡ 0 (mod N),
// or when the derived scrambling parameter u is zero. Both indicate either a
// malicious client or a vanishingly unlikely coincidence; either way the
// session must not proceed.
var ErrVerifierUnsafe = errors.New("srp: unsafe ephemeral or scrambling parameter")

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

// ComputeVerifier derives the SRP-6a password verifier v = g^x mod N, where
// x = H(salt | H(username | ":" | password)). username must already be
// lowercased by the caller. This is a pure function: identical inputs always
// yield an identical verifier.
func ComputeVerifier(salt, username, password []byte) []byte {
	inner := hashBytes(username, []byte(":"), password)
	x := hashInt(salt, inner)
	v := new(big.Int).Exp(grp.g, x, grp.N)
	return v.Bytes()
}

// ServerEphemeral generates a fresh server ephemeral key pair (B, b) for the
// given verifier v: b is drawn uniformly from [1, N-1] using a
// cryptographically secure source, and B = (k*v + g^b) mod N. Generation is
// retried on the vanishingly unlikely event that B ≡ 0 (mod N).
func ServerEphemeral(v []byte) (B, b []byte, err error) {
	vInt := new(big.Int).SetBytes(v)

	for {
		bInt, err := rand.Int(rand.Reader, new(big.Int).Sub(grp.N, big.NewInt(1)))
		if err != nil {
			return nil, nil, err
		}
		bInt.Add(bInt, big.NewInt(1)) // shift into [1, N-1]

		term := new(big.Int).Mul(grp.k, vInt)
		term.Mod(term, grp.N)
		gb := new(big.Int).Exp(grp.g, bInt, grp.N)
		BInt := new(big.Int).Add(term, gb)
		BInt.Mod(BInt, grp.N)

		if BInt.Sign() == 0 {
			continue
		}

		return BInt.Bytes(), bInt.Bytes(), nil
	}
}

// SessionKeys holds the material the server derives once it has the
// client's ephemeral A: the shared session key K, the proof value the
// client is expected to present (MExpected), and the proof the server sends
// back once the client's proof checks out (HAMK).
type SessionKeys struct {
	K         []byte
	MExpected []byte
	HAMK      []byte
}

// ServerSessionKey computes the shared secret and both proof values from the
// client's ephemeral A, the server's own (b, B), the verifier v, the
// username and the salt. It returns ErrVerifierUnsafe if A ≡ 0 (mod N) or if
// the derived scrambling parameter u is zero; both cases mean the session
// must be killed rather than allowed to proceed.
func ServerSessionKey(A, b, B, v []byte, username, salt []byte) (SessionKeys, error) {
	AInt := new(big.Int).SetBytes(A)
	if new(big.Int).Mod(AInt, grp.N).Sign() == 0 {
		return SessionKeys{}, ErrVerifierUnsafe
	}

	bInt := new(big.Int).SetBytes(b)
	vInt := new(big.Int).SetBytes(v)

	u := hashInt(A, B)
	if u.Sign() == 0 {
		return SessionKeys{}, ErrVerifierUnsafe
	}

	// S = (A * v^u) ^ b mod N
	vu := new(big.Int).Exp(vInt, u, grp.N)
	base := new(big.Int).Mul(AInt, vu)
	base.Mod(base, grp.N)
	S := new(big.Int).Exp(base, bInt, grp.N)

	K := hashBytes(S.Bytes())

	hN := hashBytes(grp.N.Bytes())
	hg := hashBytes(grp.g.Bytes())
	groupXOR := xor(hN, hg)
	hUsername := hashBytes(username)

	mExpected := hashBytes(groupXOR, hUsername, salt, A, B, K)
	hamk := hashBytes(A, mExpected, K)

	return SessionKeys{K: K, MExpected: mExpected, HAMK: hamk}, nil
}

// VerifyProof compares the client-supplied proof against the expected proof
// in constant time, so a timing side channel can't leak how many leading
// bytes of a guessed proof were correct.
func VerifyProof(clientProof, expected []byte) bool {
	if len(clientProof) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(clientProof, expected) == 1
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
