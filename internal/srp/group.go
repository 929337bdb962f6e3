package srp

import "math/big"

// group holds the fixed SRP-6a parameters: the RFC 5054 2048-bit group
// (N, g=2) and the derived multiplier k = H(N, g). It is a package-level
// singleton, built once in init() from a hex literal.
type group struct {
	N *big.Int
	g *big.Int
	k *big.Int
}

var grp *group

const n2048Hex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

func init() {
	N, ok := new(big.Int).SetString(n2048Hex, 16)
	if !ok {
		panic("srp: failed to parse RFC 5054 2048-bit group prime")
	}
	g := big.NewInt(2)
	grp = &group{
		N: N,
		g: g,
		k: hashInt(N.Bytes(), g.Bytes()),
	}
}

// ByteLen is the byte length of N (256 for this group). Ephemeral keys are
// not padded to this width: they are emitted as minimal big-endian bytes.
func ByteLen() int { return (grp.N.BitLen() + 7) / 8 }
