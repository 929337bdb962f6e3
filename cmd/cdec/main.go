// Command cdec decodes a hex-encoded datagram as one of the packet kinds
// and prints its fields, for debugging the wire protocol by hand.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/sauerbraten/srpauth/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("cdec <hex bytes>...")
		os.Exit(1)
	}

	buf, err := hex.DecodeString(strings.Join(os.Args[1:], ""))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	magic, ok := wire.PeekMagic(buf)
	if !ok {
		fmt.Println("buffer too short to contain a magic")
		os.Exit(1)
	}

	switch magic {
	case wire.MagicServerNegotiate:
		m, err := wire.DecodeServerNegotiate(buf)
		printResult("SERVER_NEGOTIATE", m, err)
	case wire.MagicAuthNegotiate:
		m, err := wire.DecodeAuthNegotiate(buf, true)
		if err != nil {
			m, err = wire.DecodeAuthNegotiate(buf, false)
		}
		printResult("AUTH_NEGOTIATE", m, err)
	case wire.MagicServerEphemeral:
		m, err := wire.DecodeServerEphemeral(buf)
		printResult("SERVER_EPHEMERAL", m, err)
	case wire.MagicAuthEphemeral:
		m, err := wire.DecodeAuthEphemeral(buf)
		printResult("AUTH_EPHEMERAL", m, err)
	case wire.MagicServerProof:
		m, err := wire.DecodeServerProof(buf)
		printResult("SERVER_PROOF", m, err)
	case wire.MagicAuthProof:
		m, err := wire.DecodeAuthProof(buf)
		printResult("AUTH_PROOF", m, err)
	case wire.MagicErrorUser:
		m, err := wire.DecodeErrorUser(buf)
		printResult("ERROR_USER", m, err)
	case wire.MagicErrorSession:
		m, err := wire.DecodeErrorSession(buf)
		printResult("ERROR_SESSION", m, err)
	default:
		fmt.Printf("unrecognized magic: %#x\n", uint32(magic))
		os.Exit(1)
	}
}

func printResult(kind string, m any, err error) {
	if err != nil {
		fmt.Println(kind, "decode error:", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %+v\n", kind, m)
}
