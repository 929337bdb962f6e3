// Command cenc encodes a SERVER_NEGOTIATE packet from command-line
// arguments and prints it as hex, for feeding cdec or a raw UDP client by
// hand.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/sauerbraten/srpauth/internal/wire"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("cenc <version 1|2> <username> [client_session hex, version 2 only]")
		os.Exit(1)
	}

	version, err := strconv.ParseUint(os.Args[1], 10, 8)
	if err != nil {
		fmt.Println("could not parse version:", err)
		os.Exit(1)
	}

	m := wire.ServerNegotiate{Version: uint8(version), Username: os.Args[2]}
	if version == 2 && len(os.Args) > 3 {
		cs, err := strconv.ParseUint(os.Args[3], 16, 32)
		if err != nil {
			fmt.Println("could not parse client_session:", err)
			os.Exit(1)
		}
		m.ClientSession = uint32(cs)
	}

	fmt.Println(hex.EncodeToString(m.Encode().Bytes()))
}
