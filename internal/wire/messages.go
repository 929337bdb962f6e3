package wire

// ServerNegotiate is the inbound packet that starts a handshake.
//
// Wire layout, version 2: magic u32 | version u8 (2) | client_session u32 | username cstr
// Wire layout, version 1: magic u32 | version u8 (1) | username cstr
type ServerNegotiate struct {
	Version        uint8
	ClientSession  uint32 // only meaningful/present for Version == 2
	Username       string
}

func (m ServerNegotiate) Encode() *Packet {
	p := NewWriter(4 + 1 + 4 + len(m.Username) + 1)
	p.PutMagic(MagicServerNegotiate)
	p.PutU8(m.Version)
	if m.Version == 2 {
		p.PutU32(m.ClientSession)
	}
	p.PutCString(m.Username)
	return p
}

// DecodeServerNegotiate decodes a SERVER_NEGOTIATE packet. The decoder
// selects the layout by inspecting the version byte at offset 4. A version
// other than 1 or 2 is not an error here: the trailing bytes are read with
// version 1 framing, so the caller can reply OUTDATED_PROTOCOL with the
// echoed username.
func DecodeServerNegotiate(buf []byte) (ServerNegotiate, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != MagicServerNegotiate {
		return ServerNegotiate{}, ErrMalformedPacket
	}
	version, err := p.GetU8()
	if err != nil {
		return ServerNegotiate{}, ErrMalformedPacket
	}
	m := ServerNegotiate{Version: version}
	switch version {
	case 2:
		cs, err := p.GetU32()
		if err != nil {
			return ServerNegotiate{}, ErrMalformedPacket
		}
		m.ClientSession = cs
	case 1:
		// no client_session field
	default:
		// still try to read a username so the caller can reply with
		// OUTDATED_PROTOCOL instead of silently dropping; version 1 framing
		// is assumed for the trailing bytes.
	}
	username, err := p.GetCString()
	if err != nil {
		return ServerNegotiate{}, ErrMalformedPacket
	}
	m.Username = username
	return m, nil
}

// AuthNegotiate is the response to a valid SERVER_NEGOTIATE.
//
// Wire layout, version 2: magic u32 | 1 u8 | client_session u32 | session u32 | salt_len u8 | salt bytes | username cstr
// Wire layout, version 1: magic u32 | 1 u8 | session u32 | salt_len u8 | salt bytes | username cstr
//
// The outbound version byte is always 1 ("AUTH_NEGOTIATE framing version
// 1"); ClientSessionPresent controls whether the client_session field is
// written, matching the wire version of the originating SERVER_NEGOTIATE.
type AuthNegotiate struct {
	ClientSessionPresent bool
	ClientSession        uint32
	Session              uint32
	Salt                 []byte
	Username             string
}

func (m AuthNegotiate) Encode() *Packet {
	size := 4 + 1 + 4 + 1 + len(m.Salt) + len(m.Username) + 1
	if m.ClientSessionPresent {
		size += 4
	}
	p := NewWriter(size)
	p.PutMagic(MagicAuthNegotiate)
	p.PutU8(1)
	if m.ClientSessionPresent {
		p.PutU32(m.ClientSession)
	}
	p.PutU32(m.Session)
	p.PutU8(uint8(len(m.Salt)))
	p.PutBytes(m.Salt)
	p.PutCString(m.Username)
	return p
}

func DecodeAuthNegotiate(buf []byte, clientSessionPresent bool) (AuthNegotiate, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != MagicAuthNegotiate {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	if _, err := p.GetU8(); err != nil {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	m := AuthNegotiate{ClientSessionPresent: clientSessionPresent}
	if clientSessionPresent {
		cs, err := p.GetU32()
		if err != nil {
			return AuthNegotiate{}, ErrMalformedPacket
		}
		m.ClientSession = cs
	}
	session, err := p.GetU32()
	if err != nil {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	m.Session = session
	saltLen, err := p.GetU8()
	if err != nil || saltLen == 0 {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	salt, err := p.GetBytes(int(saltLen))
	if err != nil {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	m.Salt = salt
	username, err := p.GetCString()
	if err != nil {
		return AuthNegotiate{}, ErrMalformedPacket
	}
	m.Username = username
	return m, nil
}

// ServerEphemeral / AuthEphemeral share a layout:
// magic u32 | session u32 | eph_len u16 | eph bytes[eph_len]
type ServerEphemeral struct {
	Session   uint32
	Ephemeral []byte
}

func (m ServerEphemeral) Encode() *Packet {
	p := NewWriter(4 + 4 + 2 + len(m.Ephemeral))
	p.PutMagic(MagicServerEphemeral)
	p.PutU32(m.Session)
	p.PutU16(uint16(len(m.Ephemeral)))
	p.PutBytes(m.Ephemeral)
	return p
}

func DecodeServerEphemeral(buf []byte) (ServerEphemeral, error) {
	m, err := decodeEphemeralLike(buf, MagicServerEphemeral)
	return ServerEphemeral{Session: m.Session, Ephemeral: m.Ephemeral}, err
}

type AuthEphemeral struct {
	Session   uint32
	Ephemeral []byte
}

func (m AuthEphemeral) Encode() *Packet {
	p := NewWriter(4 + 4 + 2 + len(m.Ephemeral))
	p.PutMagic(MagicAuthEphemeral)
	p.PutU32(m.Session)
	p.PutU16(uint16(len(m.Ephemeral)))
	p.PutBytes(m.Ephemeral)
	return p
}

func DecodeAuthEphemeral(buf []byte) (AuthEphemeral, error) {
	m, err := decodeEphemeralLike(buf, MagicAuthEphemeral)
	return AuthEphemeral{Session: m.Session, Ephemeral: m.Ephemeral}, err
}

func decodeEphemeralLike(buf []byte, want Magic) (ServerEphemeral, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != want {
		return ServerEphemeral{}, ErrMalformedPacket
	}
	session, err := p.GetU32()
	if err != nil {
		return ServerEphemeral{}, ErrMalformedPacket
	}
	ephLen, err := p.GetU16()
	if err != nil {
		return ServerEphemeral{}, ErrMalformedPacket
	}
	eph, err := p.GetBytes(int(ephLen))
	if err != nil {
		return ServerEphemeral{}, ErrMalformedPacket
	}
	return ServerEphemeral{Session: session, Ephemeral: eph}, nil
}

// ServerProof / AuthProof share a layout:
// magic u32 | session u32 | proof_len u16 | proof bytes[proof_len]
//
// proof_len is unsigned 16-bit in both directions.
type ServerProof struct {
	Session uint32
	Proof   []byte
}

func (m ServerProof) Encode() *Packet {
	p := NewWriter(4 + 4 + 2 + len(m.Proof))
	p.PutMagic(MagicServerProof)
	p.PutU32(m.Session)
	p.PutU16(uint16(len(m.Proof)))
	p.PutBytes(m.Proof)
	return p
}

func DecodeServerProof(buf []byte) (ServerProof, error) {
	m, err := decodeProofLike(buf, MagicServerProof)
	return ServerProof{Session: m.Session, Proof: m.Proof}, err
}

type AuthProof struct {
	Session uint32
	Proof   []byte
}

func (m AuthProof) Encode() *Packet {
	p := NewWriter(4 + 4 + 2 + len(m.Proof))
	p.PutMagic(MagicAuthProof)
	p.PutU32(m.Session)
	p.PutU16(uint16(len(m.Proof)))
	p.PutBytes(m.Proof)
	return p
}

func DecodeAuthProof(buf []byte) (AuthProof, error) {
	m, err := decodeProofLike(buf, MagicAuthProof)
	return AuthProof{Session: m.Session, Proof: m.Proof}, err
}

func decodeProofLike(buf []byte, want Magic) (ServerProof, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != want {
		return ServerProof{}, ErrMalformedPacket
	}
	session, err := p.GetU32()
	if err != nil {
		return ServerProof{}, ErrMalformedPacket
	}
	proofLen, err := p.GetU16()
	if err != nil {
		return ServerProof{}, ErrMalformedPacket
	}
	proof, err := p.GetBytes(int(proofLen))
	if err != nil {
		return ServerProof{}, ErrMalformedPacket
	}
	return ServerProof{Session: session, Proof: proof}, nil
}

// ErrorUser: magic u32 | error u8 | username cstr
type ErrorUser struct {
	Error    UserError
	Username string
}

func (m ErrorUser) Encode() *Packet {
	p := NewWriter(4 + 1 + len(m.Username) + 1)
	p.PutMagic(MagicErrorUser)
	p.PutU8(byte(m.Error))
	p.PutCString(m.Username)
	return p
}

func DecodeErrorUser(buf []byte) (ErrorUser, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != MagicErrorUser {
		return ErrorUser{}, ErrMalformedPacket
	}
	code, err := p.GetU8()
	if err != nil {
		return ErrorUser{}, ErrMalformedPacket
	}
	username, err := p.GetCString()
	if err != nil {
		return ErrorUser{}, ErrMalformedPacket
	}
	return ErrorUser{Error: UserError(code), Username: username}, nil
}

// ErrorSession: magic u32 | error u8 | session u32
type ErrorSession struct {
	Error   SessionError
	Session uint32
}

func (m ErrorSession) Encode() *Packet {
	p := NewWriter(4 + 1 + 4)
	p.PutMagic(MagicErrorSession)
	p.PutU8(byte(m.Error))
	p.PutU32(m.Session)
	return p
}

func DecodeErrorSession(buf []byte) (ErrorSession, error) {
	p := NewPacket(buf)
	magic, err := p.GetMagic()
	if err != nil || magic != MagicErrorSession {
		return ErrorSession{}, ErrMalformedPacket
	}
	code, err := p.GetU8()
	if err != nil {
		return ErrorSession{}, ErrMalformedPacket
	}
	session, err := p.GetU32()
	if err != nil {
		return ErrorSession{}, ErrMalformedPacket
	}
	return ErrorSession{Error: SessionError(code), Session: session}, nil
}
