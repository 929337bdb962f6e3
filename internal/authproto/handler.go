// Package authproto implements the protocol state machine: dispatch by
// leading magic, one short fallible-step handler function per inbound
// packet kind, returning at most one reply datagram. Each handler is a
// short pipeline of fallible steps that bails out on the first failure.
package authproto

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sauerbraten/srpauth/internal/credentials"
	"github.com/sauerbraten/srpauth/internal/logging"
	"github.com/sauerbraten/srpauth/internal/session"
	"github.com/sauerbraten/srpauth/internal/srp"
	"github.com/sauerbraten/srpauth/internal/wire"
)

// defaultMaxInFlight mirrors config.Default's auth.max_in_flight; Handler
// zero-values to this when constructed via New.
const defaultMaxInFlight = 4096

// Handler bundles the credential and session stores and a logger, and dispatches inbound
// datagrams by their leading magic. It is safe for concurrent use: all
// mutation happens inside the credential/session stores, which own their
// own locking, and inFlight is a plain atomic counter.
type Handler struct {
	Credentials credentials.Store
	Sessions    *session.Store
	Log         logging.Logger

	// SupportedVersions lists the SERVER_NEGOTIATE versions this core
	// understands; anything else gets OUTDATED_PROTOCOL.
	SupportedVersions map[uint8]bool

	// MaxInFlight bounds how many datagrams Handle will process
	// concurrently before shedding load with TRY_LATER.
	MaxInFlight int32
	inFlight    atomic.Int32
}

// New builds a Handler with the default supported versions (1 and 2) and
// the default in-flight ceiling.
func New(creds credentials.Store, sessions *session.Store, log logging.Logger) *Handler {
	return &Handler{
		Credentials: creds,
		Sessions:    sessions,
		Log:         log,
		SupportedVersions: map[uint8]bool{
			1: true,
			2: true,
		},
		MaxInFlight: defaultMaxInFlight,
	}
}

// Handle dispatches one inbound datagram from src, returning the bytes of
// the reply datagram to send back, or nil if no reply is warranted
// (malformed packet, unrecognized magic). Handle never panics outward: the
// caller (the listener) additionally wraps each call in a recover, but
// every step here is itself a plain fallible pipeline that returns early on
// error.
func (h *Handler) Handle(ctx context.Context, src net.IP, buf []byte) []byte {
	magic, ok := wire.PeekMagic(buf)
	if !ok {
		return nil
	}

	ceiling := h.MaxInFlight
	if ceiling <= 0 {
		ceiling = defaultMaxInFlight
	}
	if h.inFlight.Add(1) > ceiling {
		h.inFlight.Add(-1)
		return h.shed(magic, buf)
	}
	defer h.inFlight.Add(-1)

	switch magic {
	case wire.MagicServerNegotiate:
		return h.handleServerNegotiate(ctx, src, buf)
	case wire.MagicServerEphemeral:
		return h.handleServerEphemeral(ctx, src, buf)
	case wire.MagicServerProof:
		return h.handleServerProof(ctx, src, buf)
	default:
		return nil
	}
}

// shed replies TRY_LATER without touching either store, once the in-flight
// ceiling is hit. It still needs to decode enough of the datagram to know
// which wire error shape to reply with and what identifying field to echo;
// a decode failure here just falls back to a silent drop, same as the
// normal handler path would.
func (h *Handler) shed(magic wire.Magic, buf []byte) []byte {
	switch magic {
	case wire.MagicServerNegotiate:
		in, err := wire.DecodeServerNegotiate(buf)
		if err != nil {
			return nil
		}
		return wire.ErrorUser{Error: wire.UserErrorTryLater, Username: in.Username}.Encode().Bytes()
	case wire.MagicServerEphemeral:
		in, err := wire.DecodeServerEphemeral(buf)
		if err != nil {
			return nil
		}
		return wire.ErrorSession{Error: wire.SessionErrorTryLater, Session: in.Session}.Encode().Bytes()
	case wire.MagicServerProof:
		in, err := wire.DecodeServerProof(buf)
		if err != nil {
			return nil
		}
		return wire.ErrorSession{Error: wire.SessionErrorTryLater, Session: in.Session}.Encode().Bytes()
	default:
		return nil
	}
}

func (h *Handler) handleServerNegotiate(ctx context.Context, src net.IP, buf []byte) []byte {
	in, err := wire.DecodeServerNegotiate(buf)
	if err != nil {
		return nil
	}

	log := h.Log.With("username", in.Username)

	if !h.SupportedVersions[in.Version] {
		log.Info(ctx, "outdated protocol version", "version", in.Version)
		return wire.ErrorUser{Error: wire.UserErrorOutdatedProtocol, Username: in.Username}.Encode().Bytes()
	}

	user, err := h.Credentials.FindByUsername(ctx, in.Username)
	if err != nil || !user.CanAuthenticate() {
		// Unknown, inactive and unverified users all collapse to the same
		// reply; the only field that varies is the echoed username.
		return wire.ErrorUser{Error: wire.UserErrorNoExist, Username: in.Username}.Encode().Bytes()
	}

	clientSessionPresent := in.Version == 2
	id, err := h.Sessions.Create(user.ID, user.Username, user.Salt, in.Version, in.ClientSession, func(killedID uint32) {
		h.Log.Debug(ctx, "session expired", "session", killedID)
	})
	if err != nil {
		log.Warn(ctx, "session store overloaded")
		return wire.ErrorUser{Error: wire.UserErrorTryLater, Username: in.Username}.Encode().Bytes()
	}

	log.Info(ctx, "negotiated session", "session", id)
	return wire.AuthNegotiate{
		ClientSessionPresent: clientSessionPresent,
		ClientSession:        in.ClientSession,
		Session:              id,
		Salt:                 user.Salt,
		Username:             user.Username,
	}.Encode().Bytes()
}

func (h *Handler) handleServerEphemeral(ctx context.Context, src net.IP, buf []byte) []byte {
	in, err := wire.DecodeServerEphemeral(buf)
	if err != nil {
		return nil
	}

	log := h.Log.With("session", in.Session)
	now := time.Now()

	row, ok := h.Sessions.Get(in.Session, now)
	if !ok {
		return wire.ErrorSession{Error: wire.SessionErrorNoExist, Session: in.Session}.Encode().Bytes()
	}
	log = log.With("correlation_id", row.CorrelationID)

	user, err := h.Credentials.FindByUsername(ctx, row.Username)
	if err != nil {
		return wire.ErrorSession{Error: wire.SessionErrorNoExist, Session: in.Session}.Encode().Bytes()
	}

	B, b, err := srp.ServerEphemeral(user.Verifier)
	if err != nil {
		log.Error(ctx, "server ephemeral generation failed", "err", err)
		return wire.ErrorSession{Error: wire.SessionErrorTryLater, Session: in.Session}.Encode().Bytes()
	}

	keys, err := srp.ServerSessionKey(in.Ephemeral, b, B, user.Verifier, []byte(row.Username), row.Salt)
	if err != nil {
		log.Warn(ctx, "unsafe ephemeral or scrambling parameter")
		h.Sessions.Kill(in.Session)
		return wire.ErrorSession{Error: wire.SessionErrorVerifierUnsafe, Session: in.Session}.Encode().Bytes()
	}

	if !h.Sessions.SetEphemeral(in.Session, in.Ephemeral, B, b, keys.MExpected, keys.HAMK, now) {
		// Lost the compare-and-set race, or the session already advanced
		// past NEGOTIATED: treat as a replay.
		return wire.ErrorSession{Error: wire.SessionErrorNoExist, Session: in.Session}.Encode().Bytes()
	}

	log.Info(ctx, "ephemeral exchanged")
	return wire.AuthEphemeral{Session: in.Session, Ephemeral: B}.Encode().Bytes()
}

func (h *Handler) handleServerProof(ctx context.Context, src net.IP, buf []byte) []byte {
	in, err := wire.DecodeServerProof(buf)
	if err != nil {
		return nil
	}

	log := h.Log.With("session", in.Session)
	now := time.Now()

	row, ok := h.Sessions.Get(in.Session, now)
	if !ok || row.State != session.EphemeralSent {
		return wire.ErrorSession{Error: wire.SessionErrorNoExist, Session: in.Session}.Encode().Bytes()
	}
	log = log.With("correlation_id", row.CorrelationID)

	if !srp.VerifyProof(in.Proof, row.MExpected) {
		log.Warn(ctx, "proof mismatch")
		h.Sessions.Kill(in.Session)
		return wire.ErrorSession{Error: wire.SessionErrorAuthFailed, Session: in.Session}.Encode().Bytes()
	}

	h.Sessions.MarkProven(in.Session)
	h.Credentials.RecordAuthAction(ctx, row.UserID, src, now)

	log.Info(ctx, "authenticated")
	return wire.AuthProof{Session: in.Session, Proof: row.HAMK}.Encode().Bytes()
}
