package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sauerbraten/srpauth/internal/authproto"
	"github.com/sauerbraten/srpauth/internal/credentials"
	"github.com/sauerbraten/srpauth/internal/logging"
	"github.com/sauerbraten/srpauth/internal/session"
	"github.com/sauerbraten/srpauth/internal/wire"
)

func TestServeRepliesToNegotiateAndStopsOnCancel(t *testing.T) {
	creds := credentials.NewMemoryStore()
	sessions := session.New(time.Minute)
	log := logging.NewTextLogger(1 << 20)
	h := authproto.New(creds, sessions, log)

	l, err := Bind(0, h, log, 2)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- l.Serve(ctx) }()

	clientConn, err := net.DialUDP("udp", nil, l.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	req := wire.ServerNegotiate{Version: 2, Username: "nobody"}.Encode().Bytes()
	_, err = clientConn.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 1024)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	require.NoError(t, err)

	reply, err := wire.DecodeErrorUser(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.UserErrorNoExist, reply.Error)
	require.Equal(t, "nobody", reply.Username)

	cancel()
	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeDropsMalformedDatagramSilently(t *testing.T) {
	creds := credentials.NewMemoryStore()
	sessions := session.New(time.Minute)
	log := logging.NewTextLogger(1 << 20)
	h := authproto.New(creds, sessions, log)

	l, err := Bind(0, h, log, 1)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	clientConn, err := net.DialUDP("udp", nil, l.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	_, err = clientConn.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	clientConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	_, err = clientConn.Read(buf)
	require.Error(t, err) // expect a read timeout: no reply was sent
}
