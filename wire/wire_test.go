package wire

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := &Request{
		Action:   "save_message",
		Sender:   "alice",
		Receiver: "bob",
		Message:  "hola|con,pipes\ny saltos",
	}
	require.NoError(t, WriteFrame(&buf, req))

	var decoded Request
	require.NoError(t, ReadFrame(&buf, &decoded))
	assert.Equal(t, *req, decoded)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)

	var req Request
	err := ReadFrame(bytes.NewReader(header[:]), &req)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 100)
	buf.Write(header[:])
	buf.WriteString("{}")

	var req Request
	assert.Error(t, ReadFrame(&buf, &req))
}

func TestCall(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			return
		}
		WriteFrame(conn, OK("recibido "+req.Action))
	}()

	resp, err := Call(listener.Addr().String(), 5*time.Second, &Request{Action: "obtener_usuarios"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "recibido obtener_usuarios", resp.Message)
}

func TestCallUnavailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = Call(addr, time.Second, &Request{Action: "obtener_usuarios"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
