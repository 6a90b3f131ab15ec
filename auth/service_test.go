package auth

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"courier/storage"
	"courier/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startStack brings up a real storage service and an auth service on
// ephemeral ports and returns a client for the latter.
func startStack(t *testing.T, notifyAddr string) *Client {
	t.Helper()

	store, err := storage.OpenStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	storageListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { storageListener.Close() })
	go storage.NewServer(storage.NewEngine(store), 0, 5*time.Second).Serve(storageListener)

	service := NewService(storage.NewClient(storageListener.Addr().String()), notifyAddr)

	authListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { authListener.Close() })
	go NewServer(service, 0, 5*time.Second).Serve(authListener)

	return NewClient(authListener.Addr().String())
}

func TestRegisterAndLogin(t *testing.T) {
	client := startStack(t, "")

	require.NoError(t, client.Register("alice", "p1"))

	err := client.Register("alice", "otra")
	require.Error(t, err)
	assert.Equal(t, "Usuario ya existe", err.Error())

	assert.NoError(t, client.Login("alice", "p1"))

	err = client.Login("alice", "equivocada")
	require.Error(t, err)
	assert.Equal(t, "Contraseña incorrecta", err.Error())

	err = client.Login("nadie", "p1")
	require.Error(t, err)
	assert.Equal(t, "Usuario no encontrado", err.Error())
}

func TestVerifyAndList(t *testing.T) {
	client := startStack(t, "")

	require.NoError(t, client.Register("alice", "p1"))
	require.NoError(t, client.Register("bob", "p2"))

	exists, err := client.Verify("alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.Verify("nadie")
	require.NoError(t, err)
	assert.False(t, exists)

	usernames, err := client.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames)
}

func TestRegisterNotifiesRouter(t *testing.T) {
	notifyListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer notifyListener.Close()

	received := make(chan wire.Request, 1)
	go func() {
		conn, err := notifyListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req wire.Request
		if err := wire.ReadFrame(conn, &req); err == nil {
			received <- req
		}
	}()

	client := startStack(t, notifyListener.Addr().String())
	require.NoError(t, client.Register("carol", "p3"))

	select {
	case req := <-received:
		assert.Equal(t, "nuevo_usuario", req.Action)
		assert.Equal(t, "carol", req.Username)
	case <-time.After(5 * time.Second):
		t.Fatal("registration notification never arrived")
	}
}

func TestRegisterSurvivesDeadNotifyEndpoint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := listener.Addr().String()
	listener.Close()

	client := startStack(t, deadAddr)
	assert.NoError(t, client.Register("dave", "p4"))
}

func TestUnknownAction(t *testing.T) {
	client := startStack(t, "")

	resp, err := wire.Call(client.Addr, client.Timeout, &wire.Request{Action: "volar"})
	require.NoError(t, err)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Equal(t, "Acción no válida", resp.Message)
}
