package auth

import (
	"errors"
	"time"

	"courier/wire"
)

// Client talks to the credential service, one connection per call.
type Client struct {
	Addr    string
	Timeout time.Duration
}

func NewClient(addr string) *Client {
	return &Client{Addr: addr, Timeout: 5 * time.Second}
}

func (c *Client) call(req *wire.Request) (*wire.Response, error) {
	return wire.Call(c.Addr, c.Timeout, req)
}

func (c *Client) Register(username, password string) error {
	resp, err := c.call(&wire.Request{
		Action:   "registrar_usuario",
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		return errors.New(resp.Message)
	}
	return nil
}

func (c *Client) Login(username, password string) error {
	resp, err := c.call(&wire.Request{
		Action:   "iniciar_sesion",
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		return errors.New(resp.Message)
	}
	return nil
}

// Verify reports whether username is registered. Downstream failures
// surface as errors, distinct from a clean "not registered".
func (c *Client) Verify(username string) (bool, error) {
	resp, err := c.call(&wire.Request{Action: "verificar_usuario", Username: username})
	if err != nil {
		return false, err
	}
	if resp.Status == wire.StatusSuccess {
		return true, nil
	}
	if resp.Message == "Usuario no encontrado" {
		return false, nil
	}
	return false, errors.New(resp.Message)
}

func (c *Client) Usernames() ([]string, error) {
	resp, err := c.call(&wire.Request{Action: "obtener_usuarios"})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusSuccess {
		return nil, errors.New(resp.Message)
	}
	return resp.Users, nil
}
