package storage

import (
	"errors"
	"time"

	"courier/wire"
)

const defaultCallTimeout = 5 * time.Second

// Client talks to the storage service over the wire protocol, one
// freshly opened connection per call.
type Client struct {
	Addr    string
	Timeout time.Duration
}

func NewClient(addr string) *Client {
	return &Client{Addr: addr, Timeout: defaultCallTimeout}
}

func (c *Client) call(req *wire.Request) (*wire.Response, error) {
	return wire.Call(c.Addr, c.Timeout, req)
}

func (c *Client) SaveUser(username, passwordHash string) error {
	resp, err := c.call(&wire.Request{
		Action:       "guardar_usuario",
		Username:     username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		if resp.Message == "Usuario ya existe" {
			return ErrAlreadyExists
		}
		return errors.New(resp.Message)
	}
	return nil
}

func (c *Client) GetUser(username string) (*wire.UserRecord, error) {
	resp, err := c.call(&wire.Request{Action: "obtener_usuario", Username: username})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusSuccess {
		if resp.Message == "Usuario no encontrado" {
			return nil, ErrNotFound
		}
		return nil, errors.New(resp.Message)
	}
	return resp.User, nil
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

// SaveMessage stores a message. delivered=true records an already
// hand-delivered message for conversation history without queueing it.
func (c *Client) SaveMessage(sender, receiver, body string, delivered bool) error {
	resp, err := c.call(&wire.Request{
		Action:    "save_message",
		Sender:    sender,
		Receiver:  receiver,
		Message:   body,
		Delivered: delivered,
	})
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		return errors.New(resp.Message)
	}
	return nil
}

// TakePending retrieves and consumes the receiver's undelivered
// messages; the storage service marks them delivered in the same call.
func (c *Client) TakePending(receiver string) ([]wire.MessageRecord, error) {
	resp, err := c.call(&wire.Request{Action: "get_messages", Receiver: receiver})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusSuccess {
		return nil, errors.New(resp.Message)
	}
	return resp.Messages, nil
}

func (c *Client) Conversation(userA, userB string) ([]wire.MessageRecord, error) {
	resp, err := c.call(&wire.Request{
		Action: "get_conversation_history",
		User1:  userA,
		User2:  userB,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusSuccess {
		return nil, errors.New(resp.Message)
	}
	return resp.Messages, nil
}
