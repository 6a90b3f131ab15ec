// Package wire implements the inter-service protocol: every exchange is
// carried over its own connection as a pair of frames, each frame a
// 4-byte big-endian length followed by a JSON object.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MaxFrameSize bounds a single frame so a malformed peer cannot make
// the reader allocate arbitrary amounts of memory.
const MaxFrameSize = 1 << 20

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrUnavailable wraps any connectivity failure talking to a peer
	// service, so callers can treat it as a recoverable condition.
	ErrUnavailable = errors.New("service unavailable")
)

// Request field names follow the JSON keys the services exchange.
type Request struct {
	Action       string `json:"action"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	Sender       string `json:"sender,omitempty"`
	Receiver     string `json:"receiver,omitempty"`
	Message      string `json:"message,omitempty"`
	Delivered    bool   `json:"delivered,omitempty"`
	User1        string `json:"user1,omitempty"`
	User2        string `json:"user2,omitempty"`
}

type UserRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

type MessageRecord struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type Response struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	User     *UserRecord     `json:"user,omitempty"`
	Users    []string        `json:"users,omitempty"`
	Messages []MessageRecord `json:"messages,omitempty"`
}

func OK(message string) *Response {
	return &Response{Status: StatusSuccess, Message: message}
}

func Errorf(format string, args ...interface{}) *Response {
	return &Response{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func WriteFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func ReadFrame(r io.Reader, v interface{}) error {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(size[:])
	if length > MaxFrameSize {
		return ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// Call performs one request/response exchange against addr over a
// freshly opened connection, closed after the exchange.
func Call(addr string, timeout time.Duration, req *Request) (*Response, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if err := WriteFrame(conn, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &resp, nil
}

// Notify sends a one-way request to addr; the peer sends no response.
func Notify(addr string, timeout time.Duration, req *Request) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if err := WriteFrame(conn, req); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
