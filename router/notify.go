package router

import (
	"errors"
	"log"
	"net"
	"time"

	"courier/wire"
)

// ServeNotifications accepts one-shot connections from the credential
// service on the secondary endpoint. No response is sent.
func (s *Server) ServeNotifications(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("Error accepting notification: %v", err)
			continue
		}

		go s.handleNotification(conn)
	}
}

func (s *Server) handleNotification(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(s.config.WriteTimeout))

	var req wire.Request
	if err := wire.ReadFrame(conn, &req); err != nil {
		log.Printf("Error reading notification from %s: %v", conn.RemoteAddr(), err)
		return
	}

	if req.Action == "nuevo_usuario" && req.Username != "" {
		log.Printf("New user registered: %s", req.Username)
		s.broadcastNewUser(req.Username)
	}
}
