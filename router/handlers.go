package router

import (
	"fmt"
	"log"

	"courier/protocol"
)

// flushPending delivers every stored message for a freshly
// authenticated user, oldest first. The storage service marks them
// delivered in the same retrieval, so a reconnect never replays them.
func (s *Server) flushPending(session *Session) {
	records, err := s.storage.TakePending(session.Username)
	if err != nil {
		log.Printf("Error retrieving pending messages for %s: %v", session.Username, err)
		return
	}

	for _, record := range records {
		line := fmt.Sprintf("%s dice: %s\n", record.Sender, record.Message)
		if err := s.push(session.Conn, line); err != nil {
			log.Printf("Error flushing message to %s: %v", session.Username, err)
			return
		}
	}
}

// handleSend routes SEND|<recipient>|<content>: hand the message to a
// live session if possible, otherwise store it. The sender always gets
// an acknowledgement or an error line.
func (s *Server) handleSend(session *Session, args []string) {
	if len(args) != 2 {
		s.push(session.Conn, "Error: Formato incorrecto para SEND\n")
		return
	}
	recipient, content := args[0], args[1]

	exists, err := s.auth.Verify(recipient)
	if err != nil {
		log.Printf("Error validating recipient %s: %v", recipient, err)
		s.push(session.Conn, "Error: Servicio no disponible\n")
		return
	}
	if !exists {
		s.push(session.Conn, "Error: Usuario destinatario no válido\n")
		return
	}

	delivered := false
	if recipientSession, ok := s.getSession(recipient); ok {
		line := fmt.Sprintf("%s dice: %s\n", session.Username, content)
		if err := s.push(recipientSession.Conn, line); err != nil {
			log.Printf("Error delivering to %s, storing instead: %v", recipient, err)
		} else {
			delivered = true
		}
	}

	// A handed-off message is recorded as already delivered so the
	// conversation history stays complete without it ever re-entering
	// the pending queue.
	if err := s.storage.SaveMessage(session.Username, recipient, content, delivered); err != nil {
		log.Printf("Error storing message for %s: %v", recipient, err)
		if !delivered {
			s.push(session.Conn, "Error: No se pudo procesar el mensaje\n")
			return
		}
	}

	s.push(session.Conn, "Mensaje procesado\n")
}

func (s *Server) handleGetUsers(session *Session) {
	usernames, err := s.auth.Usernames()
	if err != nil {
		log.Printf("Error listing users for %s: %v", session.Username, err)
		s.push(session.Conn, "Error: Servicio no disponible\n")
		return
	}

	fields := append([]string{"USER_LIST"}, usernames...)
	s.push(session.Conn, protocol.FormatLine(fields...))
}

// handleGetHistory sends the full conversation with the other user,
// one HISTORY line per record, chronological.
func (s *Server) handleGetHistory(session *Session, args []string) {
	if len(args) != 1 {
		s.push(session.Conn, "Error: Formato incorrecto para GET_HISTORY\n")
		return
	}
	otherUser := args[0]

	records, err := s.storage.Conversation(session.Username, otherUser)
	if err != nil {
		log.Printf("Error fetching history for %s: %v", session.Username, err)
		s.push(session.Conn, "Error: Servicio no disponible\n")
		return
	}

	for _, record := range records {
		if err := s.push(session.Conn, protocol.FormatLine("HISTORY", record.Sender, record.Message)); err != nil {
			return
		}
	}
}

// broadcastNewUser tells every connected session about a registration.
// Best effort: one dead socket must not stop the rest.
func (s *Server) broadcastNewUser(username string) {
	line := protocol.FormatLine("NEW_USER", username)
	for _, session := range s.allSessions() {
		if err := s.push(session.Conn, line); err != nil {
			log.Printf("Error broadcasting new user to %s: %v", session.Username, err)
		}
	}
}
