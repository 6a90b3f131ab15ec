package storage

import (
	"errors"
	"log"
	"net"
	"strconv"
	"time"

	"courier/models"
	"courier/wire"
)

// Server is the persistence engine's wire front door: one goroutine
// per accepted connection, one request/response exchange per
// connection.
type Server struct {
	engine  *Engine
	port    int
	timeout time.Duration
}

func NewServer(engine *Engine, port int, timeout time.Duration) *Server {
	return &Server{engine: engine, port: port, timeout: timeout}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Printf("Storage service listening on port %d", s.port)
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("Error accepting storage connection: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	var req wire.Request
	if err := wire.ReadFrame(conn, &req); err != nil {
		log.Printf("Error reading storage request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	resp := s.handleRequest(&req)
	if err := wire.WriteFrame(conn, resp); err != nil {
		log.Printf("Error writing storage response to %s: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) handleRequest(req *wire.Request) *wire.Response {
	switch req.Action {
	case "guardar_usuario":
		if err := s.engine.SaveUser(req.Username, req.PasswordHash); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				return wire.Errorf("Usuario ya existe")
			}
			log.Printf("Save user error: %v", err)
			return wire.Errorf("%v", err)
		}
		return wire.OK("Usuario registrado exitosamente")

	case "obtener_usuario":
		user, err := s.engine.GetUser(req.Username)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return wire.Errorf("Usuario no encontrado")
			}
			log.Printf("Get user error: %v", err)
			return wire.Errorf("%v", err)
		}
		return &wire.Response{
			Status: wire.StatusSuccess,
			User:   &wire.UserRecord{Username: user.Username, PasswordHash: user.PasswordHash},
		}

	case "obtener_usuarios":
		usernames, err := s.engine.Usernames()
		if err != nil {
			log.Printf("List users error: %v", err)
			return wire.Errorf("%v", err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Users: usernames}

	case "save_message":
		if _, err := s.engine.SaveMessage(req.Sender, req.Receiver, req.Message, req.Delivered); err != nil {
			log.Printf("Save message error: %v", err)
			return wire.Errorf("%v", err)
		}
		return wire.OK("Mensaje guardado")

	case "get_messages":
		messages, err := s.engine.TakePending(req.Receiver)
		if err != nil {
			log.Printf("Get messages error: %v", err)
			return wire.Errorf("%v", err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Messages: toRecords(messages)}

	case "get_conversation_history":
		messages, err := s.engine.Conversation(req.User1, req.User2)
		if err != nil {
			log.Printf("Conversation error: %v", err)
			return wire.Errorf("%v", err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Messages: toRecords(messages)}

	default:
		return wire.Errorf("Acción no válida")
	}
}

func toRecords(messages []models.Message) []wire.MessageRecord {
	records := make([]wire.MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, wire.MessageRecord{
			Sender:    m.Sender,
			Message:   m.Body,
			Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return records
}
