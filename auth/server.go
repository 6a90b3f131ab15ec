package auth

import (
	"errors"
	"log"
	"net"
	"strconv"
	"time"

	"courier/storage"
	"courier/wire"
)

// Server exposes the credential service over the wire protocol, one
// exchange per connection.
type Server struct {
	service *Service
	port    int
	timeout time.Duration
}

func NewServer(service *Service, port int, timeout time.Duration) *Server {
	return &Server{service: service, port: port, timeout: timeout}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Printf("Auth service listening on port %d", s.port)
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("Error accepting auth connection: %v", err)
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
		log.Printf("Error reading auth request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	resp := s.handleRequest(&req)
	if err := wire.WriteFrame(conn, resp); err != nil {
		log.Printf("Error writing auth response to %s: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) handleRequest(req *wire.Request) *wire.Response {
	switch req.Action {
	case "registrar_usuario":
		if err := s.service.Register(req.Username, req.Password); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return wire.Errorf("Usuario ya existe")
			}
			log.Printf("Register error: %v", err)
			return wire.Errorf("%v", err)
		}
		return wire.OK("Usuario registrado exitosamente")

	case "iniciar_sesion":
		if err := s.service.Login(req.Username, req.Password); err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				return wire.Errorf("Usuario no encontrado")
			case errors.Is(err, ErrWrongPassword):
				return wire.Errorf("Contraseña incorrecta")
			}
			log.Printf("Login error: %v", err)
			return wire.Errorf("%v", err)
		}
		return wire.OK("Inicio de sesión exitoso")

	case "verificar_usuario":
		exists, err := s.service.Verify(req.Username)
		if err != nil {
			log.Printf("Verify error: %v", err)
			return wire.Errorf("%v", err)
		}
		if !exists {
			return wire.Errorf("Usuario no encontrado")
		}
		return &wire.Response{Status: wire.StatusSuccess}

	case "obtener_usuarios":
		usernames, err := s.service.Usernames()
		if err != nil {
			log.Printf("List users error: %v", err)
			return wire.Errorf("%v", err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Users: usernames}

	default:
		return wire.Errorf("Acción no válida")
	}
}
