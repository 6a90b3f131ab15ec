// Package router implements the message router: it authenticates
// client connections against the credential service, tracks which
// users are currently reachable, and routes chat messages either
// directly to a live session or through the storage service for later
// pickup.
package router

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"courier/auth"
	"courier/protocol"
	"courier/storage"

	"github.com/google/uuid"
)

const authPrompt = "Por favor, autentíquese. Formato: AUTH|<username>\n"

type Config struct {
	Port         int
	NotifyPort   int
	AuthAddr     string
	StorageAddr  string
	WriteTimeout time.Duration
}

// Session is the live binding between an authenticated username and
// its open connection.
type Session struct {
	Username string
	Conn     net.Conn
}

type Server struct {
	config   *Config
	auth     *auth.Client
	storage  *storage.Client
	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(config *Config) *Server {
	return &Server{
		config:   config,
		auth:     auth.NewClient(config.AuthAddr),
		storage:  storage.NewClient(config.StorageAddr),
		sessions: make(map[string]*Session),
	}
}

// Start listens on the client port and the notification port and
// serves both until a listener fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	defer listener.Close()

	notifyListener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.NotifyPort))
	if err != nil {
		return err
	}
	defer notifyListener.Close()

	log.Printf("Message router listening on port %d (notifications on %d)",
		s.config.Port, s.config.NotifyPort)

	go s.ServeNotifications(notifyListener)
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection drives one client through the connection state
// machine: authenticate, flush pending messages, then serve commands
// until the socket dies.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()[:8]
	remoteAddr := conn.RemoteAddr().String()
	log.Printf("[%s] New client connected from %s", connID, remoteAddr)

	if err := s.push(conn, authPrompt); err != nil {
		return
	}

	reader := bufio.NewReader(conn)
	session, ok := s.authenticate(connID, conn, reader)
	if !ok {
		s.push(conn, "Error: Autenticación fallida\n")
		log.Printf("[%s] Authentication failed for %s", connID, remoteAddr)
		return
	}
	defer s.removeSession(session)

	log.Printf("[%s] Client %s authenticated", connID, session.Username)
	s.flushPending(session)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("[%s] Error reading from %s: %v", connID, session.Username, err)
			}
			break
		}

		cmd, err := protocol.ParseLine(line)
		if err != nil {
			// A bare newline still gets an answer, same as any other
			// unrecognized input.
			s.push(conn, "Comando no reconocido\n")
			continue
		}

		switch cmd.Name {
		case "SEND":
			s.handleSend(session, cmd.Args)
		case "GET_USERS":
			s.handleGetUsers(session)
		case "GET_HISTORY":
			s.handleGetHistory(session, cmd.Args)
		default:
			s.push(conn, "Comando no reconocido\n")
		}
	}

	log.Printf("[%s] Client %s disconnected from %s", connID, session.Username, remoteAddr)
}

// authenticate performs the AUTH handshake. The username only has to
// exist; credential checks happened at registration time through the
// auth service.
func (s *Server) authenticate(connID string, conn net.Conn, reader *bufio.Reader) (*Session, bool) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, false
	}

	cmd, err := protocol.ParseLine(line)
	if err != nil || cmd.Name != "AUTH" || len(cmd.Args) != 1 || cmd.Args[0] == "" {
		return nil, false
	}
	username := cmd.Args[0]

	exists, err := s.auth.Verify(username)
	if err != nil {
		log.Printf("[%s] Error validating %s: %v", connID, username, err)
		return nil, false
	}
	if !exists {
		return nil, false
	}

	session := &Session{Username: username, Conn: conn}
	s.addSession(session)
	return session, true
}

// addSession registers the session, replacing any previous entry for
// the same username. The superseded connection is left to its own
// read loop; its teardown becomes a no-op.
func (s *Server) addSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Username] = session
}

// removeSession drops the entry only if this session is still the
// current holder of the username.
func (s *Server) removeSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[session.Username]; ok && current == session {
		delete(s.sessions, session.Username)
	}
}

func (s *Server) getSession(username string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[username]
	return session, ok
}

func (s *Server) allSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// push writes one already-terminated line to a connection.
func (s *Server) push(conn net.Conn, line string) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	_, err := conn.Write([]byte(line))
	return err
}
