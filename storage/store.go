package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"courier/models"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrAlreadyExists = errors.New("user already exists")
	ErrNotFound      = errors.New("not found")
)

// Store is the durable half of the persistence engine, a single sqlite
// file. It performs no caching and no locking of its own; the Engine
// serializes access.
type Store struct {
	conn *sql.DB
}

func OpenStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &Store{conn: conn}
	if err := store.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			message TEXT NOT NULL,
			is_delivered INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver, is_delivered)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver, timestamp)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// InsertUser adds a user record. The UNIQUE constraint on username is
// the sole arbiter of duplicates: concurrent inserts of the same name
// resolve to exactly one winner.
func (s *Store) InsertUser(username, passwordHash string) error {
	_, err := s.conn.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) SelectUser(username string) (*models.User, error) {
	var user models.User
	err := s.conn.QueryRow(
		"SELECT id, username, password_hash FROM users WHERE username = ?",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) SelectUsernames() ([]string, error) {
	rows, err := s.conn.Query("SELECT username FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}

	return usernames, rows.Err()
}

func (s *Store) InsertMessage(sender, receiver, body string, delivered bool, timestamp time.Time) (int64, error) {
	result, err := s.conn.Exec(
		"INSERT INTO messages (sender, receiver, message, is_delivered, timestamp) VALUES (?, ?, ?, ?, ?)",
		sender, receiver, body, delivered, timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// TakePending selects all undelivered messages for receiver and marks
// them delivered inside one transaction, so a message can never be
// handed out by the offline path twice.
func (s *Store) TakePending(receiver string) ([]models.Message, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, sender, receiver, message, is_delivered, timestamp
		 FROM messages
		 WHERE receiver = ? AND is_delivered = 0
		 ORDER BY timestamp ASC, id ASC`,
		receiver,
	)
	if err != nil {
		return nil, err
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		if _, err := tx.Exec(
			"UPDATE messages SET is_delivered = 1 WHERE receiver = ? AND is_delivered = 0",
			receiver,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkDelivered flips the delivered flag for the given message ids.
// Used when the pending set was served from the cache.
func (s *Store) MarkDelivered(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.conn.Exec(
		"UPDATE messages SET is_delivered = 1 WHERE id IN ("+placeholders+")",
		args...,
	)
	return err
}

// SelectConversation returns every message between the two users in
// either direction, delivered or not, oldest first.
func (s *Store) SelectConversation(userA, userB string) ([]models.Message, error) {
	rows, err := s.conn.Query(
		`SELECT id, sender, receiver, message, is_delivered, timestamp
		 FROM messages
		 WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		 ORDER BY timestamp ASC, id ASC`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var timestampStr string
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Body, &m.Delivered, &timestampStr); err != nil {
			return nil, err
		}

		timestamp, err := time.Parse(time.RFC3339Nano, timestampStr)
		if err != nil {
			return nil, err
		}
		m.Timestamp = timestamp

		messages = append(messages, m)
	}

	return messages, rows.Err()
}
