// Package auth implements the credential service: registration,
// password verification and the registered-user listing, all backed by
// the storage service.
package auth

import (
	"errors"
	"log"
	"time"

	"courier/storage"
	"courier/wire"

	"golang.org/x/crypto/bcrypt"
)

var ErrWrongPassword = errors.New("wrong password")

type Service struct {
	storage    *storage.Client
	notifyAddr string
	timeout    time.Duration
}

// NewService wires the service to storage and to the router's
// notification endpoint. notifyAddr may be empty to disable
// notifications.
func NewService(storageClient *storage.Client, notifyAddr string) *Service {
	return &Service{
		storage:    storageClient,
		notifyAddr: notifyAddr,
		timeout:    5 * time.Second,
	}
}

// Register hashes the password and stores the user. Duplicate
// resolution is left entirely to the storage layer's atomic save.
func (s *Service) Register(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.storage.SaveUser(username, string(hash)); err != nil {
		return err
	}

	s.notifyNewUser(username)
	return nil
}

func (s *Service) Login(username, password string) error {
	user, err := s.storage.GetUser(username)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// Verify reports whether the username is registered.
func (s *Service) Verify(username string) (bool, error) {
	_, err := s.storage.GetUser(username)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Usernames() ([]string, error) {
	return s.storage.Usernames()
}

// notifyNewUser tells the router about a fresh registration so it can
// broadcast to connected clients. Best effort: a dead router must not
// fail the registration.
func (s *Service) notifyNewUser(username string) {
	if s.notifyAddr == "" {
		return
	}

	err := wire.Notify(s.notifyAddr, s.timeout, &wire.Request{
		Action:   "nuevo_usuario",
		Username: username,
	})
	if err != nil {
		log.Printf("Error notifying router about %s: %v", username, err)
	}
}
