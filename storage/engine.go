package storage

import (
	"sync"
	"time"

	"courier/models"
)

// Engine is the persistence engine: the sqlite store fronted by
// in-process caches. A single mutex spans cache and store on every
// operation, so no two mutations interleave and the caches never
// diverge from durable state.
type Engine struct {
	mu      sync.Mutex
	store   *Store
	users   *userCache
	pending *pendingCache
}

func NewEngine(store *Store) *Engine {
	return &Engine{
		store:   store,
		users:   newUserCache(),
		pending: newPendingCache(),
	}
}

// SaveUser registers a user. Duplicates fail with ErrAlreadyExists;
// concurrent registrations of the same name resolve to one winner.
func (e *Engine) SaveUser(username, passwordHash string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.InsertUser(username, passwordHash); err != nil {
		return err
	}

	e.users.put(&models.User{Username: username, PasswordHash: passwordHash})
	return nil
}

// GetUser checks the cache first and populates it on a miss.
func (e *Engine) GetUser(username string) (*models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if user, ok := e.users.get(username); ok {
		return user, nil
	}

	user, err := e.store.SelectUser(username)
	if err != nil {
		return nil, err
	}

	e.users.put(user)
	return user, nil
}

func (e *Engine) Usernames() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.SelectUsernames()
}

// SaveMessage appends a message. The timestamp is storage-assigned;
// ordering ties are broken by the insert id. A message saved with
// delivered=true was already handed to a live session: it exists for
// conversation history only and never enters the pending set.
func (e *Engine) SaveMessage(sender, receiver, body string, delivered bool) (models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := models.Message{
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		Delivered: delivered,
		Timestamp: time.Now().UTC(),
	}

	id, err := e.store.InsertMessage(m.Sender, m.Receiver, m.Body, m.Delivered, m.Timestamp)
	if err != nil {
		return models.Message{}, err
	}
	m.ID = id

	if !m.Delivered {
		e.pending.append(m)
	}
	return m, nil
}

// TakePending returns the undelivered messages for receiver, oldest
// first, and marks every one of them delivered in the same critical
// section. A second call returns nothing until new messages arrive.
func (e *Engine) TakePending(receiver string) ([]models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	messages, cached := e.pending.get(receiver)
	if cached {
		ids := make([]int64, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, m.ID)
		}
		if err := e.store.MarkDelivered(ids); err != nil {
			return nil, err
		}
	} else {
		loaded, err := e.store.TakePending(receiver)
		if err != nil {
			return nil, err
		}
		messages = loaded
	}

	e.pending.reset(receiver)

	for i := range messages {
		messages[i].Delivered = true
	}
	return messages, nil
}

func (e *Engine) Conversation(userA, userB string) ([]models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.SelectConversation(userA, userB)
}
