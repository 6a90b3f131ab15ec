package storage

import "courier/models"

// In-process caches in front of the sqlite store. They carry no locks
// of their own: every method runs inside the Engine's critical
// section, which is what keeps them from ever diverging from durable
// state.

type userCache struct {
	users map[string]*models.User
}

func newUserCache() *userCache {
	return &userCache{users: make(map[string]*models.User)}
}

func (c *userCache) get(username string) (*models.User, bool) {
	user, ok := c.users[username]
	return user, ok
}

func (c *userCache) put(user *models.User) {
	c.users[user.Username] = user
}

// pendingCache maps receiver -> undelivered messages. An entry being
// present means it is authoritative for that receiver, including the
// empty slice right after a pickup; an absent entry means the store
// must be consulted.
type pendingCache struct {
	pending map[string][]models.Message
}

func newPendingCache() *pendingCache {
	return &pendingCache{pending: make(map[string][]models.Message)}
}

func (c *pendingCache) get(receiver string) ([]models.Message, bool) {
	messages, ok := c.pending[receiver]
	return messages, ok
}

// append adds a stored message to an existing entry. A receiver with
// no entry stays uncached; the next pickup loads from the store.
func (c *pendingCache) append(m models.Message) {
	if messages, ok := c.pending[m.Receiver]; ok {
		c.pending[m.Receiver] = append(messages, m)
	}
}

// reset marks the receiver's pending set as authoritatively empty.
func (c *pendingCache) reset(receiver string) {
	c.pending[receiver] = nil
}
