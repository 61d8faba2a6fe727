package broker

import (
	"crypto/subtle"
	"sync"
)

// authenticator validates CONNECT credentials. With no users registered it
// allows anonymous connections; once credentials are configured, anonymous
// clients are refused.
type authenticator struct {
	mu    sync.RWMutex
	users map[string]string
}

func newAuthenticator() *authenticator {
	return &authenticator{
		users: make(map[string]string),
	}
}

// AddUser registers a username/password pair
func (a *authenticator) AddUser(username, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[username] = password
}

// Required reports whether clients must present credentials
func (a *authenticator) Required() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users) > 0
}

// Authenticate checks the supplied credentials. Comparison is constant
// time to avoid leaking password prefixes.
func (a *authenticator) Authenticate(username string, password []byte) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.users) == 0 {
		return true
	}

	expected, ok := a.users[username]
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), password) == 1
}
