// Package auth is the user credential store backing the login and register
// endpoints: a flat file of `user:bcrypt-hash` lines loaded into memory at
// startup. Lookups vastly outnumber inserts, so the map is guarded by an
// RWMutex and inserts append to the file under the write lock.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists is returned by Insert for an already-registered name.
	ErrUserExists = errors.New("user already exists")
	// ErrBadUserName is returned for names the file format cannot hold.
	ErrBadUserName = errors.New("invalid user name")
)

// Store maps user names to bcrypt password hashes.
type Store struct {
	mu    sync.RWMutex
	path  string
	users map[string]string
}

// Open loads the credential file at path. A missing file yields an empty
// store; the file is created on the first Insert.
func Open(path string) (*Store, error) {
	s := &Store{path: path, users: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, fmt.Errorf("auth: malformed line %q in %s", line, path)
		}
		s.users[line[:i]] = line[i+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the stored password hash for user.
func (s *Store) Lookup(user string) (string, bool) {
	s.mu.RLock()
	hash, ok := s.users[user]
	s.mu.RUnlock()
	return hash, ok
}

// Verify reports whether password matches the stored hash for user.
func (s *Store) Verify(user, password string) bool {
	hash, ok := s.Lookup(user)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Insert registers a new user, appending to the credential file. The map is
// only updated once the line has been written and the file closed; the file
// is not fsynced.
func (s *Store) Insert(user, password string) error {
	if user == "" || strings.ContainsAny(user, ":\r\n") {
		return ErrBadUserName
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user]; ok {
		return ErrUserExists
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(f, "%s:%s\n", user, hash); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	s.users[user] = string(hash)
	return nil
}

// Len returns the number of registered users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
