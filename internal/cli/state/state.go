// Package state persists the credgate-cli login session on disk.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

const (
	sessionFile  = "session.yaml"
	deviceIDFile = "device_id"

	dirMode  = 0o700
	fileMode = 0o600
)

// ErrNoSession is returned by Load when no session file exists.
var ErrNoSession = errors.New("not logged in")

// User is the profile slice of the authenticated account kept client-side.
type User struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role,omitempty"`
}

// Session is the persisted outcome of a successful login. It is only
// ever written after the server has accepted the credentials.
type Session struct {
	Server  string    `yaml:"server"`
	Token   string    `yaml:"token"`
	User    User      `yaml:"user"`
	SavedAt time.Time `yaml:"saved_at"`
}

// Store reads and writes the session file under a single directory,
// by default ~/.credgate.
type Store struct {
	dir string
}

// NewStore creates a store rooted at ~/.credgate.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return NewStoreAt(filepath.Join(home, ".credgate")), nil
}

// NewStoreAt creates a store rooted at the given directory.
func NewStoreAt(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the session file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, sessionFile)
}

// Save writes the session file. The write goes through a temp file and
// a rename so a crash never leaves a half-written session behind.
func (s *Store) Save(sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session is nil")
	}
	if sess.Token == "" {
		return fmt.Errorf("refusing to save a session without a token")
	}
	if sess.SavedAt.IsZero() {
		sess.SavedAt = time.Now().UTC()
	}

	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return s.writeFileAtomic(s.Path(), data)
}

// Load reads the session file. A missing file is reported as
// ErrNoSession so callers can distinguish "not logged in" from a
// corrupt or unreadable file.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Clear removes the session file. Clearing an absent session is not an
// error.
func (s *Store) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// DeviceID returns this machine's stable device identifier, generating
// and persisting one on first use. The ID survives logout so the
// server can correlate sessions from the same machine over time.
func (s *Store) DeviceID() (string, error) {
	path := filepath.Join(s.dir, deviceIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	if err := s.writeFileAtomic(path, []byte(id+"\n")); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	// MkdirAll leaves the mode of a pre-existing directory alone.
	if err := os.Chmod(s.dir, dirMode); err != nil {
		return fmt.Errorf("chmod %s: %w", s.dir, err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over the target. The file holds a credential, hence 0600.
func (s *Store) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := tmp.Chmod(fileMode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
