// Package file provides the YAML file-backed user directory backend.
//
// The users file is loaded through koanf and its parent directory is
// watched, so accounts edited outside the process are picked up without
// a restart. Writes rewrite the whole file through a temp-file rename,
// so readers never observe a half-written directory.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/infra/confloader"
)

// userRecord is the on-disk form of a directory account.
type userRecord struct {
	ID           string   `yaml:"id"`
	Username     string   `yaml:"username"`
	DisplayName  string   `yaml:"display_name,omitempty"`
	PasswordHash string   `yaml:"password_hash"`
	Role         string   `yaml:"role"`
	Status       string   `yaml:"status"`
	Allowlist    []string `yaml:"allowlist,omitempty"`
	FailedLogins int      `yaml:"failed_logins,omitempty"`
	LockedUntil  int64    `yaml:"locked_until,omitempty"`
	LastLogin    int64    `yaml:"last_login,omitempty"`
	LastLoginIP  string   `yaml:"last_login_ip,omitempty"`
	CreatedAt    int64    `yaml:"created_at"`
	UpdatedAt    int64    `yaml:"updated_at"`
	CreatedBy    string   `yaml:"created_by,omitempty"`
	Version      uint64   `yaml:"version"`
}

// usersFile is the document stored at the configured path.
type usersFile struct {
	Users []userRecord `yaml:"users"`
}

// Store provides file-backed storage for directory accounts.
type Store struct {
	path    string
	logger  *slog.Logger
	watcher *confloader.Watcher

	mu     sync.RWMutex
	users  map[string]*domain.User // id -> user
	byName map[string]string       // username -> id
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for reload events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens the users file at path and starts watching it for changes.
// A missing file is treated as an empty directory; the first write
// creates it.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.Default(),
		users:  make(map[string]*domain.User),
		byName: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.reload(); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("directory: stat users file: %w", err)
	} else {
		s.logger.Info("users file not found, starting with empty directory",
			"path", path,
		)
	}

	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("directory: create watcher: %w", err)
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("directory: watch users file: %w", err)
	}

	watcher.OnChange(func(changed string) {
		// The watcher reports every file in the parent directory
		if filepath.Base(changed) != filepath.Base(path) {
			return
		}
		if err := s.reload(); err != nil {
			s.logger.Error("users file reload failed, keeping previous state",
				"path", path,
				"error", err,
			)
		}
	})
	watcher.StartAsync()
	s.watcher = watcher

	return s, nil
}

// reload re-reads the users file and swaps in the parsed state.
func (s *Store) reload() error {
	doc, err := readUsersFile(s.path)
	if err != nil {
		return err
	}

	users := make(map[string]*domain.User, len(doc.Users))
	byName := make(map[string]string, len(doc.Users))
	for i := range doc.Users {
		user := fromRecord(&doc.Users[i])
		if user.ID == "" || user.Username == "" {
			return fmt.Errorf("directory: users file entry %d missing id or username", i)
		}
		users[user.ID] = user
		byName[user.Username] = user.ID
	}

	s.mu.Lock()
	s.users = users
	s.byName = byName
	s.mu.Unlock()

	s.logger.Debug("users file loaded",
		"path", s.path,
		"accounts", len(users),
	)
	return nil
}

func readUsersFile(path string) (*usersFile, error) {
	k := koanf.New(".")
	if err := k.Load(kfile.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("directory: load users file: %w", err)
	}

	var doc usersFile
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("directory: parse users file: %w", err)
	}
	return &doc, nil
}

// persistLocked rewrites the users file. The caller holds the write lock.
func (s *Store) persistLocked() error {
	doc := usersFile{Users: make([]userRecord, 0, len(s.users))}
	for _, user := range s.users {
		doc.Users = append(doc.Users, toRecord(user))
	}
	// Stable order keeps file diffs readable
	sort.Slice(doc.Users, func(i, j int) bool {
		return doc.Users[i].Username < doc.Users[j].Username
	})

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("directory: marshal users file: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("directory: write temp users file: %w", err)
	}
	defer os.Remove(tempPath)

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("directory: replace users file: %w", err)
	}
	return nil
}

// ============================================================================
// UserRepository implementation
// ============================================================================

// Create creates a new account and rewrites the file.
func (s *Store) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[user.Username]; exists {
		return domain.ErrUserConflict
	}
	if _, exists := s.users[user.ID]; exists {
		return domain.ErrUserConflict
	}

	s.users[user.ID] = user.Clone()
	s.byName[user.Username] = user.ID

	if err := s.persistLocked(); err != nil {
		delete(s.users, user.ID)
		delete(s.byName, user.Username)
		return err
	}
	return nil
}

// Get retrieves an account by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

// GetByUsername retrieves an account by its lowercase login name.
func (s *Store) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

// Update updates an existing account and rewrites the file.
func (s *Store) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	if existing.Username != user.Username {
		if _, taken := s.byName[user.Username]; taken {
			return domain.ErrUserConflict
		}
		delete(s.byName, existing.Username)
		s.byName[user.Username] = user.ID
	}

	s.users[user.ID] = user.Clone()

	if err := s.persistLocked(); err != nil {
		// Restore the previous record so memory matches the file
		s.users[user.ID] = existing
		if existing.Username != user.Username {
			delete(s.byName, user.Username)
			s.byName[existing.Username] = user.ID
		}
		return err
	}
	return nil
}

// List retrieves all accounts.
func (s *Store) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user.Clone())
	}
	return users, nil
}

// Count returns the number of accounts.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Close stops the file watcher.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// ============================================================================
// Record conversion
// ============================================================================

func toRecord(u *domain.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		Allowlist:    u.Allowlist,
		FailedLogins: u.FailedLogins,
		LockedUntil:  u.LockedUntil,
		LastLogin:    u.LastLogin,
		LastLoginIP:  u.LastLoginIP,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		CreatedBy:    u.CreatedBy,
		Version:      u.Version,
	}
}

func fromRecord(r *userRecord) *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		Status:       domain.UserStatus(r.Status),
		Allowlist:    r.Allowlist,
		FailedLogins: r.FailedLogins,
		LockedUntil:  r.LockedUntil,
		LastLogin:    r.LastLogin,
		LastLoginIP:  r.LastLoginIP,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CreatedBy:    r.CreatedBy,
		Version:      r.Version,
	}
}
