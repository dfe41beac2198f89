package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/quailyquaily/wingmate/internal/fsstore"
)

const usersFileVersion = 1

type usersFile struct {
	Version int              `json:"version"`
	Users   map[string]*User `json:"users"`
}

// FileRepository keeps every user record in one users.json under the
// state directory. Records live in memory and are written through on
// each mutation; a failed write is logged and the in-memory state stays
// authoritative until the next successful save.
type FileRepository struct {
	path     string
	lockPath string
	logger   *slog.Logger

	mu     sync.Mutex
	loaded bool
	users  map[string]*User
	locks  map[string]*sync.Mutex

	// saveMu keeps each marshal+write pair in snapshot order so an
	// older snapshot can never land on disk after a newer one.
	saveMu sync.Mutex
}

func NewFileRepository(path string, logger *slog.Logger) *FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	path = strings.TrimSpace(path)
	// A second process on the same state dir contends on this lock; the
	// in-process mutexes cover everything else.
	lockPath, err := fsstore.BuildLockPath(filepath.Join(filepath.Dir(path), ".fslocks"), "users.main")
	if err != nil {
		lockPath = ""
	}
	return &FileRepository{
		path:     path,
		lockPath: lockPath,
		logger:   logger,
		users:    map[string]*User{},
		locks:    map[string]*sync.Mutex{},
	}
}

func (r *FileRepository) Ensure(ctx context.Context) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	if err := fsstore.EnsureDir(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	return nil
}

// loadLocked reads users.json once. A corrupt or missing store
// initializes to empty without failing the process.
func (r *FileRepository) loadLocked() {
	if r.loaded {
		return
	}
	r.loaded = true

	var file usersFile
	exists, err := fsstore.ReadJSON(r.path, &file)
	if err != nil {
		r.logger.Warn("users store unreadable, starting empty", "path", r.path, "error", err)
		return
	}
	if !exists {
		return
	}
	for id, u := range file.Users {
		r.users[id] = NormalizeUser(id, u)
	}
	r.logger.Debug("users store loaded", "path", r.path, "users", len(r.users), "version", file.Version)
}

func (r *FileRepository) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}

func (r *FileRepository) Mutate(ctx context.Context, userID string, fn func(*User) error) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if fn == nil {
		return nil
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Held through the write below. Lock order: userLock, saveMu, mu.
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	// fn runs under the store mutex as well: a concurrent save for a
	// different user marshals the whole map and must not observe this
	// record mid-mutation. fn is pure in-memory work, never I/O.
	r.mu.Lock()
	u, ok := r.users[userID]
	if !ok {
		u = NewUser(userID)
		r.users[userID] = u
	}
	if err := fn(u); err != nil {
		r.mu.Unlock()
		return err
	}
	file := usersFile{Version: usersFileVersion, Users: r.users}
	data, err := json.MarshalIndent(file, "", "  ")
	r.mu.Unlock()

	// Write failure is a durability gap, not a request failure: it is
	// logged and the caller's mutation stands in memory.
	if err != nil {
		r.logger.Warn("users store encode failed", "path", r.path, "error", err)
		return nil
	}
	saveErr := r.withFileLock(ctx, func() error {
		return fsstore.WriteJSONAtomic(r.path, json.RawMessage(data), fsstore.FileOptions{})
	})
	if saveErr != nil {
		r.logger.Warn("users store save failed, in-memory state remains authoritative", "path", r.path, "error", saveErr)
	}
	return nil
}

func (r *FileRepository) withFileLock(ctx context.Context, fn func() error) error {
	if r.lockPath == "" {
		return fn()
	}
	return fsstore.WithLock(ctx, r.lockPath, fn)
}

func (r *FileRepository) Snapshot(ctx context.Context, userID string) (*User, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	u, ok := r.users[userID]
	if !ok {
		u = NewUser(userID)
		r.users[userID] = u
	}
	snapshot := u.Clone()
	r.mu.Unlock()
	return snapshot, nil
}

func (r *FileRepository) UserIDs(ctx context.Context) ([]string, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *FileRepository) RawExport(ctx context.Context) ([]byte, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	file := usersFile{Version: usersFileVersion, Users: r.users}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fsstore.ErrEncodeFailed, err)
	}
	return append(data, '\n'), nil
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
