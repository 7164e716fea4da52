package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/planforge/planforge/internal/errors"
)

// FileStore persists each session as one JSON file under a directory.
// Writes go through a temp file and rename so a crash mid-write leaves the
// previous stable snapshot intact.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per participant key
}

// NewFileStore creates a file-backed store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "create session directory", err)
	}
	return &FileStore{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

// lockFor returns the mutex serializing mutations for one participant
func (fs *FileStore) lockFor(participantID string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, ok := fs.locks[participantID]
	if !ok {
		l = &sync.Mutex{}
		fs.locks[participantID] = l
	}
	return l
}

// path maps a participant id to a filesystem-safe file name
func (fs *FileStore) path(participantID string) string {
	return filepath.Join(fs.dir, hex.EncodeToString([]byte(participantID))+".json")
}

// Load implements Store
func (fs *FileStore) Load(ctx context.Context, participantID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.path(participantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStoreNotFoundError(participantID)
		}
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "read session file", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreCorrupt, "parse session file", err)
	}
	return &s, nil
}

// Save implements Store
func (fs *FileStore) Save(ctx context.Context, s *Session) error {
	lock := fs.lockFor(s.ParticipantID)
	lock.Lock()
	defer lock.Unlock()

	return fs.writeLocked(ctx, s)
}

// writeLocked writes a snapshot; callers hold the participant lock
func (fs *FileStore) writeLocked(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal session", err)
	}

	target := fs.path(s.ParticipantID)
	tmp, err := os.CreateTemp(fs.dir, ".session-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write session snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "close session snapshot", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "publish session snapshot", err)
	}
	return nil
}

// AppendTurn implements Store
func (fs *FileStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	participantID, err := fs.resolve(ctx, sessionID)
	if err != nil {
		return err
	}

	lock := fs.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	s, err := fs.Load(ctx, participantID)
	if err != nil {
		return err
	}

	s.Append(turn)
	return fs.writeLocked(ctx, s)
}

// resolve finds the participant owning a session id
func (fs *FileStore) resolve(ctx context.Context, sessionID string) (string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreUnavailable, "scan session directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		s, err := fs.Load(ctx, string(raw))
		if err != nil {
			continue
		}
		if s.ID == sessionID {
			return s.ParticipantID, nil
		}
	}
	return "", errors.New(errors.ErrCodeStoreNotFound, "no session with id "+sessionID)
}

// Delete implements Store
func (fs *FileStore) Delete(ctx context.Context, participantID string) error {
	lock := fs.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(fs.path(participantID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "delete session file", err)
	}
	return nil
}

// List implements Store
func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "scan session directory", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, string(raw))
	}
	sort.Strings(ids)
	return ids, nil
}

// Sweep implements Store
func (fs *FileStore) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "scan session directory", err)
	}

	var swept []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		participantID := string(raw)

		s, err := fs.Load(ctx, participantID)
		if err != nil {
			continue
		}
		if s.Expired(now) {
			if err := fs.Delete(ctx, participantID); err != nil {
				return swept, err
			}
			swept = append(swept, participantID)
		}
	}
	return swept, nil
}

// Close implements Store
func (fs *FileStore) Close() error {
	return nil
}
