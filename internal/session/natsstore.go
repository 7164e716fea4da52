package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/planforge/planforge/internal/errors"
)

// appendRetries bounds the reload-and-reapply loop on revision conflicts.
// A conflict is a storage race, not a semantic one, so reapplying on a fresh
// snapshot is always safe.
const appendRetries = 5

// NATSStore persists sessions in a JetStream key-value bucket. Optimistic
// concurrency via bucket revisions gives the same per-session serialization
// guarantee as the file store's locks.
type NATSStore struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSStore connects to a NATS server and binds (or creates) the bucket
func NewNATSStore(url, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(url, nats.Name("planforge-session-store"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "connect to nats", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "jetstream context", err)
	}

	kv, err := js.KeyValue(bucket)
	if err == nats.ErrBucketNotFound {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "planforge conversational sessions",
			History:     1,
		})
	}
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "bind session bucket", err)
	}

	return &NATSStore{conn: conn, kv: kv}, nil
}

// key maps a participant id to a bucket-safe key
func key(participantID string) string {
	return "p." + hex.EncodeToString([]byte(participantID))
}

// Load implements Store
func (ns *NATSStore) Load(ctx context.Context, participantID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := ns.kv.Get(key(participantID))
	if err == nats.ErrKeyNotFound {
		return nil, errors.NewStoreNotFoundError(participantID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "get session", err)
	}

	var s Session
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreCorrupt, "parse session value", err)
	}
	return &s, nil
}

// loadWithRevision returns the session plus the bucket revision for CAS updates
func (ns *NATSStore) loadWithRevision(participantID string) (*Session, uint64, error) {
	entry, err := ns.kv.Get(key(participantID))
	if err == nats.ErrKeyNotFound {
		return nil, 0, errors.NewStoreNotFoundError(participantID)
	}
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeStoreUnavailable, "get session", err)
	}

	var s Session
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeStoreCorrupt, "parse session value", err)
	}
	return &s, entry.Revision(), nil
}

// Save implements Store
func (ns *NATSStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal session", err)
	}

	if _, err := ns.kv.Put(key(s.ParticipantID), data); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "put session", err)
	}
	return nil
}

// AppendTurn implements Store. The append is retried on revision conflicts:
// reload the fresh snapshot, reapply the turn, attempt the compare-and-set
// update again.
func (ns *NATSStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	participantID, err := ns.resolve(ctx, sessionID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < appendRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, revision, err := ns.loadWithRevision(participantID)
		if err != nil {
			return err
		}

		s.Append(turn)
		data, err := json.Marshal(s)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "marshal session", err)
		}

		_, err = ns.kv.Update(key(participantID), data, revision)
		if err == nil {
			return nil
		}
		// Revision moved under us; loop reloads and reapplies.
	}

	return errors.NewStoreConflictError(sessionID)
}

// resolve finds the participant owning a session id
func (ns *NATSStore) resolve(ctx context.Context, sessionID string) (string, error) {
	keys, err := ns.kv.Keys()
	if err == nats.ErrNoKeysFound {
		return "", errors.New(errors.ErrCodeStoreNotFound, "no session with id "+sessionID)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreUnavailable, "list session keys", err)
	}

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entry, err := ns.kv.Get(k)
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(entry.Value(), &s); err != nil {
			continue
		}
		if s.ID == sessionID {
			return s.ParticipantID, nil
		}
	}
	return "", errors.New(errors.ErrCodeStoreNotFound, "no session with id "+sessionID)
}

// Delete implements Store
func (ns *NATSStore) Delete(ctx context.Context, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := ns.kv.Delete(key(participantID))
	if err != nil && err != nats.ErrKeyNotFound {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "delete session", err)
	}
	return nil
}

// List implements Store
func (ns *NATSStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys, err := ns.kv.Keys()
	if err == nats.ErrNoKeysFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "list session keys", err)
	}

	var ids []string
	for _, k := range keys {
		raw, err := hex.DecodeString(strings.TrimPrefix(k, "p."))
		if err != nil {
			continue
		}
		ids = append(ids, string(raw))
	}
	sort.Strings(ids)
	return ids, nil
}

// Sweep implements Store
func (ns *NATSStore) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	keys, err := ns.kv.Keys()
	if err == nats.ErrNoKeysFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "list session keys", err)
	}

	var swept []string
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		entry, err := ns.kv.Get(k)
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(entry.Value(), &s); err != nil {
			continue
		}
		if s.Expired(now) {
			if err := ns.kv.Delete(k); err != nil {
				return swept, errors.Wrap(errors.ErrCodeStoreUnavailable, "delete expired session", err)
			}
			swept = append(swept, s.ParticipantID)
		}
	}
	return swept, nil
}

// Close implements Store
func (ns *NATSStore) Close() error {
	ns.conn.Close()
	return nil
}
