// Package store is the client's persisted key/value storage: the bearer
// token, the identity it belongs to and the portal cookies. Every write
// publishes a Change so the token mirror can react without polling.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	_ "modernc.org/sqlite"
)

// Keys owned by the credential helpers.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrCorrupt is returned when the stored identity is not valid JSON or has
// no id.
var ErrCorrupt = errors.New("stored identity is corrupt")

// ErrIncompleteIdentity is returned by SaveCredential for an identity that
// Identity would later reject.
var ErrIncompleteIdentity = errors.New("identity has no id")

// Change names a key that was written or deleted.
type Change struct {
	Key string
}

// KV is the raw storage behind a Store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type Store struct {
	kv KV

	mu   sync.Mutex
	subs map[chan Change]struct{}
}

func New(kv KV) *Store {
	return &Store{kv: kv, subs: make(map[chan Change]struct{})}
}

// Open returns a Store persisted in the sqlite file at path.
func Open(path string) (*Store, error) {
	kv, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// NewMemory returns a Store that lives only as long as the process.
func NewMemory() *Store {
	return New(newMemoryKV())
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return s.kv.Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	s.publish(key)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.publish(key)
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.kv.Keys(ctx, prefix)
}

// Subscribe returns a channel of changes and a func that ends the
// subscription. Slow subscribers miss events rather than block writers.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) publish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- Change{Key: key}:
		default:
		}
	}
}

// Token returns the persisted bearer token, or "" when there is none.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyToken)
	return v, err
}

// Identity returns the persisted identity. A value that does not decode, or
// decodes without an id, yields ErrCorrupt.
func (s *Store) Identity(ctx context.Context) (*authdomain.Identity, error) {
	raw, ok, err := s.kv.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	var user authdomain.Identity
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		return nil, ErrCorrupt
	}
	return &user, nil
}

// SaveCredential persists token and identity together.
func (s *Store) SaveCredential(ctx context.Context, token string, user *authdomain.Identity) error {
	if user == nil || user.ID == "" {
		return ErrIncompleteIdentity
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.Set(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	return s.Set(ctx, KeyToken, token)
}

// ClearCredential removes token and identity.
func (s *Store) ClearCredential(ctx context.Context) error {
	return errors.Join(s.Delete(ctx, KeyToken), s.Delete(ctx, KeyUser))
}

type sqliteKV struct {
	db *sql.DB
}

func OpenSQLite(path string) (KV, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteKV{db: db}, nil
}

func (k *sqliteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (k *sqliteKV) Set(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`, key, value)
	return err
}

func (k *sqliteKV) Delete(ctx context.Context, key string) error {
	_, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

func (k *sqliteKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (k *sqliteKV) Close() error {
	return k.db.Close()
}

type memoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryKV) Close() error { return nil }
