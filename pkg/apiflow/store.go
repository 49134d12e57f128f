package apiflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// StoreType represents the type of context store backend.
type StoreType string

const (
	// StoreTypeMemory keeps resolved values for the process lifetime only.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeFile persists resolved values to a JSON file.
	StoreTypeFile StoreType = "file"

	// StoreTypeNATS persists resolved values in a NATS KV bucket.
	StoreTypeNATS StoreType = "nats"
)

// Static errors for err113 compliance.
var (
	ErrFileConfigRequired   = errors.New("file configuration required for file store")
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS store")
	ErrUnsupportedStoreType = errors.New("unsupported store type")
)

// ContextStore persists a session's resolved values between runs.
type ContextStore interface {
	// Load reads the persisted values. A store that has never been
	// saved returns an empty map.
	Load(ctx context.Context) (map[string]interface{}, error)

	// Save replaces the persisted values.
	Save(ctx context.Context, values map[string]interface{}) error

	// Clear discards the persisted values.
	Clear(ctx context.Context) error
}

// StoreConfig configures a context store backend.
type StoreConfig struct {
	// Type is the store backend type
	Type StoreType

	// File store configuration
	File *FileStoreConfig

	// NATS KV store configuration
	NATS *NATSStoreConfig
}

// FileStoreConfig configures a file-backed store.
type FileStoreConfig struct {
	// Path is the JSON file location.
	Path string
}

// NATSStoreConfig configures a NATS KV backed store.
type NATSStoreConfig struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string

	// Bucket is the KV bucket name.
	Bucket string

	// Key is the entry key inside the bucket. Defaults to "context".
	Key string

	// Credentials is an optional NATS credentials file path.
	Credentials string
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Type: StoreTypeMemory,
	}
}

// NewStoreFromConfig creates a context store from configuration.
func NewStoreFromConfig(config *StoreConfig) (ContextStore, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}

	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeFile:
		if config.File == nil || config.File.Path == "" {
			return nil, ErrFileConfigRequired
		}

		return NewFileStore(config.File.Path), nil

	case StoreTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSStore(config.NATS)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// MemoryStore keeps values in process memory. Useful for tests and for
// sessions that should not outlive the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]interface{}),
	}
}

// Load implements ContextStore.
func (s *MemoryStore) Load(_ context.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]interface{}, len(s.values))
	for name, value := range s.values {
		values[name] = value
	}

	return values, nil
}

// Save implements ContextStore.
func (s *MemoryStore) Save(_ context.Context, values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]interface{}, len(values))
	for name, value := range values {
		s.values[name] = value
	}

	return nil
}

// Clear implements ContextStore.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]interface{})

	return nil
}

// FileStore persists values as a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the JSON file at path. The
// parent directory is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements ContextStore.
func (s *FileStore) Load(_ context.Context) (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}

		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	values := make(map[string]interface{})

	err = json.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return values, nil
}

// Save implements ContextStore.
func (s *FileStore) Save(_ context.Context, values map[string]interface{}) error {
	err := os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear implements ContextStore.
func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}

	return nil
}

const defaultNATSKey = "context"

// NATSStore persists values as a single JSON entry in a NATS KV
// bucket, so a session can be shared across machines.
type NATSStore struct {
	conn   *nats.Conn
	bucket nats.KeyValue
	key    string
}

// NewNATSStore connects to NATS and opens (or creates) the configured
// KV bucket.
func NewNATSStore(config *NATSStoreConfig) (*NATSStore, error) {
	opts := []nats.Option{nats.Name("apiflow-context")}

	if config.Credentials != "" {
		opts = append(opts, nats.UserCredentials(config.Credentials))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: config.Bucket,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open KV bucket %q: %w", config.Bucket, err)
	}

	key := config.Key
	if key == "" {
		key = defaultNATSKey
	}

	return &NATSStore{conn: conn, bucket: bucket, key: key}, nil
}

// Load implements ContextStore.
func (s *NATSStore) Load(_ context.Context) (map[string]interface{}, error) {
	entry, err := s.bucket.Get(s.key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return make(map[string]interface{}), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read context from NATS: %w", err)
	}

	values := make(map[string]interface{})

	err = json.Unmarshal(entry.Value(), &values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse context entry: %w", err)
	}

	return values, nil
}

// Save implements ContextStore.
func (s *NATSStore) Save(_ context.Context, values map[string]interface{}) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	_, err = s.bucket.Put(s.key, data)
	if err != nil {
		return fmt.Errorf("failed to write context to NATS: %w", err)
	}

	return nil
}

// Clear implements ContextStore.
func (s *NATSStore) Clear(_ context.Context) error {
	err := s.bucket.Delete(s.key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear context in NATS: %w", err)
	}

	return nil
}

// Close releases the NATS connection.
func (s *NATSStore) Close() {
	s.conn.Close()
}

// StoreBuilder helps build store configurations.
type StoreBuilder struct {
	config *StoreConfig
}

// NewStoreBuilder creates a new store builder.
func NewStoreBuilder() *StoreBuilder {
	return &StoreBuilder{
		config: DefaultStoreConfig(),
	}
}

// WithType sets the store type.
func (b *StoreBuilder) WithType(storeType StoreType) *StoreBuilder {
	b.config.Type = storeType

	return b
}

// WithFile selects a file-backed store at path.
func (b *StoreBuilder) WithFile(path string) *StoreBuilder {
	b.config.Type = StoreTypeFile
	b.config.File = &FileStoreConfig{Path: path}

	return b
}

// WithNATS selects a NATS KV backed store.
func (b *StoreBuilder) WithNATS(config *NATSStoreConfig) *StoreBuilder {
	b.config.Type = StoreTypeNATS
	b.config.NATS = config

	return b
}

// Build creates the store from the configuration.
func (b *StoreBuilder) Build() (ContextStore, error) {
	return NewStoreFromConfig(b.config)
}
