package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sitepulse/engine/internal/clock"
)

// fsEntry is the serialised form of a file cache entry. The digest covers the
// raw value bytes so a mangled file is detected before its value is trusted.
type fsEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Digest    string          `json:"digest"`
	CreatedAt time.Time       `json:"createdAt"`
	TTL       time.Duration   `json:"ttl"`
}

func (e *fsEntry) expired(now time.Time) bool {
	return e.TTL > 0 && e.CreatedAt.Add(e.TTL).Before(now)
}

// FS is a file-backed cache storing one JSON document per entry under a base
// URL. Corrupted entries are treated as a forced miss: logged, removed and
// never surfaced to the caller.
type FS struct {
	fs      afs.Service
	baseURL string
	logger  zerolog.Logger
	mu      sync.Mutex
}

var _ Cache = (*FS)(nil)

// NewFS creates a file cache rooted at baseURL.
func NewFS(fsService afs.Service, baseURL string, logger zerolog.Logger) *FS {
	return &FS{fs: fsService, baseURL: baseURL, logger: logger}
}

// Get returns a fresh value; expired or corrupted entries are removed and
// reported as a miss.
func (f *FS) Get(ctx context.Context, key string) (interface{}, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	location := f.entryURL(key)
	exists, err := f.fs.Exists(ctx, location)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check cache entry %s: %w", location, err)
	}
	if !exists {
		return nil, false, nil
	}
	data, err := f.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", location, err)
	}
	cached, err := f.decode(key, data)
	if err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("dropping corrupted cache entry")
		_ = f.fs.Delete(ctx, location)
		return nil, false, nil
	}
	if cached.expired(clock.Now()) {
		_ = f.fs.Delete(ctx, location)
		return nil, false, nil
	}
	var value interface{}
	if err := json.Unmarshal(cached.Value, &value); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("dropping corrupted cache entry")
		_ = f.fs.Delete(ctx, location)
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key for ttl.
func (f *FS) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %v: %w", key, err)
	}
	cached := &fsEntry{
		Key:       key,
		Value:     raw,
		Digest:    digestOf(raw),
		CreatedAt: clock.Now(),
		TTL:       ttl,
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry for %v: %w", key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fs.Upload(ctx, f.entryURL(key), file.DefaultFileOsMode, bytes.NewReader(data))
}

// Invalidate removes a single entry.
func (f *FS) Invalidate(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	location := f.entryURL(key)
	if exists, _ := f.fs.Exists(ctx, location); exists {
		return f.fs.Delete(ctx, location)
	}
	return nil
}

// InvalidateNamespace removes every entry whose key starts with prefix.
func (f *FS) InvalidateNamespace(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	objects, err := f.fs.List(ctx, f.baseURL)
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}
	encoded := encodeKey(prefix)
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		if strings.HasPrefix(object.Name(), encoded) {
			if err := f.fs.Delete(ctx, object.URL()); err != nil {
				return fmt.Errorf("failed to delete cache entry %s: %w", object.URL(), err)
			}
		}
	}
	return nil
}

func (f *FS) decode(key string, data []byte) (*fsEntry, error) {
	cached := &fsEntry{}
	if err := json.Unmarshal(data, cached); err != nil {
		return nil, &CorruptionError{Key: key, Reason: err}
	}
	if cached.Key != key {
		return nil, &CorruptionError{Key: key, Reason: fmt.Errorf("key mismatch: %v", cached.Key)}
	}
	if cached.Digest != digestOf(cached.Value) {
		return nil, &CorruptionError{Key: key, Reason: fmt.Errorf("digest mismatch")}
	}
	return cached, nil
}

func (f *FS) entryURL(key string) string {
	return url.Join(f.baseURL, encodeKey(key)+".json")
}

// encodeKey maps a cache key onto a portable file name.
func encodeKey(key string) string {
	replacer := strings.NewReplacer(":", "_", "/", "-")
	return replacer.Replace(key)
}

func digestOf(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
