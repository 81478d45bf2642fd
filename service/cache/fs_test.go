package cache

import (
	"bytes"
	"context"
	"os"
	"path"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/sitepulse/engine/internal/clock"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "cache-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })
	return NewFS(afs.New(), tempDir, zerolog.Nop()), tempDir
}

func TestFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestFS(t)

	_, ok, err := c.Get(ctx, "seometa:missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	payload := map[string]interface{}{"score": 87.5, "component": "seometa"}
	assert.NoError(t, c.Set(ctx, "seometa:abc", payload, time.Minute))

	value, ok, err := c.Get(ctx, "seometa:abc")
	assert.NoError(t, err)
	assert.True(t, ok)
	decoded, isMap := value.(map[string]interface{})
	assert.True(t, isMap)
	assert.Equal(t, 87.5, decoded["score"])
}

func TestFS_TTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	previous := clock.NowFunc
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = previous }()

	ctx := context.Background()
	c, _ := newTestFS(t)
	assert.NoError(t, c.Set(ctx, "seometa:abc", "value", time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := c.Get(ctx, "seometa:abc")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFS_CorruptedEntryIsForcedMiss(t *testing.T) {
	ctx := context.Background()
	c, tempDir := newTestFS(t)
	fsService := afs.New()

	assert.NoError(t, c.Set(ctx, "seometa:abc", "value", time.Minute))
	location := path.Join(tempDir, encodeKey("seometa:abc")+".json")
	assert.NoError(t, fsService.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader([]byte("{not json"))))

	value, ok, err := c.Get(ctx, "seometa:abc")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)

	// the corrupted file was removed
	exists, _ := fsService.Exists(ctx, location)
	assert.False(t, exists)
}

func TestFS_DigestMismatchIsForcedMiss(t *testing.T) {
	ctx := context.Background()
	c, tempDir := newTestFS(t)
	fsService := afs.New()

	assert.NoError(t, c.Set(ctx, "seometa:abc", "value", time.Minute))
	location := path.Join(tempDir, encodeKey("seometa:abc")+".json")
	data, err := fsService.DownloadWithURL(ctx, location)
	assert.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"value"`), []byte(`"other"`), 1)
	assert.NoError(t, fsService.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(tampered)))

	_, ok, err := c.Get(ctx, "seometa:abc")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFS_InvalidateNamespace(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestFS(t)

	assert.NoError(t, c.Set(ctx, "seometa:k1", 1, time.Minute))
	assert.NoError(t, c.Set(ctx, "seometa:k2", 2, time.Minute))
	assert.NoError(t, c.Set(ctx, "headers:k1", 3, time.Minute))

	assert.NoError(t, c.InvalidateNamespace(ctx, "seometa:"))
	_, ok, _ := c.Get(ctx, "seometa:k1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "headers:k1")
	assert.True(t, ok)
}
