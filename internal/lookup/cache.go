package lookup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// cacheEntry is the on-disk envelope for a cached payload.
type cacheEntry struct {
	Timestamp int64           `json:"timestamp"`
	Content   json.RawMessage `json:"content"`
}

// FileCache stores raw JSON payloads keyed by operation name plus
// arguments, with a TTL chosen per operation. Expired entries are
// deleted on read.
type FileCache struct {
	dir    string
	ttls   map[string]time.Duration
	logger *zap.Logger
}

func NewFileCache(dir string, ttls map[string]time.Duration, logger *zap.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileCache{dir: dir, ttls: ttls, logger: logger}, nil
}

// key hashes the operation name and arguments into a filename.
func (c *FileCache) key(op string, args ...string) string {
	parts := append([]string{op}, args...)
	sort.Strings(parts[1:])
	sum := md5.Sum([]byte(joinParts(parts)))
	return hex.EncodeToString(sum[:]) + ".json"
}

func joinParts(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "_" + p
	}
	return out
}

func (c *FileCache) ttl(op string) time.Duration {
	if ttl, ok := c.ttls[op]; ok {
		return ttl
	}
	return 5 * time.Minute
}

// Get returns the cached payload for (op, args), or nil on miss or
// expiry.
func (c *FileCache) Get(op string, args ...string) []byte {
	path := filepath.Join(c.dir, c.key(op, args...))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("corrupt cache entry removed", zap.String("path", path), zap.Error(err))
		_ = os.Remove(path)
		return nil
	}

	if time.Since(time.Unix(entry.Timestamp, 0)) > c.ttl(op) {
		_ = os.Remove(path)
		return nil
	}
	return entry.Content
}

// Set writes a payload for (op, args). Empty payloads are not cached.
// The write goes through a temp file and rename.
func (c *FileCache) Set(op string, payload []byte, args ...string) {
	if len(payload) == 0 {
		return
	}

	entry := cacheEntry{
		Timestamp: time.Now().Unix(),
		Content:   json.RawMessage(payload),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("encoding cache entry failed", zap.Error(err))
		return
	}

	path := filepath.Join(c.dir, c.key(op, args...))
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		c.logger.Warn("writing cache entry failed", zap.Error(err))
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		c.logger.Warn("replacing cache entry failed", zap.Error(err))
	}
}

// ClearExpired removes every entry older than the longest configured
// TTL. Corrupt entries are removed outright.
func (c *FileCache) ClearExpired() int {
	maxTTL := time.Hour
	for _, ttl := range c.ttls {
		if ttl > maxTTL {
			maxTTL = ttl
		}
	}

	removed := 0
	entries, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			_ = os.Remove(path)
			removed++
			continue
		}
		if time.Since(time.Unix(entry.Timestamp, 0)) > maxTTL {
			_ = os.Remove(path)
			removed++
		}
	}
	return removed
}
