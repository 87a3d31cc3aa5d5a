package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

var validHash = regexp.MustCompile(`^[0-9a-f]{32,}$`)

type fsEntry struct {
	Summary string `json:"summary"`
}

// FSCache keeps one JSON slot per content hash under a flat directory.
// Lookup is a local file read only; Store writes through a temp file and
// rename so a torn entry is never observable.
type FSCache struct {
	dir string
	log *logger.Logger
}

func NewFSCache(dir string, baseLog *logger.Logger) (*FSCache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSCache{dir: dir, log: baseLog.With("service", "FSCache")}, nil
}

func (c *FSCache) Lookup(hash string) (string, bool, error) {
	if !validHash.MatchString(hash) {
		return "", false, fmt.Errorf("invalid content hash %q", hash)
	}
	raw, err := os.ReadFile(c.slotPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	var entry fsEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt slot is treated as a miss; the next Store rewrites it.
		c.log.Warn("Discarding unreadable cache entry", "hash", hash, "error", err)
		return "", false, nil
	}
	if strings.TrimSpace(entry.Summary) == "" {
		return "", false, nil
	}
	return entry.Summary, true, nil
}

func (c *FSCache) Store(hash string, summary string) error {
	if !validHash.MatchString(hash) {
		return fmt.Errorf("invalid content hash %q", hash)
	}
	raw, err := json.Marshal(fsEntry{Summary: summary})
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, hash+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.slotPath(hash)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	c.log.Debug("Cached summary", "hash", hash, "bytes", len(raw))
	return nil
}

func (c *FSCache) slotPath(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}
