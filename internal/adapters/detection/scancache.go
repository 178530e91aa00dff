package detection

import (
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type fileStamp struct {
	size    int64
	modTime time.Time
}

// ScanCache remembers files that scanned clean so an unchanged file is not
// handed to the matcher again. An entry is invalid once size or mtime
// differs.
type ScanCache struct {
	entries *lru.Cache[string, fileStamp]
}

// NewScanCache returns nil for size <= 0; a nil cache never hits.
func NewScanCache(size int) *ScanCache {
	if size <= 0 {
		return nil
	}
	entries, _ := lru.New[string, fileStamp](size)
	return &ScanCache{entries: entries}
}

func (c *ScanCache) IsClean(path string, info os.FileInfo) bool {
	if c == nil {
		return false
	}
	stamp, ok := c.entries.Get(path)
	if !ok {
		return false
	}
	return stamp.size == info.Size() && stamp.modTime.Equal(info.ModTime())
}

func (c *ScanCache) MarkClean(path string, info os.FileInfo) {
	if c == nil {
		return
	}
	c.entries.Add(path, fileStamp{size: info.Size(), modTime: info.ModTime()})
}

func (c *ScanCache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

func (c *ScanCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
