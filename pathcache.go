package loadorder

import (
	"os"
	"time"
)

// pathCache remembers the last-observed modification time of files this
// package has read, so load() can tell an unchanged plugins folder from one
// that needs reconciling without re-parsing every plugin header on every
// call. Grounded on the original backend's PathCache, which is the same
// map[path]time keyed cache; Go's os.Stat gives the same information
// without a separate stat() wrapper.
type pathCache struct {
	times map[string]time.Time
}

func newPathCache() *pathCache {
	return &pathCache{times: make(map[string]time.Time)}
}

// isModified reports whether path's modification time differs from what
// was last observed, or whether path has never been observed. A path that
// no longer exists is reported as unmodified: the caller that removed it
// already knows, and load() treats a missing plugin as something to drop
// rather than something to reload.
func (c *pathCache) isModified(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	last, ok := c.times[path]
	if !ok {
		return true
	}
	return !info.ModTime().Equal(last)
}

// update records path's current modification time. A path that cannot be
// stat'd is silently left unrecorded.
func (c *pathCache) update(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	c.times[path] = info.ModTime()
}

// clear forgets every observed path.
func (c *pathCache) clear() {
	c.times = make(map[string]time.Time)
}
