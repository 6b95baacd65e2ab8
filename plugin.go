package loadorder

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Plugin is one entry in a load order: a plugin file together with the
// state this package tracks about it (whether it is a master, whether it
// is ghosted, whether it is currently active, and the modification time it
// was last read at).
type Plugin struct {
	name     string // canonical name, never carries a .ghost suffix
	physical string // name as it exists on disk, .ghost suffix included if ghosted
	isMaster bool
	masters  []string
	active   bool
	modTime  time.Time
}

// trimGhostSuffix strips a trailing ".ghost" from name, case-insensitively,
// if present.
func trimGhostSuffix(name string) string {
	const suffix = ".ghost"
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// newPlugin constructs a Plugin for name (with or without a .ghost suffix)
// found under folder, reading its header through pr and its modification
// time from disk.
func newPlugin(folder, name string, game GameID, pr *prober) (*Plugin, error) {
	canonical := trimGhostSuffix(name)

	header, physical, ghosted, err := pr.header(folder, canonical, game)
	if err != nil {
		return nil, err
	}
	_ = ghosted

	info, err := os.Stat(filepath.Join(folder, physical))
	if err != nil {
		return nil, newError(CodeTimestampReadFail, "%s: %v", canonical, err)
	}

	return &Plugin{
		name:     canonical,
		physical: physical,
		isMaster: header.IsMaster,
		masters:  header.Masters,
		modTime:  info.ModTime(),
	}, nil
}

// Name returns the plugin's canonical (un-ghosted) name.
func (p *Plugin) Name() string { return p.name }

// IsMaster reports whether the plugin's header carries the master flag.
func (p *Plugin) IsMaster() bool { return p.isMaster }

// Masters returns the plugin's master dependencies, in header order.
func (p *Plugin) Masters() []string { return append([]string(nil), p.masters...) }

// IsGhosted reports whether the plugin's file currently carries a .ghost
// suffix on disk.
func (p *Plugin) IsGhosted() bool {
	return !strings.EqualFold(p.physical, p.name)
}

// IsActive reports whether the plugin is in the active set.
func (p *Plugin) IsActive() bool { return p.active }

func (p *Plugin) setActive(active bool) { p.active = active }

// equalsName reports whether name (with or without a .ghost suffix) refers
// to this plugin, compared case-insensitively.
func (p *Plugin) equalsName(name string) bool {
	return strings.EqualFold(p.name, trimGhostSuffix(name))
}

// hasFileChanged reports whether the plugin's on-disk modification time no
// longer matches what was last recorded. A file that can no longer be
// stat'd is reported as changed, so the caller attempts to re-probe it (and
// drops the entry if that also fails).
func (p *Plugin) hasFileChanged(folder string) bool {
	info, err := os.Stat(filepath.Join(folder, p.physical))
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(p.modTime)
}

// refresh re-reads the plugin's header and modification time in place,
// keeping the existing active flag.
func (p *Plugin) refresh(folder string, game GameID, pr *prober) error {
	header, physical, _, err := pr.header(folder, p.name, game)
	if err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(folder, physical))
	if err != nil {
		return newError(CodeTimestampReadFail, "%s: %v", p.name, err)
	}
	p.physical = physical
	p.isMaster = header.IsMaster
	p.masters = header.Masters
	p.modTime = info.ModTime()
	return nil
}

// activate marks the plugin active, un-ghosting its file on disk first if
// it is currently ghosted. Calling activate on an already-active plugin is
// a no-op, matching the original backend's idempotent activation.
func (p *Plugin) activate(folder string, game GameID, pr *prober) error {
	if p.active {
		return nil
	}
	if p.IsGhosted() {
		oldPath := filepath.Join(folder, p.physical)
		newPath := filepath.Join(folder, p.name)
		if err := os.Rename(oldPath, newPath); err != nil {
			return newError(CodeFileRenameFail, "un-ghosting %s: %v", p.name, err)
		}
		if err := p.refresh(folder, game, pr); err != nil {
			return err
		}
	}
	p.active = true
	return nil
}

// deactivate marks the plugin inactive. It never un-ghosts the file.
func (p *Plugin) deactivate() {
	p.active = false
}

// setModTime sets the plugin's on-disk modification time, used when the
// Timestamp method needs to reorder plugins by rewriting their times.
func (p *Plugin) setModTime(folder string, t time.Time) error {
	path := filepath.Join(folder, p.physical)
	if err := os.Chtimes(path, t, t); err != nil {
		return newError(CodeTimestampWriteFail, "%s: %v", p.name, err)
	}
	p.modTime = t
	return nil
}
