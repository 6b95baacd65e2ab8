package loadorder

import (
	"log"
	"os"
	"sync"
)

// Handle is a live load order for one game installation: GameSettings plus
// the LoadOrder state machine, guarded by a mutex so a single handle can be
// shared safely across goroutines. Every exported method here except GameID
// (which only reads the game id) acquires the mutex for its whole duration;
// none of them re-acquire it internally, so
// Go's non-reentrant sync.Mutex is safe to use even though several methods
// call the package's internal load/save helpers, which themselves assume
// the lock is already held.
type Handle struct {
	mu       sync.Mutex
	settings *GameSettings
	state    *loadOrderState
	warnings []Warning
}

// Create opens a handle for game id, rooted at gamePath with per-user data
// at localPath. localPath may be empty only for games whose active-plugins
// file does not require it (Morrowind, and Oblivion when its own .ini opts
// out of the per-user documents folder) — this module has no platform
// lookup for the per-user folder, so any other combination fails with
// CodeInvalidArgs rather than guessing one.
func Create(id GameID, gamePath, localPath string, reader HeaderReader) (*Handle, error) {
	if info, err := os.Stat(gamePath); err != nil || !info.IsDir() {
		return nil, newError(CodeInvalidArgs, "%s is not a directory", gamePath)
	}
	if localPath != "" {
		if info, err := os.Stat(localPath); err != nil || !info.IsDir() {
			return nil, newError(CodeInvalidArgs, "%s is not a directory", localPath)
		}
	}

	settings, err := NewGameSettings(id, gamePath, localPath)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		settings: settings,
		state:    newLoadOrderState(settings, reader),
	}

	if synced, err := IsSynchronized(settings); err != nil {
		return nil, err
	} else if !synced {
		h.warnings = append(h.warnings, warningFromError(
			newError(CodeLoMismatch, "load order and active plugins files disagree")))
	}

	if err := h.state.load(); err != nil {
		h.state.clear()
		return nil, err
	}

	return h, nil
}

// GameID returns the game this handle was opened for.
func (h *Handle) GameID() GameID {
	return h.settings.ID()
}

// SetLogger redirects the handle's diagnostic output (stale-entry drops
// during load, warnings raised during save) to l. A nil logger restores the
// default, which discards everything.
func (h *Handle) SetLogger(l *log.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l == nil {
		l = discardLogger
	}
	h.state.logger = l
}

// Warnings returns the non-fatal warnings recorded since the handle was
// created or last cleared.
func (h *Handle) Warnings() []Warning {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Warning(nil), h.warnings...)
}

// ClearWarnings discards all recorded warnings.
func (h *Handle) ClearWarnings() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings = nil
}

func (h *Handle) recordWarning(w *Warning) {
	if w != nil {
		h.warnings = append(h.warnings, *w)
	}
}

// GetLoadOrder returns the current load order, reconciling with disk first.
func (h *Handle) GetLoadOrder() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return nil, err
	}
	return h.state.names(), nil
}

// GetPosition returns name's zero-based index, or len(load order) if it is
// not present.
func (h *Handle) GetPosition(name string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return 0, err
	}
	return h.state.position(name), nil
}

// PluginAtPosition returns the canonical name at index i.
func (h *Handle) PluginAtPosition(i int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return "", err
	}
	return h.state.pluginAtIndex(i)
}

// SetLoadOrder replaces the entire load order and persists it.
func (h *Handle) SetLoadOrder(names []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	if err := h.state.setLoadOrder(names); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// SetPosition moves name to index i, inserting it if it is not already
// present.
func (h *Handle) SetPosition(name string, i int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	if err := h.state.setPosition(name, i); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// GetActivePlugins returns the names of every currently active plugin, in
// load order.
func (h *Handle) GetActivePlugins() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return nil, err
	}
	return h.state.activePlugins(), nil
}

// IsActive reports whether name is currently active.
func (h *Handle) IsActive(name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return false, err
	}
	return h.state.isActive(name), nil
}

// SetActivePlugins replaces the entire active set and persists it.
func (h *Handle) SetActivePlugins(names []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	if err := h.state.setActivePlugins(names); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// Activate marks name active, adding it to the load order first if needed.
func (h *Handle) Activate(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	if err := h.state.activate(name); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// Deactivate marks name inactive. It fails if name is implicitly active,
// and is a no-op if name is not in the load order.
func (h *Handle) Deactivate(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	if err := h.state.deactivate(name); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// SetGameMaster changes the plugin treated as this game's master file. It
// is only meaningful for Timestamp-method games, where no file enforces
// that the master loads first; other methods fail with CodeInvalidArgs.
func (h *Handle) SetGameMaster(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settings.Method() != MethodTimestamp {
		return newError(CodeInvalidArgs, "game master can only be changed for Timestamp-method games")
	}
	h.settings.masterFile = name
	return nil
}

// FixPluginLists reloads from disk and immediately saves, dropping any
// stale entries and re-normalizing the on-disk files in the process.
func (h *Handle) FixPluginLists() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.load(); err != nil {
		return err
	}
	w, err := h.state.save()
	h.recordWarning(w)
	return err
}

// Close releases the handle's in-memory state. A Handle holds no external
// resources (file descriptors are opened and closed within each call), so
// this only clears memory.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.clear()
}
