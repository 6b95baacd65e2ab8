package loadorder

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// discardLogger is the default sink for loadOrderState diagnostics: every
// Handle gets one until SetLogger overrides it, so nil checks don't need to
// be scattered through load/save.
var discardLogger = log.New(io.Discard, "", 0)

// maxActivePlugins is the hard ceiling every game in this family enforces
// on the number of simultaneously active plugins.
const maxActivePlugins = 255

// loadOrderState is the ordered sequence of plugins for one game, plus the
// path-modification cache used to decide what needs re-reading. It is the
// unexported engine behind Handle; Handle adds the public API and the
// mutex that serializes access to it.
type loadOrderState struct {
	settings *GameSettings
	prober   *prober
	entries  []*Plugin
	cache    *pathCache
	logger   *log.Logger
}

func newLoadOrderState(settings *GameSettings, reader HeaderReader) *loadOrderState {
	return &loadOrderState{
		settings: settings,
		prober:   newProber(reader),
		cache:    newPathCache(),
		logger:   discardLogger,
	}
}

func (lo *loadOrderState) indexOf(name string) int {
	for i, p := range lo.entries {
		if p.equalsName(name) {
			return i
		}
	}
	return -1
}

func (lo *loadOrderState) contains(name string) bool {
	return lo.indexOf(name) != -1
}

func (lo *loadOrderState) isActive(name string) bool {
	idx := lo.indexOf(name)
	return idx != -1 && lo.entries[idx].IsActive()
}

func (lo *loadOrderState) masterPartitionPoint() int {
	for i, p := range lo.entries {
		if !p.IsMaster() {
			return i
		}
	}
	return len(lo.entries)
}

func (lo *loadOrderState) countActive() int {
	n := 0
	for _, p := range lo.entries {
		if p.IsActive() {
			n++
		}
	}
	return n
}

func (lo *loadOrderState) names() []string {
	out := make([]string, len(lo.entries))
	for i, p := range lo.entries {
		out[i] = p.Name()
	}
	return out
}

func (lo *loadOrderState) position(name string) int {
	idx := lo.indexOf(name)
	if idx == -1 {
		return len(lo.entries)
	}
	return idx
}

func (lo *loadOrderState) pluginAtIndex(i int) (string, error) {
	if i < 0 || i >= len(lo.entries) {
		return "", newError(CodeInvalidArgs, "index %d out of range", i)
	}
	return lo.entries[i].Name(), nil
}

func (lo *loadOrderState) activePlugins() []string {
	var out []string
	for _, p := range lo.entries {
		if p.IsActive() {
			out = append(out, p.Name())
		}
	}
	return out
}

// getPluginObject returns the existing Plugin for name if it is already in
// the load order, otherwise validates and constructs one without inserting
// it.
func (lo *loadOrderState) getPluginObject(name string) (*Plugin, error) {
	if idx := lo.indexOf(name); idx != -1 {
		return lo.entries[idx], nil
	}
	if !lo.prober.isValid(lo.settings.PluginsFolder(), name, lo.settings.ID()) {
		return nil, newError(CodeInvalidArgs, "%q is not a valid plugin file", name)
	}
	return newPlugin(lo.settings.PluginsFolder(), name, lo.settings.ID(), lo.prober)
}

// appendPosition computes where p belongs if it is appended to the load
// order right now, per the method-specific rules in §4.6.6.
func (lo *loadOrderState) appendPosition(p *Plugin) int {
	method := lo.settings.Method()

	if method == MethodTextfile && strings.EqualFold(p.Name(), lo.settings.MasterFile()) {
		return 0
	}

	if method == MethodAsterisk {
		installed := 0
		for _, implicit := range lo.settings.ImplicitActives() {
			if strings.EqualFold(p.Name(), implicit) {
				return installed
			}
			if lo.contains(implicit) || lo.prober.isValid(lo.settings.PluginsFolder(), implicit, lo.settings.ID()) {
				installed++
			}
		}
	}

	if p.IsMaster() {
		return lo.masterPartitionPoint()
	}
	return len(lo.entries)
}

// addToLoadOrder constructs a Plugin for name and inserts it at its append
// position.
func (lo *loadOrderState) addToLoadOrder(name string) (*Plugin, error) {
	p, err := newPlugin(lo.settings.PluginsFolder(), name, lo.settings.ID(), lo.prober)
	if err != nil {
		return nil, err
	}
	pos := lo.appendPosition(p)
	lo.entries = insertPlugin(lo.entries, pos, p)
	return p, nil
}

func insertPlugin(entries []*Plugin, pos int, p *Plugin) []*Plugin {
	if pos >= len(entries) {
		return append(entries, p)
	}
	entries = append(entries, nil)
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = p
	return entries
}

func isPartitionedByMaster(plugins []*Plugin) bool {
	seenNonMaster := false
	for _, p := range plugins {
		if p.IsMaster() {
			if seenNonMaster {
				return false
			}
		} else {
			seenNonMaster = true
		}
	}
	return true
}

// load reconciles in-memory state with what is on disk, following the
// seven-step protocol: refresh stale entries, re-read the authoritative
// order file, scan the plugins folder, reload the active set, add missing
// implicit-actives, deactivate any excess, and observe every path touched.
func (lo *loadOrderState) load() error {
	folder := lo.settings.PluginsFolder()

	kept := make([]*Plugin, 0, len(lo.entries))
	for _, p := range lo.entries {
		if p.hasFileChanged(folder) {
			np, err := newPlugin(folder, p.Name(), lo.settings.ID(), lo.prober)
			if err != nil {
				lo.logger.Printf("dropping %s: no longer a valid plugin: %v", p.Name(), err)
				continue
			}
			lo.logger.Printf("refreshed %s after a file change", p.Name())
			kept = append(kept, np)
			continue
		}
		kept = append(kept, p)
	}
	lo.entries = kept

	switch lo.settings.Method() {
	case MethodTextfile:
		loPath, _ := lo.settings.LoadOrderPath()
		if lo.cache.isModified(loPath) {
			if err := lo.loadFromFile(loPath); err != nil {
				return err
			}
		} else if lo.cache.isModified(lo.settings.ActiveListPath()) {
			if err := lo.loadFromFile(lo.settings.ActiveListPath()); err != nil {
				return err
			}
			if err := lo.loadActivePlugins(); err != nil {
				return err
			}
		}
	case MethodAsterisk:
		if lo.cache.isModified(lo.settings.ActiveListPath()) {
			if err := lo.loadFromFile(lo.settings.ActiveListPath()); err != nil {
				return err
			}
			if err := lo.loadActivePlugins(); err != nil {
				return err
			}
		}
	}

	if info, err := os.Stat(folder); err == nil && info.IsDir() && lo.cache.isModified(folder) {
		if err := lo.addMissingPlugins(); err != nil {
			return err
		}
		if lo.settings.Method() == MethodTimestamp {
			lo.sortByTimestamp()
		}
	}

	if lo.cache.isModified(lo.settings.ActiveListPath()) {
		if err := lo.loadActivePlugins(); err != nil {
			return err
		}
	}

	return nil
}

func (lo *loadOrderState) sortByTimestamp() {
	sort.SliceStable(lo.entries, func(i, j int) bool {
		a, b := lo.entries[i], lo.entries[j]
		if a.isMaster == b.isMaster {
			return a.modTime.Before(b.modTime)
		}
		return a.isMaster
	})
}

func (lo *loadOrderState) addMissingPlugins() error {
	folder := lo.settings.PluginsFolder()
	implicit := lo.settings.ImplicitActives()

	dirEntries, err := os.ReadDir(folder)
	if err != nil {
		return newError(CodeFileReadFail, "%s: %v", folder, err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if lo.contains(name) {
			continue
		}

		isImplicit := false
		for _, ia := range implicit {
			if strings.EqualFold(ia, name) {
				isImplicit = true
				break
			}
		}
		if isImplicit {
			continue
		}

		if !lo.prober.isValid(folder, name, lo.settings.ID()) {
			continue
		}
		if _, err := lo.addToLoadOrder(name); err != nil {
			return err
		}
	}

	lo.cache.update(folder)
	return lo.addImplicitlyActivePlugins()
}

func (lo *loadOrderState) addImplicitlyActivePlugins() error {
	folder := lo.settings.PluginsFolder()
	for _, name := range lo.settings.ImplicitActives() {
		if lo.isActive(name) {
			continue
		}
		if !lo.prober.isValid(folder, name, lo.settings.ID()) {
			continue
		}

		idx := lo.indexOf(name)
		var p *Plugin
		if idx == -1 {
			var err error
			p, err = lo.addToLoadOrder(name)
			if err != nil {
				return err
			}
		} else {
			p = lo.entries[idx]
		}
		if err := p.activate(folder, lo.settings.ID(), lo.prober); err != nil {
			return err
		}
	}
	return nil
}

func (lo *loadOrderState) deactivateExcessPlugins() {
	numActive := lo.countActive()
	for i := len(lo.entries) - 1; numActive > maxActivePlugins && i >= 0; i-- {
		if lo.entries[i].IsActive() {
			lo.entries[i].deactivate()
			numActive--
		}
	}
}

func splitLines(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// loadFromFile reads an order file (loadorder.txt, or an active-plugins
// file used as an ordering fallback) and merges its entries into the
// in-memory sequence: existing entries move only if their append position
// would actually change, new valid entries are inserted at their append
// position.
func (lo *loadOrderState) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newError(CodeFileReadFail, "%s: %v", path, err)
	}

	transcode := path == lo.settings.ActiveListPath()
	method := lo.settings.Method()
	folder := lo.settings.PluginsFolder()

	for _, line := range splitLines(string(data)) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if transcode {
			line = windows1252ToUTF8(line)
			if method == MethodAsterisk && strings.HasPrefix(line, "*") {
				line = line[1:]
			}
		}

		if method == MethodAsterisk && lo.settings.IsImplicitlyActive(line) {
			continue
		}

		idx := lo.indexOf(line)
		if idx != -1 {
			p := lo.entries[idx]
			newPos := lo.appendPosition(p)
			if newPos != idx {
				if newPos > idx {
					newPos--
				}
				lo.entries = append(lo.entries[:idx], lo.entries[idx+1:]...)
				lo.entries = insertPlugin(lo.entries, newPos, p)
			}
		} else if lo.prober.isValid(folder, line, lo.settings.ID()) {
			if _, err := lo.addToLoadOrder(line); err != nil {
				return err
			}
		}
	}

	lo.cache.update(path)
	return lo.addImplicitlyActivePlugins()
}

var morrowindActiveLineRe = regexp.MustCompile(`(?i)^GameFile[0-9]{1,3}=(.+\.es[mp])$`)

// loadActivePlugins re-derives the active set from the active-plugins
// file, deactivating everything first.
func (lo *loadOrderState) loadActivePlugins() error {
	for _, p := range lo.entries {
		p.deactivate()
	}

	path := lo.settings.ActiveListPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return newError(CodeFileReadFail, "%s: %v", path, err)
	}

	method := lo.settings.Method()
	isMorrowind := lo.settings.ID() == TES3
	folder := lo.settings.PluginsFolder()

	for _, line := range splitLines(string(data)) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if isMorrowind {
			m := morrowindActiveLineRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			line = m[1]
		} else if method == MethodAsterisk {
			if !strings.HasPrefix(line, "*") {
				continue
			}
			line = line[1:]
		}

		line = windows1252ToUTF8(line)

		idx := lo.indexOf(line)
		var p *Plugin
		if idx == -1 {
			if !lo.prober.isValid(folder, line, lo.settings.ID()) {
				continue
			}
			var err error
			p, err = lo.addToLoadOrder(line)
			if err != nil {
				return err
			}
		} else {
			p = lo.entries[idx]
		}

		if err := p.activate(folder, lo.settings.ID(), lo.prober); err != nil {
			return err
		}
	}

	lo.cache.update(path)

	if err := lo.addImplicitlyActivePlugins(); err != nil {
		return err
	}
	lo.deactivateExcessPlugins()
	return nil
}

// setLoadOrder replaces the entire sequence, validating the result before
// committing it.
func (lo *loadOrderState) setLoadOrder(names []string) error {
	method := lo.settings.Method()
	if method == MethodTextfile || method == MethodAsterisk {
		if len(names) == 0 || !strings.EqualFold(names[0], lo.settings.MasterFile()) {
			return newError(CodeInvalidArgs, "%q must load first", lo.settings.MasterFile())
		}
	}

	seen := make(map[string]bool, len(names))
	plugins := make([]*Plugin, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			return newError(CodeInvalidArgs, "%q is a duplicate entry", name)
		}
		seen[key] = true

		p, err := lo.getPluginObject(name)
		if err != nil {
			return err
		}
		plugins = append(plugins, p)
	}

	if !isPartitionedByMaster(plugins) {
		return newError(CodeInvalidArgs, "master plugins must load before all non-master plugins")
	}

	lo.entries = plugins

	if err := lo.addMissingPlugins(); err != nil {
		return err
	}

	if (method == MethodTextfile || method == MethodAsterisk) && len(lo.entries) > 0 {
		if err := lo.entries[0].activate(lo.settings.PluginsFolder(), lo.settings.ID(), lo.prober); err != nil {
			return err
		}
	}
	return nil
}

// setPosition moves (or inserts) name to index, enforcing the master-first
// and master-partition rules.
func (lo *loadOrderState) setPosition(name string, index int) error {
	method := lo.settings.Method()
	if method == MethodTextfile || method == MethodAsterisk {
		if index == 0 && !strings.EqualFold(name, lo.settings.MasterFile()) {
			return newError(CodeInvalidArgs, "cannot set %q to load first: %q must load first", name, lo.settings.MasterFile())
		}
		if index != 0 && len(lo.entries) > 0 && strings.EqualFold(name, lo.settings.MasterFile()) {
			return newError(CodeInvalidArgs, "%q must load first", name)
		}
	}

	p, err := lo.getPluginObject(name)
	if err != nil {
		return err
	}

	partition := lo.masterPartitionPoint()
	if !p.IsMaster() && index < partition {
		return newError(CodeInvalidArgs, "cannot move a non-master plugin before master files")
	}
	if p.IsMaster() {
		currentPos := lo.position(name)
		if (index > partition && partition != len(lo.entries)) || (currentPos < partition && index == partition) {
			return newError(CodeInvalidArgs, "cannot move a master file after non-master plugins")
		}
	}

	remaining := make([]*Plugin, 0, len(lo.entries)+1)
	for _, e := range lo.entries {
		if !e.equalsName(name) {
			remaining = append(remaining, e)
		}
	}
	if index > len(remaining) {
		index = len(remaining)
	}
	lo.entries = insertPlugin(remaining, index, p)
	return nil
}

// setActivePlugins replaces the entire active set.
func (lo *loadOrderState) setActivePlugins(names []string) error {
	if len(names) > maxActivePlugins {
		return newError(CodeInvalidArgs, "cannot activate more than %d plugins", maxActivePlugins)
	}

	folder := lo.settings.PluginsFolder()
	for _, name := range names {
		if !lo.contains(name) && !lo.prober.isValid(folder, name, lo.settings.ID()) {
			return newError(CodeInvalidArgs, "%q is not a valid plugin file", name)
		}
	}

	for _, implicit := range lo.settings.ImplicitActives() {
		if !lo.prober.isValid(folder, implicit, lo.settings.ID()) {
			continue
		}
		found := false
		for _, name := range names {
			if strings.EqualFold(implicit, name) {
				found = true
				break
			}
		}
		if !found {
			return newError(CodeInvalidArgs, "%s must be active", implicit)
		}
	}

	for _, p := range lo.entries {
		p.deactivate()
	}

	for _, name := range names {
		idx := lo.indexOf(name)
		var p *Plugin
		if idx == -1 {
			var err error
			p, err = lo.addToLoadOrder(name)
			if err != nil {
				return err
			}
		} else {
			p = lo.entries[idx]
		}
		if err := p.activate(folder, lo.settings.ID(), lo.prober); err != nil {
			return err
		}
	}
	return nil
}

func (lo *loadOrderState) activate(name string) error {
	if lo.countActive() >= maxActivePlugins {
		return newError(CodeInvalidArgs, "cannot activate %s: would exceed %d active plugins", name, maxActivePlugins)
	}

	folder := lo.settings.PluginsFolder()
	idx := lo.indexOf(name)
	var p *Plugin
	if idx == -1 {
		if !lo.prober.isValid(folder, name, lo.settings.ID()) {
			return newError(CodeInvalidArgs, "%q is not a valid plugin file", name)
		}
		var err error
		p, err = lo.addToLoadOrder(name)
		if err != nil {
			return err
		}
	} else {
		p = lo.entries[idx]
	}
	return p.activate(folder, lo.settings.ID(), lo.prober)
}

func (lo *loadOrderState) deactivate(name string) error {
	idx := lo.indexOf(name)
	if idx == -1 {
		return nil
	}
	if lo.settings.IsImplicitlyActive(name) {
		return newError(CodeInvalidArgs, "cannot deactivate %s", name)
	}
	lo.entries[idx].deactivate()
	return nil
}

func (lo *loadOrderState) clear() {
	lo.entries = nil
	lo.cache.clear()
}

func (lo *loadOrderState) save() (*Warning, error) {
	switch lo.settings.Method() {
	case MethodTimestamp:
		if err := lo.saveTimestampLoadOrder(); err != nil {
			return nil, err
		}
	case MethodTextfile:
		if err := lo.saveTextfileLoadOrder(); err != nil {
			return nil, err
		}
	}
	w, err := lo.saveActivePlugins()
	if w != nil {
		lo.logger.Printf("save: %s", w.Message)
	}
	return w, err
}

// saveTimestampLoadOrder keeps the set of modtimes currently in use but
// reassigns them across the sequence in its new order, padding with
// 60-second increments if two plugins currently share a timestamp.
func (lo *loadOrderState) saveTimestampLoadOrder() error {
	seen := make(map[int64]bool, len(lo.entries))
	times := make([]time.Time, 0, len(lo.entries))
	for _, p := range lo.entries {
		key := p.modTime.Unix()
		if !seen[key] {
			seen[key] = true
			times = append(times, p.modTime)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for len(times) < len(lo.entries) {
		times = append(times, times[len(times)-1].Add(60*time.Second))
	}

	for i, p := range lo.entries {
		if err := p.setModTime(lo.settings.PluginsFolder(), times[i]); err != nil {
			return err
		}
	}
	return nil
}

func (lo *loadOrderState) saveTextfileLoadOrder() error {
	path, err := lo.settings.LoadOrderPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return newError(CodeFileWriteFail, "%s: %v", path, err)
	}

	var b strings.Builder
	for _, p := range lo.entries {
		b.WriteString(p.Name())
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return newError(CodeFileWriteFail, "%s: %v", path, err)
	}

	lo.cache.update(path)
	return nil
}

// saveActivePlugins writes the active-plugins file in each method's own
// format, returning a BadFilename warning (rather than failing outright)
// if any single name could not be represented in Windows-1252.
func (lo *loadOrderState) saveActivePlugins() (*Warning, error) {
	path := lo.settings.ActiveListPath()
	method := lo.settings.Method()
	isMorrowind := lo.settings.ID() == TES3

	var preamble string
	if isMorrowind {
		if data, err := os.ReadFile(path); err == nil {
			content := string(data)
			if idx := strings.Index(content, "[Game Files]"); idx != -1 {
				preamble = content[:idx+len("[Game Files]")]
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError(CodeFileWriteFail, "%s: %v", path, err)
	}

	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n")
	}

	var badName string
	gameFileIndex := 0
	for _, p := range lo.entries {
		if method != MethodAsterisk && !p.IsActive() {
			continue
		}
		if method == MethodTextfile && strings.EqualFold(p.Name(), lo.settings.MasterFile()) {
			continue
		}
		if method == MethodAsterisk && lo.settings.IsImplicitlyActive(p.Name()) {
			continue
		}

		var prefix string
		if isMorrowind {
			prefix = fmt.Sprintf("GameFile%d=", gameFileIndex)
			gameFileIndex++
		} else if method == MethodAsterisk && p.IsActive() {
			prefix = "*"
		}

		encoded, err := utf8ToWindows1252(p.Name())
		if err != nil {
			badName = p.Name()
			continue
		}
		b.WriteString(prefix)
		b.WriteString(encoded)
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, newError(CodeFileWriteFail, "%s: %v", path, err)
	}

	lo.cache.update(path)

	if badName != "" {
		w := warningFromError(newError(CodeBadFilename, "%q cannot be represented in Windows-1252", badName))
		return &w, nil
	}
	return nil, nil
}

// IsSynchronized reports whether a Textfile game's loadorder.txt and
// plugins.txt agree: loadorder.txt, with every name not found in plugins.txt
// removed, must equal plugins.txt's own order exactly, so a plugins.txt
// entry missing from loadorder.txt also counts as a disagreement. It is
// always true for non-Textfile games, and true if either file is missing.
func IsSynchronized(settings *GameSettings) (bool, error) {
	if settings.Method() != MethodTextfile {
		return true, nil
	}

	loPath, _ := settings.LoadOrderPath()
	activePath := settings.ActiveListPath()
	if !fileExists(activePath) || !fileExists(loPath) {
		return true, nil
	}

	fromOrderFile := newLoadOrderState(settings, nil)
	if err := fromOrderFile.loadFromFile(loPath); err != nil {
		return false, err
	}

	fromActiveFile := newLoadOrderState(settings, nil)
	if err := fromActiveFile.loadFromFile(activePath); err != nil {
		return false, err
	}

	filtered := make([]string, 0, len(fromOrderFile.entries))
	for _, name := range fromOrderFile.names() {
		if fromActiveFile.contains(name) {
			filtered = append(filtered, name)
		}
	}

	return stringSlicesEqual(fromActiveFile.names(), filtered), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
