package loadorder

import (
	"os"
	"path/filepath"
	"strings"
)

// GameID identifies one of the seven supported games. The set is closed;
// there is no way to register a new game at runtime, matching the original
// backend's fixed enum of supported titles.
type GameID int

const (
	TES3 GameID = iota + 1
	TES4
	TES5
	TES5SE
	FO3
	FNV
	FO4
)

func (id GameID) String() string {
	switch id {
	case TES3:
		return "TES3"
	case TES4:
		return "TES4"
	case TES5:
		return "TES5"
	case TES5SE:
		return "TES5SE"
	case FO3:
		return "FO3"
	case FNV:
		return "FNV"
	case FO4:
		return "FO4"
	default:
		return "unknown"
	}
}

// Method is the load-order persistence scheme a game uses.
type Method int

const (
	// MethodTimestamp derives load order from plugin file modification
	// times; there is no separate load-order file.
	MethodTimestamp Method = iota + 1

	// MethodTextfile keeps load order in its own loadorder.txt, one
	// plugin name per line, independent of the active-plugins file.
	MethodTextfile

	// MethodAsterisk keeps load order and active state together in the
	// active-plugins file: a leading '*' marks a line active, and file
	// order is load order.
	MethodAsterisk
)

type gameDef struct {
	method          Method
	masterFile      string
	pluginsFolder   string
	activeListName  string
	implicitActives []string
}

var gameDefs = map[GameID]gameDef{
	TES3: {
		method:         MethodTimestamp,
		masterFile:     "Morrowind.esm",
		pluginsFolder:  "Data Files",
		activeListName: "Morrowind.ini",
	},
	TES4: {
		method:         MethodTimestamp,
		masterFile:     "Oblivion.esm",
		pluginsFolder:  "Data",
		activeListName: "plugins.txt",
	},
	TES5: {
		method:          MethodTextfile,
		masterFile:      "Skyrim.esm",
		pluginsFolder:   "Data",
		activeListName:  "plugins.txt",
		implicitActives: []string{"Skyrim.esm", "Update.esm"},
	},
	TES5SE: {
		method:         MethodTextfile,
		masterFile:     "Skyrim.esm",
		pluginsFolder:  "Data",
		activeListName: "plugins.txt",
		implicitActives: []string{
			"Skyrim.esm", "Update.esm", "Dawnguard.esm", "HearthFires.esm", "Dragonborn.esm",
		},
	},
	FO3: {
		method:         MethodTimestamp,
		masterFile:     "Fallout3.esm",
		pluginsFolder:  "Data",
		activeListName: "plugins.txt",
	},
	FNV: {
		method:         MethodTimestamp,
		masterFile:     "FalloutNV.esm",
		pluginsFolder:  "Data",
		activeListName: "plugins.txt",
	},
	FO4: {
		method:         MethodAsterisk,
		masterFile:     "Fallout4.esm",
		pluginsFolder:  "Data",
		activeListName: "plugins.txt",
		implicitActives: []string{
			"Fallout4.esm",
			"DLCRobot.esm",
			"DLCworkshop01.esm",
			"DLCCoast.esm",
			"DLCworkshop02.esm",
			"DLCworkshop03.esm",
			"DLCNukaWorld.esm",
			"DLCUltraHighResolution.esm",
		},
	},
}

// GameSettings resolves the filesystem paths a game's load order and active
// plugin list live at, given the game's installation directory (gamePath)
// and its per-user data directory (localPath, the equivalent of Windows
// %LOCALAPPDATA%\<game>). Once constructed only its master file can change,
// through Handle.SetGameMaster on Timestamp-method games.
type GameSettings struct {
	id              GameID
	method          Method
	masterFile      string
	implicitActives []string
	pluginsFolder   string
	activeListPath  string
	loadOrderPath   string
}

// NewGameSettings builds the settings for id rooted at gamePath, using
// localPath for the per-user data files that are not kept alongside the
// game install. localPath may be empty only for games whose active-plugins
// file lives under gamePath (TES3 always; TES4 when its .ini opts out of
// the per-user documents folder) — any other combination fails with
// CodeInvalidArgs, mirroring the original backend's refusal to resolve a
// local-app-data path outside Windows.
func NewGameSettings(id GameID, gamePath, localPath string) (*GameSettings, error) {
	def, ok := gameDefs[id]
	if !ok {
		return nil, newError(CodeInvalidArgs, "unrecognised game id %d", id)
	}

	gs := &GameSettings{
		id:              id,
		method:          def.method,
		masterFile:      def.masterFile,
		implicitActives: append([]string(nil), def.implicitActives...),
		pluginsFolder:   filepath.Join(gamePath, def.pluginsFolder),
	}

	switch id {
	case TES3:
		gs.activeListPath = filepath.Join(gamePath, def.activeListName)
	case TES4:
		if usesGameFolderForPlugins(gamePath) {
			gs.activeListPath = filepath.Join(gamePath, def.activeListName)
		} else {
			if localPath == "" {
				return nil, newError(CodeInvalidArgs, "local app data path required for %s", id)
			}
			gs.activeListPath = filepath.Join(localPath, def.activeListName)
		}
	default:
		if localPath == "" {
			return nil, newError(CodeInvalidArgs, "local app data path required for %s", id)
		}
		gs.activeListPath = filepath.Join(localPath, def.activeListName)
	}

	if def.method == MethodTextfile {
		if localPath == "" {
			return nil, newError(CodeInvalidArgs, "local app data path required for %s", id)
		}
		gs.loadOrderPath = filepath.Join(localPath, "loadorder.txt")
	}

	return gs, nil
}

// usesGameFolderForPlugins reports whether gamePath/Oblivion.ini disables
// the per-user documents directory (bUseMyGamesDirectory=0), in which case
// plugins.txt lives next to the game executable instead of in localPath.
// A missing or unreadable ini is treated as the default (use localPath).
func usesGameFolderForPlugins(gamePath string) bool {
	data, err := os.ReadFile(filepath.Join(gamePath, "Oblivion.ini"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "bUseMyGamesDirectory=0") {
			return true
		}
	}
	return false
}

// ID returns the game this settings value was built for.
func (gs *GameSettings) ID() GameID { return gs.id }

// Method returns the load-order persistence scheme for this game.
func (gs *GameSettings) Method() Method { return gs.method }

// MasterFile returns the game's own master plugin name, e.g. "Skyrim.esm".
func (gs *GameSettings) MasterFile() string { return gs.masterFile }

// PluginsFolder returns the directory plugin files are read from.
func (gs *GameSettings) PluginsFolder() string { return gs.pluginsFolder }

// ActiveListPath returns the active-plugins file path.
func (gs *GameSettings) ActiveListPath() string { return gs.activeListPath }

// LoadOrderPath returns the standalone load-order file path. It fails with
// CodeInvalidArgs for games whose method is not MethodTextfile, since only
// those games keep load order separate from the active-plugins file.
func (gs *GameSettings) LoadOrderPath() (string, error) {
	if gs.method != MethodTextfile {
		return "", newError(CodeInvalidArgs, "%s does not use a standalone load order file", gs.id)
	}
	return gs.loadOrderPath, nil
}

// ImplicitActives returns the plugins this game always treats as active,
// in the game's fixed declared order. Returns nil for games with none.
func (gs *GameSettings) ImplicitActives() []string {
	return append([]string(nil), gs.implicitActives...)
}

// IsImplicitlyActive reports whether name is one of this game's implicit
// actives, compared case-insensitively.
func (gs *GameSettings) IsImplicitlyActive(name string) bool {
	for _, a := range gs.implicitActives {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
