package loadorder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewGameSettings_Skyrim(t *testing.T) {
	gamePath := t.TempDir()
	localPath := t.TempDir()

	gs, err := NewGameSettings(TES5, gamePath, localPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.Method() != MethodTextfile {
		t.Errorf("expected MethodTextfile, got %v", gs.Method())
	}
	if gs.MasterFile() != "Skyrim.esm" {
		t.Errorf("expected Skyrim.esm, got %s", gs.MasterFile())
	}
	if gs.PluginsFolder() != filepath.Join(gamePath, "Data") {
		t.Errorf("unexpected plugins folder: %s", gs.PluginsFolder())
	}
	if gs.ActiveListPath() != filepath.Join(localPath, "plugins.txt") {
		t.Errorf("unexpected active list path: %s", gs.ActiveListPath())
	}
	loPath, err := gs.LoadOrderPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loPath != filepath.Join(localPath, "loadorder.txt") {
		t.Errorf("unexpected load order path: %s", loPath)
	}
}

func TestNewGameSettings_TimestampHasNoLoadOrderFile(t *testing.T) {
	gs, err := NewGameSettings(FO3, t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gs.LoadOrderPath(); err == nil || !HasCode(err, CodeInvalidArgs) {
		t.Error("expected CodeInvalidArgs for a Timestamp-method game's load order path")
	}
}

func TestNewGameSettings_Morrowind(t *testing.T) {
	gamePath := t.TempDir()
	gs, err := NewGameSettings(TES3, gamePath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.PluginsFolder() != filepath.Join(gamePath, "Data Files") {
		t.Errorf("unexpected plugins folder: %s", gs.PluginsFolder())
	}
	if gs.ActiveListPath() != filepath.Join(gamePath, "Morrowind.ini") {
		t.Errorf("unexpected active list path: %s", gs.ActiveListPath())
	}
}

func TestNewGameSettings_ObilvionRequiresLocalPathByDefault(t *testing.T) {
	if _, err := NewGameSettings(TES4, t.TempDir(), ""); err == nil || !HasCode(err, CodeInvalidArgs) {
		t.Error("expected CodeInvalidArgs when localPath is empty and no opt-out ini is present")
	}
}

func TestNewGameSettings_ObilvionIniOptOut(t *testing.T) {
	gamePath := t.TempDir()
	ini := "[General]\nbUseMyGamesDirectory=0\n"
	if err := os.WriteFile(filepath.Join(gamePath, "Oblivion.ini"), []byte(ini), 0o644); err != nil {
		t.Fatal(err)
	}

	gs, err := NewGameSettings(TES4, gamePath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.ActiveListPath() != filepath.Join(gamePath, "plugins.txt") {
		t.Errorf("unexpected active list path: %s", gs.ActiveListPath())
	}
}

func TestGameSettings_ImplicitActivesFO4(t *testing.T) {
	gs, err := NewGameSettings(FO4, t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := gs.ImplicitActives()
	if len(names) != 8 {
		t.Fatalf("expected 8 implicit actives, got %d", len(names))
	}
	if names[0] != "Fallout4.esm" {
		t.Errorf("expected names[0] == Fallout4.esm, got %s", names[0])
	}
	if names[4] != "DLCworkshop02.esm" {
		t.Errorf("expected names[4] == DLCworkshop02.esm, got %s", names[4])
	}
	if !gs.IsImplicitlyActive("fallout4.esm") {
		t.Error("expected case-insensitive match")
	}
}

func TestNewGameSettings_UnknownID(t *testing.T) {
	if _, err := NewGameSettings(GameID(999), t.TempDir(), t.TempDir()); err == nil {
		t.Error("expected an error for an unrecognised game id")
	}
}
