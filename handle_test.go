package loadorder

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestGamePaths(t *testing.T, id GameID) (string, string) {
	t.Helper()
	gamePath := t.TempDir()
	localPath := t.TempDir()

	gs, err := NewGameSettings(id, gamePath, localPath)
	if err != nil {
		t.Fatalf("NewGameSettings: %v", err)
	}
	if err := os.MkdirAll(gs.PluginsFolder(), 0o755); err != nil {
		t.Fatal(err)
	}
	return gamePath, localPath
}

func TestHandle_Create_Success(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, FO3)
	dataFolder := filepath.Join(gamePath, "Data")
	writeTestPlugin(t, dataFolder, "Fallout3.esm", true, nil)

	h, err := Create(FO3, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.GameID() != FO3 {
		t.Errorf("expected GameID FO3, got %v", h.GameID())
	}
	if len(h.Warnings()) != 0 {
		t.Errorf("expected no warnings, got %v", h.Warnings())
	}
}

func TestHandle_Create_RejectsMissingGamePath(t *testing.T) {
	if _, err := Create(FO3, filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil); err == nil {
		t.Error("expected an error for a missing game path")
	}
}

func TestHandle_Create_RecordsMismatchWarning_S5(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, TES5)
	dataFolder := filepath.Join(gamePath, "Data")
	writeTestPlugin(t, dataFolder, "Skyrim.esm", true, nil)
	writeTestPlugin(t, dataFolder, "Blank.esm", true, nil)
	writeTestPlugin(t, dataFolder, "Blank - Different.esm", true, nil)

	if err := os.WriteFile(filepath.Join(localPath, "loadorder.txt"), []byte("Skyrim.esm\nBlank.esm\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(localPath, "plugins.txt"), []byte("Blank - Different.esm\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Create(TES5, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	warnings := h.Warnings()
	if len(warnings) != 1 || warnings[0].Code != CodeLoMismatch {
		t.Fatalf("expected a single CodeLoMismatch warning, got %v", warnings)
	}

	h.ClearWarnings()
	if len(h.Warnings()) != 0 {
		t.Error("expected warnings to be cleared")
	}
}

func TestHandle_SetGameMaster(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, FO3)
	h, err := Create(FO3, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.SetGameMaster("Anchorage.esm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tfGame, tfLocal := newTestGamePaths(t, TES5)
	dataFolder := filepath.Join(tfGame, "Data")
	writeTestPlugin(t, dataFolder, "Skyrim.esm", true, nil)
	tfHandle, err := Create(TES5, tfGame, tfLocal, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tfHandle.SetGameMaster("Update.esm"); err == nil || !HasCode(err, CodeInvalidArgs) {
		t.Errorf("expected CodeInvalidArgs for a non-Timestamp game, got %v", err)
	}
}

func TestHandle_ActivateDeactivate(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, FO3)
	dataFolder := filepath.Join(gamePath, "Data")
	writeTestPlugin(t, dataFolder, "Fallout3.esm", true, nil)
	writeTestPlugin(t, dataFolder, "Blank.esp", false, nil)

	h, err := Create(FO3, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.Activate("Blank.esp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, err := h.IsActive("Blank.esp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Error("expected Blank.esp to be active")
	}

	if err := h.Deactivate("Blank.esp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, err = h.IsActive("Blank.esp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active {
		t.Error("expected Blank.esp to be inactive")
	}
}

func TestHandle_FixPluginLists_Idempotent_P9(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, TES5)
	dataFolder := filepath.Join(gamePath, "Data")
	writeTestPlugin(t, dataFolder, "Skyrim.esm", true, nil)
	writeTestPlugin(t, dataFolder, "Blank.esp", false, nil)

	h, err := Create(TES5, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.SetActivePlugins([]string{"Skyrim.esm", "Blank.esp"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.FixPluginLists(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstLO, err := os.ReadFile(filepath.Join(localPath, "loadorder.txt"))
	if err != nil {
		t.Fatal(err)
	}
	firstActive, err := os.ReadFile(filepath.Join(localPath, "plugins.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if err := h.FixPluginLists(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secondLO, err := os.ReadFile(filepath.Join(localPath, "loadorder.txt"))
	if err != nil {
		t.Fatal(err)
	}
	secondActive, err := os.ReadFile(filepath.Join(localPath, "plugins.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if string(firstLO) != string(secondLO) {
		t.Errorf("expected idempotent load order file, got %q then %q", firstLO, secondLO)
	}
	if string(firstActive) != string(secondActive) {
		t.Errorf("expected idempotent active plugins file, got %q then %q", firstActive, secondActive)
	}
}

func TestHandle_SetLogger_ReceivesDiagnostics(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, FO3)
	dataFolder := filepath.Join(gamePath, "Data")
	writeTestPlugin(t, dataFolder, "Fallout3.esm", true, nil)
	writeTestPlugin(t, dataFolder, "Blank.esp", false, nil)

	h, err := Create(FO3, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	h.SetLogger(log.New(&buf, "", 0))

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dataFolder, "Blank.esp"), future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := h.GetLoadOrder(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected SetLogger to capture a diagnostic message after the plugin file changed")
	}
}

func TestHandle_Close(t *testing.T) {
	gamePath, localPath := newTestGamePaths(t, FO3)
	h, err := Create(FO3, gamePath, localPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Close()
}
