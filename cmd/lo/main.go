// Command lo is a small CLI front end over the loadorder package: it opens a
// handle for one game installation and exposes its load order and active
// plugin set as subcommands.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/loadorder-go/loadorder"
	"github.com/loadorder-go/loadorder/internal/config"
)

var gameIDs = map[string]loadorder.GameID{
	"morrowind": loadorder.TES3,
	"oblivion":  loadorder.TES4,
	"skyrim":    loadorder.TES5,
	"skyrimse":  loadorder.TES5SE,
	"fallout3":  loadorder.FO3,
	"newvegas":  loadorder.FNV,
	"fallout4":  loadorder.FO4,
}

func main() {
	defaults := config.Load()

	app := orpheus.New("lo").
		SetDescription("Inspect and edit a Bethesda game's load order and active plugins").
		SetVersion("0.1.0")

	app.AddGlobalFlag("game", "g", defaults.Game, "game id: morrowind, oblivion, skyrim, skyrimse, fallout3, newvegas, fallout4")
	app.AddGlobalFlag("game-path", "", defaults.GamePath, "path to the game's install directory")
	app.AddGlobalFlag("local-path", "", defaults.LocalPath, "path to the game's per-user data directory")

	app.Command("list", "Print the current load order", listCmd)
	app.Command("position", "Print a plugin's position", positionCmd)
	app.Command("set-order", "Replace the entire load order", setOrderCmd)
	app.Command("set-position", "Move a plugin to a position, inserting it if needed", setPositionCmd)
	app.Command("active", "Print the active plugins", activeCmd)
	app.Command("set-active", "Replace the entire active plugin set", setActiveCmd)
	app.Command("activate", "Activate a plugin", activateCmd)
	app.Command("deactivate", "Deactivate a plugin", deactivateCmd)
	app.Command("set-master", "Change the game master plugin (Timestamp-method games only)", setMasterCmd)
	app.Command("fix", "Reload from disk and rewrite the on-disk files", fixCmd)
	app.Command("sync-check", "Report whether the load order and active plugins files agree", syncCheckCmd)

	app.SetDefaultCommand("help")

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lo: %v\n", err)
		os.Exit(1)
	}
}

func openHandle(ctx *orpheus.Context) (*loadorder.Handle, error) {
	gameFlag := ctx.GetGlobalFlagString("game")
	id, ok := gameIDs[strings.ToLower(gameFlag)]
	if !ok {
		return nil, fmt.Errorf("unrecognised --game %q", gameFlag)
	}

	gamePath := ctx.GetGlobalFlagString("game-path")
	if gamePath == "" {
		return nil, fmt.Errorf("--game-path is required")
	}
	localPath := ctx.GetGlobalFlagString("local-path")

	h, err := loadorder.Create(id, gamePath, localPath, nil)
	if err != nil {
		return nil, err
	}
	for _, w := range h.Warnings() {
		fmt.Fprintf(os.Stderr, "lo: warning: %s\n", w.Message)
	}
	return h, nil
}

func listCmd(ctx *orpheus.Context) error {
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	order, err := h.GetLoadOrder()
	if err != nil {
		return err
	}
	for i, name := range order {
		active, err := h.IsActive(name)
		if err != nil {
			return err
		}
		marker := " "
		if active {
			marker = "*"
		}
		fmt.Printf("%3d %s %s\n", i, marker, name)
	}
	return nil
}

func positionCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() < 1 {
		return fmt.Errorf("usage: position <plugin>")
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	pos, err := h.GetPosition(ctx.GetArg(0))
	if err != nil {
		return err
	}
	fmt.Println(pos)
	return nil
}

func setOrderCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() == 0 {
		return fmt.Errorf("usage: set-order <plugin>...")
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	names := make([]string, ctx.ArgCount())
	for i := range names {
		names[i] = ctx.GetArg(i)
	}
	return h.SetLoadOrder(names)
}

func setPositionCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() < 2 {
		return fmt.Errorf("usage: set-position <plugin> <index>")
	}
	index, err := strconv.Atoi(ctx.GetArg(1))
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", ctx.GetArg(1), err)
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.SetPosition(ctx.GetArg(0), index)
}

func activeCmd(ctx *orpheus.Context) error {
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	names, err := h.GetActivePlugins()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func setActiveCmd(ctx *orpheus.Context) error {
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	names := make([]string, ctx.ArgCount())
	for i := range names {
		names[i] = ctx.GetArg(i)
	}
	return h.SetActivePlugins(names)
}

func activateCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() < 1 {
		return fmt.Errorf("usage: activate <plugin>")
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Activate(ctx.GetArg(0))
}

func deactivateCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() < 1 {
		return fmt.Errorf("usage: deactivate <plugin>")
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Deactivate(ctx.GetArg(0))
}

func setMasterCmd(ctx *orpheus.Context) error {
	if ctx.ArgCount() < 1 {
		return fmt.Errorf("usage: set-master <plugin>")
	}
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.SetGameMaster(ctx.GetArg(0))
}

func fixCmd(ctx *orpheus.Context) error {
	h, err := openHandle(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.FixPluginLists()
}

func syncCheckCmd(ctx *orpheus.Context) error {
	gameFlag := ctx.GetGlobalFlagString("game")
	id, ok := gameIDs[strings.ToLower(gameFlag)]
	if !ok {
		return fmt.Errorf("unrecognised --game %q", gameFlag)
	}
	gamePath := ctx.GetGlobalFlagString("game-path")
	if gamePath == "" {
		return fmt.Errorf("--game-path is required")
	}
	localPath := ctx.GetGlobalFlagString("local-path")

	settings, err := loadorder.NewGameSettings(id, gamePath, localPath)
	if err != nil {
		return err
	}
	synced, err := loadorder.IsSynchronized(settings)
	if err != nil {
		return err
	}
	if synced {
		fmt.Println("in sync")
	} else {
		fmt.Println("out of sync")
	}
	return nil
}
