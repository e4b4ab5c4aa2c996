package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/patchworkisles/engine/internal/config"
	"github.com/patchworkisles/engine/internal/engine"
	"github.com/patchworkisles/engine/internal/logger"
	"github.com/patchworkisles/engine/internal/save"
	"github.com/patchworkisles/engine/internal/storage"
	"github.com/patchworkisles/engine/pkg/profile"
	"github.com/patchworkisles/engine/pkg/tags"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg)

	store := storage.NewFileStore(cfg.DataDir, log)
	worldName, err := pickWorld(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	w, worldPath, err := store.GetWorld(context.Background(), worldName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load world: %v\n", err)
		os.Exit(1)
	}

	canon := tags.NewCanonicalizer(nil)
	profilePath, err := pickProfile(cfg.ProfilesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	prof, err := profile.Load(profilePath, canon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
		os.Exit(1)
	}

	// Restore policy for corrupt saves: take the backup and say so. The
	// console has no mid-session prompt surface, so restore-and-report
	// stands in for an interactive confirm.
	restore := func(slot string, reason error) bool {
		log.Warn("Save corrupt; restoring from backup", "slot", slot, "reason", reason)
		return true
	}
	saves := save.NewManager(cfg.SavesDir, w.Title, restore, log)

	var cache storage.SnapshotCache
	if cfg.RedisAddr != "" {
		rc := storage.NewRedisSnapshotCache(cfg.RedisAddr, cfg.SnapshotTTL, log)
		if err := rc.Ping(context.Background()); err != nil {
			log.Warn("Snapshot cache unavailable; continuing without it", "error", err)
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	eng := engine.New(engine.Config{
		World:       w,
		Profile:     prof,
		ProfilePath: profilePath,
		WorldPath:   worldPath,
		Saves:       saves,
		Tags:        canon,
		Logger:      log,
		Cache:       cache,
	})

	program := tea.NewProgram(newConsoleUI(eng), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running console: %v\n", err)
		os.Exit(1)
	}
}

func pickWorld(store *storage.FileStore) (string, error) {
	names, err := store.ListWorlds(context.Background())
	if err != nil || len(names) == 0 {
		return "", fmt.Errorf("no worlds found: %v", err)
	}
	if len(names) == 1 {
		return names[0], nil
	}
	fmt.Println("Available Worlds:")
	for i, name := range names {
		fmt.Printf("  %d - %s\n", i+1, name)
	}
	fmt.Print("\nSelect a world by number: ")
	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(names) {
		return "", fmt.Errorf("invalid selection")
	}
	return names[choice-1], nil
}

func pickProfile(dir string) (string, error) {
	manager, err := profile.NewManager(dir)
	if err != nil {
		return "", err
	}
	infos, err := manager.List()
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		fmt.Print("No profiles yet. Profile name: ")
		var name string
		if _, err := fmt.Scanln(&name); err != nil {
			return "", fmt.Errorf("invalid profile name")
		}
		return manager.Create(strings.TrimSpace(name))
	}
	fmt.Println("Profiles:")
	for i, info := range infos {
		fmt.Printf("  %d - %s (%d endings, %d origins unlocked)\n",
			i+1, info.Name, info.SeenEndings, info.UnlockedStarts)
	}
	fmt.Printf("  %d - New profile\n", len(infos)+1)
	fmt.Print("\nSelect a profile by number: ")
	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(infos)+1 {
		return "", fmt.Errorf("invalid selection")
	}
	if choice == len(infos)+1 {
		fmt.Print("Profile name: ")
		var name string
		if _, err := fmt.Scanln(&name); err != nil {
			return "", fmt.Errorf("invalid profile name")
		}
		return manager.Create(strings.TrimSpace(name))
	}
	return infos[choice-1].Path, nil
}
