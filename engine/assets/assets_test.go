package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/gensou/engine/core"
)

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want AssetType
	}{
		{"textures/player.png", AssetTypeImage},
		{"textures/PLAYER.JPG", AssetTypeImage},
		{"textures/sky.webp", AssetTypeImage},
		{"fonts/ui.fnt", AssetTypeFont},
		{"shaders/quad.vert.spv", AssetTypeShader},
		{"gensou.toml", AssetTypeConfig},
		{"notes.txt", AssetTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.path); got != tt.want {
			t.Errorf("determineAssetType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestAssetManagerIndexesTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"textures/a.png", "textures/b.png", "ui.fnt", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	am, err := NewAssetManager(core.NewEngineEvents())
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer am.Shutdown()

	images := am.Assets(AssetTypeImage)
	if len(images) != 2 {
		t.Fatalf("images = %v, want 2 entries", images)
	}
	if _, ok := am.Lookup(filepath.Join(dir, "ui.fnt")); !ok {
		t.Fatalf("font not indexed")
	}
	if _, ok := am.Lookup(filepath.Join(dir, "readme.md")); ok {
		t.Fatalf("unknown file type was indexed")
	}
}

func TestAssetManagerBroadcastsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tex.png")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := core.NewEngineEvents()
	var mu sync.Mutex
	var got []core.AssetChangedEvent
	changed := make(chan struct{}, 16)
	events.AssetChanged.Subscribe(func(e core.AssetChangedEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		changed <- struct{}{}
	})

	am, err := NewAssetManager(events)
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer am.Shutdown()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("no change event for a rewritten asset")
	}

	mu.Lock()
	first := got[0]
	mu.Unlock()
	if first.Path != path || first.Removed {
		t.Fatalf("event = %+v, want change of %s", first, path)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("no removal event")
		}
		mu.Lock()
		last := got[len(got)-1]
		mu.Unlock()
		if last.Removed {
			if last.Path != path {
				t.Fatalf("removal path = %s, want %s", last.Path, path)
			}
			break
		}
	}
	if _, ok := am.Lookup(path); ok {
		t.Fatalf("removed asset still indexed")
	}
}

func TestShutdownWithoutInitialize(t *testing.T) {
	am, err := NewAssetManager(core.NewEngineEvents())
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
