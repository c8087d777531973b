package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/gensou/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// AssetManager indexes the files under the asset directory and watches them.
// Every change to a known asset type is broadcast on EngineEvents.AssetChanged.
type AssetManager struct {
	assets map[string]AssetInfo
	events *core.EngineEvents

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

func NewAssetManager(events *core.EngineEvents) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		events:   events,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.started = true
	go am.start()
	return nil
}

// Watch adds a single file outside the asset tree, such as the config file.
func (am *AssetManager) Watch(path string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	am.index(path)
	return am.fsnotify.Add(path)
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name, false)
}

// Lookup returns the indexed entry for path.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

// Assets returns the indexed paths of one type, sorted.
func (am *AssetManager) Assets(t AssetType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []string
	for p, info := range am.assets {
		if info.Type == t {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handle(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handle(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := am.watchRecursive(e.Name, false); err != nil {
				core.LogWarn("could not watch '%s': %s", e.Name, err.Error())
			}
		}
		return
	}

	path := filepath.Clean(e.Name)
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if am.index(path) {
			core.LogDebug("asset changed: %s", path)
			am.events.AssetChanged.Broadcast(core.AssetChangedEvent{Path: path})
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if am.removeAsset(path) {
			core.LogDebug("asset removed: %s", path)
			am.events.AssetChanged.Broadcast(core.AssetChangedEvent{Path: path, Removed: true})
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.index(walkPath)
		return nil
	})
}

func (am *AssetManager) index(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}
	path = filepath.Clean(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	_, ok := am.assets[path]
	delete(am.assets, path)
	return ok
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	err := am.fsnotify.Close()
	if am.started {
		<-am.stopped
	}
	return err
}
