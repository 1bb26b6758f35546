// Package reload publishes wire fragments when files under a watched
// directory change, giving connected clients live updates during
// development.
//
// The directory layout maps to streams: <root>/<channel>/<target>.html
// publishes to <channel>, replacing the element whose id is the file
// base name. Deleting the file publishes a remove fragment. Files
// directly under the root have no channel and are ignored.
package reload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/domain/ports"
	"github.com/codewired/razorwire/internal/wire"
)

// Publisher watches a fragment directory and publishes changes.
type Publisher struct {
	root       string
	hub        ports.StreamHub
	debounceMS int

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	cancel    context.CancelFunc
	running   bool
}

// NewPublisher creates a reload publisher rooted at root.
func NewPublisher(root string, hub ports.StreamHub, debounceMS int) *Publisher {
	return &Publisher{
		root:       root,
		hub:        hub,
		debounceMS: debounceMS,
	}
}

// Start begins watching the fragment directory.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.debouncer = NewDebouncer(time.Duration(p.debounceMS)*time.Millisecond, p.publish)
	p.running = true
	p.mu.Unlock()

	if err := p.addWatchRecursive(p.root); err != nil {
		_ = p.Stop()
		return err
	}

	go p.eventLoop(watchCtx, watcher)

	log.Info().
		Str("path", p.root).
		Int("debounce_ms", p.debounceMS).
		Msg("reload publisher started")

	return nil
}

// Stop terminates watching.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	if p.cancel != nil {
		p.cancel()
	}
	if p.debouncer != nil {
		p.debouncer.Stop()
	}
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		log.Info().Msg("reload publisher stopped")
		return err
	}
	return nil
}

// IsRunning returns true if the publisher is active.
func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// addWatchRecursive adds watches for root and all subdirectories.
func (p *Publisher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if err := p.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
		}
		return nil
	})
}

// eventLoop handles fsnotify events. The watcher is passed in rather
// than read from the struct, which Stop mutates concurrently; Close
// terminates the loop by closing both channels.
func (p *Publisher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (p *Publisher) handleEvent(event fsnotify.Event) {
	// New subdirectories become new channels; watch them as they appear.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			p.mu.Lock()
			if p.watcher != nil {
				if err := p.watcher.Add(event.Name); err != nil {
					log.Warn().Err(err).Str("path", event.Name).Msg("failed to add watch")
				}
			}
			p.mu.Unlock()
			return
		}
	}

	if filepath.Ext(event.Name) != ".html" {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		p.debouncer.Add(event.Name, ChangeWrite)
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		p.debouncer.Add(event.Name, ChangeRemove)
	}
}

// publish maps a debounced file change to a fragment and publishes it.
func (p *Publisher) publish(path string, changeType ChangeType) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("path outside watch root")
		return
	}

	channel, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		log.Debug().Str("path", rel).Msg("skipping file without channel directory")
		return
	}
	target := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))

	var frag wire.Fragment
	switch changeType {
	case ChangeRemove:
		frag = wire.Remove(target)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read fragment")
			return
		}
		frag = wire.Replace(target, string(data))
	}

	if err := p.hub.Publish(channel, frag.Render()); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("reload publish failed")
		return
	}

	log.Debug().
		Str("channel", channel).
		Str("target", target).
		Str("action", string(frag.Action)).
		Msg("fragment published")
}
