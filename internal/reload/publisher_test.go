package reload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codewired/razorwire/internal/testutil"
)

func startPublisher(t *testing.T, root string, hub *testutil.RecordingHub) *Publisher {
	t.Helper()

	p := NewPublisher(root, hub, 20)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { p.Stop() })

	return p
}

func TestPublisher_StartStop(t *testing.T) {
	p := startPublisher(t, t.TempDir(), testutil.NewRecordingHub())

	if !p.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	// Start is idempotent
	if err := p.Start(context.Background()); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// Stop is idempotent
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestPublisher_StartStopChurn(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "churn")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	hub := testutil.NewRecordingHub()
	path := filepath.Join(dir, "panel.html")

	// Stop while events are still arriving; the event loop must drain
	// out cleanly rather than touch torn-down watcher state.
	for i := 0; i < 25; i++ {
		p := NewPublisher(root, hub, 5)
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = os.WriteFile(path, []byte("<div></div>"), 0o644)
			}
		}()

		if err := p.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
		wg.Wait()
	}
}

func TestPublisher_WritePublishesReplaceFragment(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dashboard"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	hub := testutil.NewRecordingHub()
	startPublisher(t, root, hub)

	path := filepath.Join(root, "dashboard", "summary.html")
	if err := os.WriteFile(path, []byte("<div>totals</div>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return len(hub.PublishedTo("dashboard")) >= 1
	})

	msgs := hub.PublishedTo("dashboard")
	got := msgs[len(msgs)-1]
	if !strings.Contains(got, `action="replace"`) {
		t.Errorf("fragment = %q, want replace action", got)
	}
	if !strings.Contains(got, `target="summary"`) {
		t.Errorf("fragment = %q, want target summary", got)
	}
	if !strings.Contains(got, "<div>totals</div>") {
		t.Errorf("fragment = %q, want file contents in template", got)
	}
}

func TestPublisher_RemovePublishesRemoveFragment(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "feed")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	path := filepath.Join(dir, "item.html")
	if err := os.WriteFile(path, []byte("<li>x</li>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	hub := testutil.NewRecordingHub()
	startPublisher(t, root, hub)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		for _, m := range hub.PublishedTo("feed") {
			if strings.Contains(m, `action="remove"`) {
				return true
			}
		}
		return false
	})

	var removeFrag string
	for _, m := range hub.PublishedTo("feed") {
		if strings.Contains(m, `action="remove"`) {
			removeFrag = m
		}
	}
	if !strings.Contains(removeFrag, `target="item"`) {
		t.Errorf("fragment = %q, want target item", removeFrag)
	}
	if strings.Contains(removeFrag, "<template>") {
		t.Errorf("fragment = %q, remove must not carry a template", removeFrag)
	}
}

func TestPublisher_IgnoresNonHTMLFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "docs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	hub := testutil.NewRecordingHub()
	startPublisher(t, root, hub)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if got := hub.PublishCount(); got != 0 {
		t.Errorf("PublishCount() = %d, want 0 for non-HTML file", got)
	}
}

func TestPublisher_IgnoresRootLevelFiles(t *testing.T) {
	root := t.TempDir()
	hub := testutil.NewRecordingHub()
	startPublisher(t, root, hub)

	// A file directly under the root has no channel directory.
	if err := os.WriteFile(filepath.Join(root, "orphan.html"), []byte("<p></p>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if got := hub.PublishCount(); got != 0 {
		t.Errorf("PublishCount() = %d, want 0 for root-level file", got)
	}
}

func TestPublisher_WatchesNewChannelDirectories(t *testing.T) {
	root := t.TempDir()
	hub := testutil.NewRecordingHub()
	startPublisher(t, root, hub)

	dir := filepath.Join(root, "later")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "widget.html"), []byte("<span></span>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return len(hub.PublishedTo("later")) >= 1
	})
}

func TestPublisher_DebouncesRapidWrites(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "burst")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	hub := testutil.NewRecordingHub()
	p := NewPublisher(root, hub, 100)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	path := filepath.Join(dir, "panel.html")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("<div>v</div>"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return len(hub.PublishedTo("burst")) >= 1
	})
	time.Sleep(200 * time.Millisecond)

	if got := len(hub.PublishedTo("burst")); got != 1 {
		t.Errorf("published %d fragments for 5 rapid writes, want 1", got)
	}
}
