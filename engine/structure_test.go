//go:build !samplerdebug

package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStructuralEditWithoutLockIsRejected(t *testing.T) {
	e := newTestEngine(4)
	g := setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	z, err := NewZone(longZone("extra"))
	if err != nil {
		t.Fatalf("new zone: %v", err)
	}
	if _, err := g.AddZone(z); !errors.Is(err, ErrStructureNotLocked) {
		t.Fatalf("expected ErrStructureNotLocked, got=%v", err)
	}
	if err := g.RemoveZone(g.Zones()[0]); !errors.Is(err, ErrStructureNotLocked) {
		t.Fatalf("expected ErrStructureNotLocked, got=%v", err)
	}
	if _, err := e.Part(0).AddGroup(NewGroup(GroupConfig{})); !errors.Is(err, ErrStructureNotLocked) {
		t.Fatalf("expected ErrStructureNotLocked, got=%v", err)
	}
	if len(g.Zones()) != 1 {
		t.Fatalf("expected tree unchanged")
	}
}

func TestDetachedTreeNeedsNoLock(t *testing.T) {
	g := NewGroup(GroupConfig{Name: "loose"})
	z, err := NewZone(longZone("z"))
	if err != nil {
		t.Fatalf("new zone: %v", err)
	}
	if _, err := g.AddZone(z); err != nil {
		t.Fatalf("expected detached group to accept zones, got=%v", err)
	}
	if err := g.RemoveZone(z); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestEditorExpiresWhenCallbackReturns(t *testing.T) {
	e := newTestEngine(4)
	var kept *Editor
	if err := e.Edit(context.Background(), func(ed *Editor) error {
		kept = ed
		return nil
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := kept.AddPart(PartConfig{Name: "late"}); !errors.Is(err, ErrStructureNotLocked) {
		t.Fatalf("expected ErrStructureNotLocked from a stale editor, got=%v", err)
	}
	if len(e.Parts()) != 0 {
		t.Fatalf("expected no part added")
	}
}

// editFromSecondGoroutine holds an Edit open while another goroutine calls
// AddPart, and checks the second edit waits for the first.
func editFromSecondGoroutine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entered := make(chan struct{})
	release := make(chan struct{})
	editDone := make(chan error, 1)
	go func() {
		editDone <- e.Edit(ctx, func(ed *Editor) error {
			close(entered)
			<-release
			_, err := ed.AddPart(PartConfig{Name: "first"})
			return err
		})
	}()
	<-entered

	addDone := make(chan error, 1)
	go func() {
		_, err := e.AddPart(ctx, PartConfig{Name: "second"})
		addDone <- err
	}()
	select {
	case err := <-addDone:
		t.Fatalf("expected AddPart to wait for the open edit, err=%v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-editDone; err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := <-addDone; err != nil {
		t.Fatalf("add part: %v", err)
	}
	var names []string
	if err := e.Controller().RunOnAudio(ctx, func() {
		for _, p := range e.Parts() {
			names = append(names, p.Name)
		}
	}); err != nil {
		t.Fatalf("run on audio: %v", err)
	}
	if len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Fatalf("expected parts in edit order, got=%v", names)
	}
}

func TestConcurrentEditWaitsWithoutAudio(t *testing.T) {
	editFromSecondGoroutine(t, newTestEngine(4))
}

func TestConcurrentEditWaitsWhileAudioRuns(t *testing.T) {
	e := newTestEngine(4)
	stop := audioThread(e)
	defer stop()
	editFromSecondGoroutine(t, e)
}
