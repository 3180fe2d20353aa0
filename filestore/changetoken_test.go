package filestore_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobeaver/libkit/driver/memory"
	"github.com/gobeaver/libkit/filestore"
)

func newMemory(t *testing.T, files map[string]string) *memory.Adapter {
	t.Helper()
	fs := memory.New()
	for p, content := range files {
		if err := fs.Write(context.Background(), p, strings.NewReader(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return fs
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCallbackChangeToken(t *testing.T) {
	t.Run("signals registered callbacks once", func(t *testing.T) {
		token := filestore.NewCallbackChangeToken()
		var calls, removed atomic.Int32
		token.RegisterChangeCallback(func() { calls.Add(1) })
		unregister := token.RegisterChangeCallback(func() { removed.Add(1) })
		unregister()

		if token.HasChanged() {
			t.Fatal("expected fresh token to be unchanged")
		}
		token.SignalChange()
		token.SignalChange()

		if !token.HasChanged() {
			t.Error("expected token to be changed")
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", calls.Load())
		}
		if removed.Load() != 0 {
			t.Errorf("expected unregistered callback to be skipped, got %d calls", removed.Load())
		}
	})

	t.Run("runs late callbacks immediately", func(t *testing.T) {
		token := filestore.NewCallbackChangeToken()
		token.SignalChange()

		called := false
		token.RegisterChangeCallback(func() { called = true })
		if !called {
			t.Error("expected callback to run immediately")
		}
	})

	t.Run("cancelled token is inert", func(t *testing.T) {
		var token filestore.ChangeToken = filestore.CancelledChangeToken{}
		if !token.HasChanged() || token.ActiveChangeCallbacks() {
			t.Error("expected changed token without active callbacks")
		}
	})
}

func TestOnChange(t *testing.T) {
	t.Run("re-arms after every change", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tokens := make(chan *filestore.CallbackChangeToken, 4)
		var actions atomic.Int32
		filestore.OnChange(ctx, func() (filestore.ChangeToken, error) {
			token := filestore.NewCallbackChangeToken()
			tokens <- token
			return token, nil
		}, func() { actions.Add(1) })

		(<-tokens).SignalChange()
		waitFor(t, func() bool { return actions.Load() == 1 }, "expected first change action")
		(<-tokens).SignalChange()
		waitFor(t, func() bool { return actions.Load() == 2 }, "expected second change action")
	})

	t.Run("stops on producer error", func(t *testing.T) {
		var produced atomic.Int32
		done := make(chan struct{})
		filestore.OnChange(context.Background(), func() (filestore.ChangeToken, error) {
			if produced.Add(1) > 1 {
				t.Error("expected producer not to be called again")
			}
			close(done)
			return nil, errors.New("watch failed")
		}, func() { t.Error("expected no change action") })

		<-done
		time.Sleep(20 * time.Millisecond)
	})

	t.Run("follows a watching driver", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fs := newMemory(t, nil)
		var actions atomic.Int32
		filestore.OnChange(ctx, func() (filestore.ChangeToken, error) {
			return fs.Watch(ctx, "**/library.json")
		}, func() { actions.Add(1) })

		waitFor(t, func() bool {
			fs.Write(ctx, "dev/library.json", strings.NewReader("{}"), filestore.WithOverwrite(true))
			return actions.Load() > 0
		}, "expected change action after library.json write")
	})
}
