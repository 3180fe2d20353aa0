package filestore

import (
	"context"
	"sync"
	"sync/atomic"
)

// CallbackChangeToken is a ChangeToken that supports active callbacks.
// Used by drivers that have native file system events (local, memory).
type CallbackChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

// RegisterChangeCallback registers callback. If the token has already
// changed the callback runs immediately.
func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		callback()
		return func() {}
	}
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			// Set to nil instead of removing to avoid index shifting
			t.callbacks[index] = nil
		}
	}
}

// SignalChange marks the token as changed and invokes all callbacks.
// This should be called by the driver when a change is detected.
func (t *CallbackChangeToken) SignalChange() {
	t.mu.Lock()
	if t.changed.Swap(true) {
		t.mu.Unlock()
		return
	}
	callbacks := make([]func(), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

// CancelledChangeToken is a ChangeToken that is already in a "changed" state.
// Useful for signaling that watching is not supported.
type CancelledChangeToken struct{}

func (CancelledChangeToken) HasChanged() bool {
	return true
}

func (CancelledChangeToken) ActiveChangeCallbacks() bool {
	return false
}

func (CancelledChangeToken) RegisterChangeCallback(callback func()) func() {
	callback()
	return func() {}
}

// OnChange keeps watching until ctx is done: every time the token produced
// by tokenProducer fires, changeAction runs and a fresh token is requested.
// Watching stops when tokenProducer fails or returns a token that cannot
// raise callbacks.
//
// Example:
//
//	filestore.OnChange(ctx,
//	    func() (filestore.ChangeToken, error) {
//	        return fs.(filestore.CanWatch).Watch(ctx, "**/library.json")
//	    },
//	    mapper.Reset,
//	)
func OnChange(ctx context.Context, tokenProducer func() (ChangeToken, error), changeAction func()) {
	go func() {
		for {
			token, err := tokenProducer()
			if err != nil || !token.ActiveChangeCallbacks() {
				return
			}

			done := make(chan struct{})
			var once sync.Once
			unregister := token.RegisterChangeCallback(func() {
				once.Do(func() { close(done) })
			})

			select {
			case <-ctx.Done():
				unregister()
				return
			case <-done:
				unregister()
				changeAction()
			}
		}
	}()
}
