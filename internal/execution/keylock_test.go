package execution

import (
	"sync"
	"testing"
	"time"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	kl := newKeyLock()
	kl.Lock("a")

	acquired := make(chan struct{})
	go func() {
		kl.Lock("a")
		close(acquired)
		kl.Unlock("a")
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same key should block")
	case <-time.After(50 * time.Millisecond):
	}

	kl.Unlock("a")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock was never granted")
	}
}

func TestKeyLock_DifferentKeysIndependent(t *testing.T) {
	kl := newKeyLock()
	kl.Lock("a")
	defer kl.Unlock("a")

	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestKeyLock_ReleasesEntries(t *testing.T) {
	kl := newKeyLock()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("k")
			kl.Unlock("k")
		}()
	}
	wg.Wait()

	if n := kl.size(); n != 0 {
		t.Errorf("size() = %d after all unlocks, want 0", n)
	}

	// Unlocking an unknown key is a no-op
	kl.Unlock("missing")
}
