package application

import (
	"sync"
	"testing"
)

func TestPollLocksSerialisePerPoll(t *testing.T) {
	locks := NewPollLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("poll-1")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("expected released entries to be dropped, got %d", n)
	}
}

func TestPollLocksIndependentPolls(t *testing.T) {
	locks := NewPollLocks()

	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if n := locks.size(); n != 1 {
		t.Fatalf("expected only the held entry to remain, got %d", n)
	}
	unlockA()
}
