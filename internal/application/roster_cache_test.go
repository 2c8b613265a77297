package application

import (
	"context"
	"testing"
	"time"
)

func TestCachedRosterResolverReturnsCopies(t *testing.T) {
	stub := &rosterStub{members: map[string][]string{"g1/r1": {"a", "b"}}}
	cache := NewCachedRosterResolver(stub, time.Minute, 4, time.Now)

	first, err := cache.ResolveRoster(context.Background(), "g1", "r1")
	if err != nil {
		t.Fatalf("ResolveRoster returned error: %v", err)
	}
	// Mutating the returned slice should not affect the cached copy.
	first[0] = "mutated"

	second, err := cache.ResolveRoster(context.Background(), "g1", "r1")
	if err != nil {
		t.Fatalf("ResolveRoster returned error: %v", err)
	}
	if second[0] != "a" {
		t.Fatalf("expected cached roster unchanged, got %v", second)
	}
	if stub.calls != 1 {
		t.Fatalf("expected one directory lookup, got %d", stub.calls)
	}
}

func TestCachedRosterResolverExpiresEntries(t *testing.T) {
	current := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	stub := &rosterStub{members: map[string][]string{"g1/r1": {"a"}}}
	cache := NewCachedRosterResolver(stub, time.Second, 4, func() time.Time { return current })

	if _, err := cache.ResolveRoster(context.Background(), "g1", "r1"); err != nil {
		t.Fatalf("ResolveRoster returned error: %v", err)
	}
	current = current.Add(2 * time.Second)
	if _, err := cache.ResolveRoster(context.Background(), "g1", "r1"); err != nil {
		t.Fatalf("ResolveRoster returned error: %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected expired entry to be refreshed, got %d lookups", stub.calls)
	}
}

func TestCachedRosterResolverDoesNotCacheErrors(t *testing.T) {
	stub := &rosterStub{members: map[string][]string{"g1/r1": {"a"}}, err: errDirectoryDown}
	cache := NewCachedRosterResolver(stub, time.Minute, 4, time.Now)

	if _, err := cache.ResolveRoster(context.Background(), "g1", "r1"); err == nil {
		t.Fatalf("expected directory error")
	}
	stub.err = nil
	members, err := cache.ResolveRoster(context.Background(), "g1", "r1")
	if err != nil || len(members) != 1 {
		t.Fatalf("expected recovery after failure, got %v, %v", members, err)
	}
}

func TestCachedRosterResolverInvalidate(t *testing.T) {
	stub := &rosterStub{members: map[string][]string{"g1/r1": {"a"}}}
	cache := NewCachedRosterResolver(stub, time.Minute, 1, time.Now)

	cache.ResolveRoster(context.Background(), "g1", "r1")
	cache.Invalidate("g1", "r1")
	cache.ResolveRoster(context.Background(), "g1", "r1")
	if stub.calls != 2 {
		t.Fatalf("expected invalidated entry to be resolved again, got %d lookups", stub.calls)
	}

	// A full cache evicts rather than grows.
	cache.ResolveRoster(context.Background(), "g1", "r2")
	if n := len(cache.entries); n != 1 {
		t.Fatalf("expected cache bounded to one entry, got %d", n)
	}
}
