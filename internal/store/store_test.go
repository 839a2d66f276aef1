package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"poisync/internal/wire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "peers.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutAndAll(t *testing.T) {
	s := openTestStore(t)
	ep := wire.Endpoint{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}

	if err := s.Put(ep, "PoiB"); err != nil {
		t.Fatalf("put: %v", err)
	}

	records, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].Endpoint != ep.String() {
		t.Errorf("endpoint: got %s, want %s", records[0].Endpoint, ep)
	}
	if records[0].Name != "PoiB" {
		t.Errorf("name: got %q, want PoiB", records[0].Name)
	}
	if records[0].PairedAt.IsZero() || records[0].LastSeen.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestStore_PutPreservesPairedAt(t *testing.T) {
	s := openTestStore(t)
	ep := wire.Endpoint{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}

	if err := s.Put(ep, "PoiB"); err != nil {
		t.Fatalf("first put: %v", err)
	}
	first, _ := s.All()

	time.Sleep(10 * time.Millisecond)
	if err := s.Put(ep, "PoiB-renamed"); err != nil {
		t.Fatalf("second put: %v", err)
	}

	records, _ := s.All()
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if !records[0].PairedAt.Equal(first[0].PairedAt) {
		t.Errorf("pairedAt changed: %v -> %v", first[0].PairedAt, records[0].PairedAt)
	}
	if records[0].Name != "PoiB-renamed" {
		t.Errorf("name not refreshed: %q", records[0].Name)
	}
	if !records[0].LastSeen.After(first[0].LastSeen) {
		t.Error("lastSeen not advanced")
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ep := wire.Endpoint{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}
	other := wire.Endpoint{0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC}

	s.Put(ep, "PoiB")
	s.Put(other, "PoiC")

	if err := s.Delete(ep); err != nil {
		t.Fatalf("delete: %v", err)
	}

	records, _ := s.All()
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].Endpoint != other.String() {
		t.Errorf("survivor: got %s, want %s", records[0].Endpoint, other)
	}

	// Deleting a never-stored endpoint is not an error.
	if err := s.Delete(ep); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.db")
	ep := wire.Endpoint{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}

	s, err := New(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	s.Put(ep, "PoiB")
	s.Close()

	s, err = New(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close()

	records, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(records) != 1 || records[0].Name != "PoiB" {
		t.Errorf("records after reopen: %+v", records)
	}
}
