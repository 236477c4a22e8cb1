package preview

import (
	"os"
	"testing"
	"time"
)

func TestPutThenPath(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	id, err := s.Put([]byte("%PDF-fake"))
	if err != nil {
		t.Fatal(err)
	}
	path, ok := s.Path(id)
	if !ok {
		t.Fatal("preview not found inside retention window")
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "%PDF-fake" {
		t.Fatalf("backing file wrong: %q, %v", data, err)
	}
}

func TestUnknownIDNotFound(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, ok := s.Path("no-such-preview"); ok {
		t.Fatal("unknown id resolved")
	}
}

func TestSweepRemovesEntryAndFile(t *testing.T) {
	s, err := New(t.TempDir(), 30*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	id, err := s.Put([]byte("%PDF-fake"))
	if err != nil {
		t.Fatal(err)
	}
	path, _ := s.Path(id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, okEntry := s.Path(id)
		_, statErr := os.Stat(path)
		if !okEntry && os.IsNotExist(statErr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("preview not swept within deadline")
}

func TestCloseDeletesFiles(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Put([]byte("%PDF-fake"))
	if err != nil {
		t.Fatal(err)
	}
	path, _ := s.Path(id)

	s.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("backing file survived Close: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after Close", s.Len())
	}
}
