package store

import (
	"bytes"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/modl/pkg/image"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "images.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	img := image.New("five", []byte{0x04, 0x00, 0x03, 0x05, 0x01}, image.Limits{StackSize: 16})

	hash, err := s.Put(img)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if hash != hex.EncodeToString(img.Hash[:]) {
		t.Errorf("hash = %s, want %x", hash, img.Hash)
	}

	got, err := s.Get(hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "five" || got.ID != img.ID || got.Limits.StackSize != 16 {
		t.Errorf("Get = %+v", got)
	}
	if !bytes.Equal(got.Code, img.Code) {
		t.Errorf("code = % x, want % x", got.Code, img.Code)
	}

	got, err = s.Get(hash[:8])
	if err != nil {
		t.Fatalf("Get(prefix): %v", err)
	}
	if got.ID != img.ID {
		t.Errorf("prefix lookup returned %s, want %s", got.ID, img.ID)
	}
}

func TestPutReplacesSameCode(t *testing.T) {
	s := openTemp(t)
	code := []byte{0x01}
	if _, err := s.Put(image.New("first", code, image.Limits{})); err != nil {
		t.Fatal(err)
	}
	hash, err := s.Put(image.New("second", code, image.Limits{}))
	if err != nil {
		t.Fatal(err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}
	if entries[0].Name != "second" || entries[0].Hash != hash || entries[0].Size != 1 {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestGetErrors(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Put(image.New("", []byte{0x01}, image.Limits{})); err != nil {
		t.Fatal(err)
	}

	// sha256 of 0x01 starts with 4bf5.
	if _, err := s.Get("00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(00) = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(\"\") = %v, want ErrNotFound", err)
	}
	if _, err := s.Get("zz"); err == nil {
		t.Error("Get(zz) succeeded, want an error")
	}
	if _, err := s.Get("%"); err == nil {
		t.Error("Get(%) succeeded, want an error")
	}
}

func TestGetAmbiguous(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 40; i++ {
		if _, err := s.Put(image.New("", []byte{0x04, 0x00, 0x03, byte(i), 0x01}, image.Limits{})); err != nil {
			t.Fatal(err)
		}
	}
	// 40 hashes cannot all start with distinct hex digits.
	seen := map[byte]bool{}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var dup string
	for _, e := range entries {
		if seen[e.Hash[0]] {
			dup = e.Hash[:1]
			break
		}
		seen[e.Hash[0]] = true
	}
	if _, err := s.Get(dup); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Get(%s) = %v, want ErrAmbiguous", dup, err)
	}
}

func TestDelete(t *testing.T) {
	s := openTemp(t)
	hash, err := s.Put(image.New("", []byte{0x01}, image.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(hash); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := s.Put(image.New("kept", []byte{0x01}, image.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	img, err := s.Get(hash)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if img.Name != "kept" {
		t.Errorf("name = %q, want kept", img.Name)
	}
}
