package secrets

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestMemory_SaveLoadDelete(t *testing.T) {
	s := NewMemory()

	want := Credentials{Username: "operator", Password: "s3cret"}
	if err := s.Save("broker-1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load("broker-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := s.Delete("broker-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Load("broker-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("broker-1"); err != nil {
		t.Errorf("Delete() of missing credentials error = %v, want nil", err)
	}
}

func TestSave_Replaces(t *testing.T) {
	s := NewMemory()
	_ = s.Save("b", Credentials{Username: "a", Password: "1"})
	_ = s.Save("b", Credentials{Username: "a", Password: "2"})

	got, _ := s.Load("b")
	if got.Password != "2" {
		t.Errorf("Password = %q, want 2", got.Password)
	}
}

func TestSave_RequiresID(t *testing.T) {
	if err := NewMemory().Save("", Credentials{}); err == nil {
		t.Error("Save() with empty broker id should fail")
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	s := NewKeyring(ring)
	_ = s.Save("abc", Credentials{Username: "u"})

	keys, err := ring.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "broker/abc" {
		t.Errorf("Keys() = %v, want [broker/abc]", keys)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "broker/bad", Data: []byte("not json")}})
	if _, err := NewKeyring(ring).Load("bad"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want corrupt-data error", err)
	}
}

func TestSetStore(t *testing.T) {
	mem := NewMemory()
	SetStore(mem)
	t.Cleanup(func() { SetStore(nil) })

	got, err := GetStore()
	if err != nil {
		t.Fatalf("GetStore() error = %v", err)
	}
	if got != Store(mem) {
		t.Error("GetStore() should return the store set with SetStore()")
	}
}
