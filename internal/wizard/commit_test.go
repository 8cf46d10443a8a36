package wizard

import (
	"errors"
	"testing"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/secrets"
)

func usernameData() Data {
	d := DefaultData()
	d.AuthType = config.AuthUsername
	d.Username = "operator"
	d.Password = "s3cret"
	return d
}

func TestCommit_NewBroker(t *testing.T) {
	reg := config.NewRegistry()
	store := secrets.NewMemory()

	b, err := Commit(reg, store, usernameData())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if b.ID == "" {
		t.Fatal("Commit() did not assign an id")
	}
	if !b.HasStoredSecret {
		t.Error("HasStoredSecret = false, want true")
	}
	if reg.GetBroker(b.ID) == nil {
		t.Error("broker not in registry")
	}

	c, err := store.Load(b.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Username != "operator" || c.Password != "s3cret" {
		t.Errorf("stored credentials = %+v", c)
	}
}

func TestCommit_InvalidData(t *testing.T) {
	reg := config.NewRegistry()
	d := DefaultData()
	d.Name = ""

	_, err := Commit(reg, secrets.NewMemory(), d)
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("Commit() error = %v, want FieldErrors", err)
	}
	if fe.For("name") == "" {
		t.Errorf("FieldErrors missing name: %v", fe)
	}
	if len(reg.ListBrokers()) != 0 {
		t.Error("invalid data should not be stored")
	}
}

func TestCommit_EditKeepsStoredPassword(t *testing.T) {
	reg := config.NewRegistry()
	store := secrets.NewMemory()

	b, err := Commit(reg, store, usernameData())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	created := b.CreatedAt

	edit := FromBroker(b)
	edit.Name = "Renamed"
	if edit.Password != "" {
		t.Fatal("FromBroker() should never carry a password")
	}

	b2, err := Commit(reg, store, edit)
	if err != nil {
		t.Fatalf("Commit() edit error = %v", err)
	}
	if b2.ID != b.ID {
		t.Errorf("edit changed id: %s -> %s", b.ID, b2.ID)
	}
	if !b2.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on edit")
	}
	if !b2.HasStoredSecret {
		t.Error("HasStoredSecret lost on edit")
	}
	if c, _ := store.Load(b.ID); c.Password != "s3cret" {
		t.Errorf("stored password = %q, want unchanged", c.Password)
	}
}

func TestCommit_SwitchToAnonymousRemovesSecret(t *testing.T) {
	reg := config.NewRegistry()
	store := secrets.NewMemory()

	b, err := Commit(reg, store, usernameData())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	edit := FromBroker(b)
	edit.AuthType = config.AuthAnonymous
	b2, err := Commit(reg, store, edit)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if b2.HasStoredSecret {
		t.Error("HasStoredSecret = true after switching to anonymous")
	}
	if _, err := store.Load(b.ID); !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	reg := config.NewRegistry()
	store := secrets.NewMemory()

	b, err := Commit(reg, store, usernameData())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	ok, err := Remove(reg, store, b.ID)
	if err != nil || !ok {
		t.Fatalf("Remove() = %v, %v, want true, nil", ok, err)
	}
	if _, err := store.Load(b.ID); !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("credentials survived Remove(): %v", err)
	}

	ok, err = Remove(reg, store, b.ID)
	if err != nil || ok {
		t.Errorf("Remove() missing = %v, %v, want false, nil", ok, err)
	}
}
