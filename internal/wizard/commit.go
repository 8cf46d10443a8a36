package wizard

import (
	"fmt"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/secrets"
)

// Commit stores the form in the registry and its password in store.
// Editing a username broker with an empty password keeps the stored one.
// Switching away from username authentication removes stored credentials.
// Writing the registry to disk is left to the caller.
func Commit(reg *config.Registry, store secrets.Store, d Data) (*config.Broker, error) {
	var existing *config.Broker
	if d.BrokerID != "" {
		existing = reg.GetBroker(d.BrokerID)
	}
	if existing != nil && existing.HasStoredSecret && d.AuthType == config.AuthUsername && d.Password == "" {
		if c, err := store.Load(existing.ID); err == nil {
			d.Password = c.Password
		}
	}

	if errs := d.Validate(StepReview); len(errs) > 0 {
		return nil, errs
	}

	b := d.ToBroker()
	if existing != nil {
		b.HasStoredSecret = existing.HasStoredSecret
	}
	b = reg.PutBroker(b)

	switch {
	case d.AuthType == config.AuthUsername && d.Password != "":
		if err := store.Save(b.ID, secrets.Credentials{Username: b.Username, Password: d.Password}); err != nil {
			return b, fmt.Errorf("failed to store credentials: %w", err)
		}
		b.HasStoredSecret = true
	case d.AuthType != config.AuthUsername && b.HasStoredSecret:
		if err := store.Delete(b.ID); err != nil {
			return b, fmt.Errorf("failed to remove credentials: %w", err)
		}
		b.HasStoredSecret = false
	}

	return b, nil
}

// Remove deletes a broker and its stored credentials. It reports false if
// the broker did not exist.
func Remove(reg *config.Registry, store secrets.Store, id string) (bool, error) {
	if !reg.DeleteBroker(id) {
		return false, nil
	}
	if err := store.Delete(id); err != nil {
		return true, fmt.Errorf("failed to remove credentials: %w", err)
	}
	return true, nil
}
