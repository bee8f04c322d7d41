// Package device provides a stable per-installation identifier.
package device

import (
	"github.com/CrowdShield/CS-Backend/internal/localstate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StateKey is the persisted key holding the device id.
const StateKey = "crowdshield_device_id"

// Identity returns the same opaque id for every call on one installation.
type Identity struct {
	store localstate.Store
}

func NewIdentity(store localstate.Store) *Identity {
	return &Identity{store: store}
}

// ID returns the stored id, generating and persisting one on first use. If
// the id cannot be persisted the fresh value is still returned.
func (i *Identity) ID() string {
	if id, ok := i.store.Get(StateKey); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	if err := i.store.Set(StateKey, id); err != nil {
		zap.L().Warn("could not persist device id", zap.Error(err))
	}
	return id
}
