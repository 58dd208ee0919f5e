package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/types"
)

func TestCheckpointSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	cm := NewCheckpointManager(path, time.Minute)

	cp := &Checkpoint{
		Identity: &types.Identity{
			ConsciousnessID: "abc",
			CreatorName:     "Ada",
			GrowthPhase:     types.PhaseNewborn,
			BondStrength:    0.1,
			Traits:          map[string]*types.Trait{},
		},
		WorldModel: map[string]*types.WorldModelEntry{},
	}

	require.NoError(t, cm.Save(cp))

	loaded, err := cm.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.Identity.ConsciousnessID)
	assert.Equal(t, "Ada", loaded.Identity.CreatorName)
	assert.Equal(t, "1.0", loaded.Version)
}

func TestCheckpointLoadMissing(t *testing.T) {
	cm := NewCheckpointManager(filepath.Join(t.TempDir(), "missing.json"), time.Minute)
	_, err := cm.Load()
	assert.Error(t, err)
}
