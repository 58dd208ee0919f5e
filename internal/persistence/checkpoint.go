package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/echocog/persona-core/internal/types"
)

// CheckpointManager periodically snapshots the full cognitive state to
// disk, independent of the per-turn Phase 10 writes to Dgraph/Redis —
// a supplemented feature (SPEC_FULL.md) grounded on
// core/identity/persistent_identity.go's SaveCheckpoint/LoadCheckpoint
// and core/persistence/state_manager.go's atomic write-then-rename.
type CheckpointManager struct {
	mu       sync.Mutex
	path     string
	interval time.Duration
	stopCh   chan struct{}
}

// Checkpoint is the full snapshot written to disk.
type Checkpoint struct {
	Identity     *types.Identity               `json:"identity"`
	WorkingItems []*types.WorkingItem           `json:"working_items"`
	Emotion      *types.EmotionState            `json:"emotion"`
	WorldModel   map[string]*types.WorldModelEntry `json:"world_model"`
	SavedAt      time.Time                      `json:"saved_at"`
	Version      string                         `json:"version"`
}

// NewCheckpointManager creates a manager writing to path every interval.
func NewCheckpointManager(path string, interval time.Duration) *CheckpointManager {
	return &CheckpointManager{path: path, interval: interval, stopCh: make(chan struct{})}
}

// Save atomically writes the checkpoint (temp file + rename), matching
// the teacher's state_manager.go SaveState pattern.
func (cm *CheckpointManager) Save(cp *Checkpoint) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cp.SavedAt = time.Now()
	cp.Version = "1.0"

	dir := filepath.Dir(cm.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := cm.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, cm.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint from disk, if any.
func (cm *CheckpointManager) Load() (*Checkpoint, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// RunAutoSave saves via snapshot() every interval until stopped.
func (cm *CheckpointManager) RunAutoSave(snapshot func() *Checkpoint) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = cm.Save(snapshot())
		case <-cm.stopCh:
			return
		}
	}
}

// Stop ends the auto-save loop.
func (cm *CheckpointManager) Stop() { close(cm.stopCh) }
