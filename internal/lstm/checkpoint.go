package lstm

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Checkpoint is the serialized form of a trained network plus the metadata
// inference needs: the target scaler and the exact feature column order the
// windows were built with.
type Checkpoint struct {
	Config      Config
	Weights     [][]float64
	TargetMean  float64
	TargetScale float64
	Columns     []string
	DataVersion string
}

// Checkpoint captures the current weights into a serializable snapshot.
func (n *Network) Checkpoint(targetMean, targetScale float64, columns []string, dataVersion string) *Checkpoint {
	return &Checkpoint{
		Config:      n.Cfg,
		Weights:     n.snapshot(),
		TargetMean:  targetMean,
		TargetScale: targetScale,
		Columns:     append([]string(nil), columns...),
		DataVersion: dataVersion,
	}
}

// Save writes the checkpoint with gob encoding.
func (c *Checkpoint) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer f.Close()
	var c Checkpoint
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return &c, nil
}

// Restore rebuilds a network from a checkpoint.
func (c *Checkpoint) Restore() (*Network, error) {
	n, err := New(c.Config, 1)
	if err != nil {
		return nil, err
	}
	ts := n.tensors()
	if len(ts) != len(c.Weights) {
		return nil, fmt.Errorf("checkpoint has %d weight blocks, network expects %d", len(c.Weights), len(ts))
	}
	for i, t := range ts {
		if len(t.W) != len(c.Weights[i]) {
			return nil, fmt.Errorf("weight block %d: size %d, expected %d", i, len(c.Weights[i]), len(t.W))
		}
		copy(t.W, c.Weights[i])
	}
	return n, nil
}
