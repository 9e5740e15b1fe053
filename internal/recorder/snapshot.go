package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/swarm-comms-simulator/core"
)

// SnapshotHeader identifies one visibility export.
type SnapshotHeader struct {
	Version  int       `json:"version"`
	Scenario string    `json:"scenario"`
	SimTime  time.Time `json:"sim_time"`
}

// PairVisibility is one pair's line-of-sight state in the export.
type PairVisibility struct {
	A           string   `json:"a"`
	B           string   `json:"b"`
	Clear       bool     `json:"clear"`
	Obstructors []string `json:"obstructors,omitempty"`
}

// VisibilitySnapshot is the zstd-compressed JSON document written at
// the end of a run so visibility state can be inspected offline.
type VisibilitySnapshot struct {
	Header SnapshotHeader   `json:"header"`
	Pairs  []PairVisibility `json:"pairs"`
}

// BuildVisibilitySnapshot converts a visibility cache snapshot into
// the export shape, with pairs sorted for stable output.
func BuildVisibilitySnapshot(scenario string, simTime time.Time, records map[core.PairKey]core.VisibilityRecord) VisibilitySnapshot {
	snap := VisibilitySnapshot{
		Header: SnapshotHeader{Version: 1, Scenario: scenario, SimTime: simTime.UTC()},
		Pairs:  make([]PairVisibility, 0, len(records)),
	}
	for key, rec := range records {
		snap.Pairs = append(snap.Pairs, PairVisibility{
			A:           key.A,
			B:           key.B,
			Clear:       rec.Clear,
			Obstructors: rec.Obstructors,
		})
	}
	sort.Slice(snap.Pairs, func(i, j int) bool {
		if snap.Pairs[i].A != snap.Pairs[j].A {
			return snap.Pairs[i].A < snap.Pairs[j].A
		}
		return snap.Pairs[i].B < snap.Pairs[j].B
	})
	return snap
}

// WriteVisibilitySnapshot writes the snapshot as zstd-compressed JSON.
func WriteVisibilitySnapshot(path string, snap VisibilitySnapshot) error {
	if path == "" {
		return fmt.Errorf("snapshot: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	zw, err := zstd.NewWriter(bw)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(zw)
	if err := enc.Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadVisibilitySnapshot loads a snapshot written by
// WriteVisibilitySnapshot.
func ReadVisibilitySnapshot(path string) (VisibilitySnapshot, error) {
	var snap VisibilitySnapshot

	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return snap, err
	}
	defer zr.Close()

	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot: decode: %w", err)
	}
	return snap, nil
}
