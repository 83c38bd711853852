// Package distributed models the cooperating consumer process group and the
// agreed per-bucket workload split.
package distributed

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Launcher environment variables, as set by torchrun-style launchers.
const (
	EnvRank      = "RANK"
	EnvWorldSize = "WORLD_SIZE"
)

// ErrInvalidGroup is returned when the rank/world-size pair is inconsistent.
var ErrInvalidGroup = errors.New("invalid process group")

// Group identifies the calling process within a set of cooperating
// distributed consumers.
type Group struct {
	rank      int
	worldSize int
}

// NewGroup creates a process group descriptor.
func NewGroup(rank, worldSize int) (*Group, error) {
	if worldSize < 1 {
		return nil, fmt.Errorf("%w: world size %d", ErrInvalidGroup, worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return nil, fmt.Errorf("%w: rank %d not in [0,%d)", ErrInvalidGroup, rank, worldSize)
	}
	return &Group{rank: rank, worldSize: worldSize}, nil
}

// GroupFromEnv discovers the process group from RANK and WORLD_SIZE.
// A process launched standalone is a single-member group.
func GroupFromEnv() (*Group, error) {
	rank, err := envInt(EnvRank, 0)
	if err != nil {
		return nil, err
	}
	worldSize, err := envInt(EnvWorldSize, 1)
	if err != nil {
		return nil, err
	}
	return NewGroup(rank, worldSize)
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidGroup, name, v)
	}
	return n, nil
}

// Rank returns the id of the calling process.
func (g *Group) Rank() int { return g.rank }

// WorldSize returns the number of cooperating processes.
func (g *Group) WorldSize() int { return g.worldSize }

// Split partitions items into contiguous per-rank slices and returns the
// slice owned by the calling rank. Every rank receives ceil(len/worldSize)
// slots; with applyPadding the tail is filled by repeating the last item so
// all ranks get equal-sized slices, otherwise trailing ranks may receive
// fewer (possibly zero) items.
func (g *Group) Split(items []string, applyPadding bool) []string {
	if len(items) == 0 {
		return []string{}
	}
	perRank := (len(items) + g.worldSize - 1) / g.worldSize

	if applyPadding {
		padded := append([]string{}, items...)
		last := items[len(items)-1]
		for len(padded) < perRank*g.worldSize {
			padded = append(padded, last)
		}
		return padded[g.rank*perRank : (g.rank+1)*perRank]
	}

	start := g.rank * perRank
	if start >= len(items) {
		return []string{}
	}
	end := start + perRank
	if end > len(items) {
		end = len(items)
	}
	return append([]string{}, items[start:end]...)
}
