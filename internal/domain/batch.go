package domain

import (
	"sort"
	"time"
)

// SnapshotSet holds snapshots with value-equality semantics: adding a snapshot equal to one
// already present is a no-op. It is not safe for concurrent use.
type SnapshotSet struct {
	items map[string]Snapshot
}

func NewSnapshotSet() *SnapshotSet {
	return &SnapshotSet{items: make(map[string]Snapshot)}
}

// Add inserts s and reports whether it was new.
func (ss *SnapshotSet) Add(s Snapshot) bool {
	key := s.Key()
	if _, exists := ss.items[key]; exists {
		return false
	}
	ss.items[key] = s
	return true
}

func (ss *SnapshotSet) Len() int {
	return len(ss.items)
}

// Slice returns the members ordered by key. Order carries no meaning.
func (ss *SnapshotSet) Slice() []Snapshot {
	keys := make([]string, 0, len(ss.items))
	for k := range ss.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, ss.items[k])
	}
	return out
}

// Batch is the complete set of snapshots produced by one collection cycle.
// An empty Batch means the cycle ran and collected nothing.
type Batch struct {
	Label       string     `json:"label"`
	CollectedAt time.Time  `json:"collectedAt"`
	Snapshots   []Snapshot `json:"snapshots"`
}

const BatchLabelLayout = "15:04:05"

func NewBatch(collectedAt time.Time, set *SnapshotSet) Batch {
	snaps := []Snapshot{}
	if set != nil {
		snaps = set.Slice()
	}
	return Batch{
		Label:       collectedAt.Local().Format(BatchLabelLayout),
		CollectedAt: collectedAt,
		Snapshots:   snaps,
	}
}

func (b Batch) Empty() bool {
	return len(b.Snapshots) == 0
}
