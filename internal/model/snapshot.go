package model

import "time"

// SnapshotSchemaVersion is bumped whenever the serialized shape of
// Snapshot changes in a way future readers need to know about. Readers
// ignore unknown fields regardless of version (forward compatibility);
// the version is for diagnosing the rare case where an old reader must
// refuse a snapshot it structurally cannot interpret.
const SnapshotSchemaVersion = 1

// Snapshot is the observed membership of a (playlist, platform) pair at
// the last successful sync. It is immutable once written and is always
// replaced atomically by a new snapshot on the next successful sync.
type Snapshot struct {
	BindingID       int64             `json:"binding_id"`
	SchemaVersion   int               `json:"schema_version"`
	TakenAt         time.Time         `json:"taken_at"`
	LibraryMembers  []int64           `json:"library_members"`  // ordered track IDs
	PlatformMembers []string          `json:"platform_members"` // ordered external IDs
	LinkPairs       map[string]int64  `json:"link_pairs"`        // external_id -> track_id, as observed at snapshot time
}

// NewSnapshot builds a snapshot ready to persist, stamping the current
// schema version.
func NewSnapshot(bindingID int64, takenAt time.Time, library []int64, platform []string, linkPairs map[string]int64) Snapshot {
	if linkPairs == nil {
		linkPairs = map[string]int64{}
	}
	return Snapshot{
		BindingID:       bindingID,
		SchemaVersion:   SnapshotSchemaVersion,
		TakenAt:         takenAt,
		LibraryMembers:  library,
		PlatformMembers: platform,
		LinkPairs:       linkPairs,
	}
}
