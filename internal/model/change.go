package model

// ChangeDirection is which side of a binding a SyncChange moves a track
// towards.
type ChangeDirection string

const (
	DirectionPlatformToLibrary ChangeDirection = "platform_to_library"
	DirectionLibraryToPlatform ChangeDirection = "library_to_platform"
)

// ChangeKind is what a SyncChange does.
type ChangeKind string

const (
	KindAdd      ChangeKind = "add"
	KindRemove   ChangeKind = "remove"
	KindConflict ChangeKind = "conflict"
	KindLink     ChangeKind = "link"
)

// ChangeCategory is the Detector's three-way-diff classification,
// carried on a SyncChange so the Planner and any caller can see which
// comparison produced it.
type ChangeCategory string

const (
	CategoryPlatformAdded   ChangeCategory = "platform_added"
	CategoryPlatformRemoved ChangeCategory = "platform_removed"
	CategoryLibraryAdded    ChangeCategory = "library_added"
	CategoryLibraryRemoved  ChangeCategory = "library_removed"
	CategoryConflict        ChangeCategory = "conflict"
	CategoryUnchanged       ChangeCategory = "unchanged"
)

// ConflictResolution records how the user chose to resolve a Conflict
// change. Empty until the user (or an automated policy) fills it in;
// an executor will not apply a conflict change with an empty resolution.
type ConflictResolution string

const (
	ResolutionNone           ConflictResolution = ""
	ResolutionKeepLibrary    ConflictResolution = "keep_library"
	ResolutionKeepPlatform   ConflictResolution = "keep_platform"
	ResolutionKeepBothLinked ConflictResolution = "keep_both_linked"
)

// SyncChange is one unit of diff: a single addition, removal, link
// establishment, or conflict discovered between the local library and
// one platform binding.
type SyncChange struct {
	ChangeID    string         `json:"change_id"`
	BindingID   int64          `json:"binding_id"`
	Direction   ChangeDirection `json:"direction"`
	Kind        ChangeKind     `json:"kind"`
	Category    ChangeCategory `json:"category"`
	Description string         `json:"description"`

	// TrackID is set when the change concerns a track already known to
	// the local library (an existing link, or a resolved match).
	TrackID *int64 `json:"track_id,omitempty"`
	// ExternalID is set when the change concerns a platform-side track.
	ExternalID *string `json:"external_id,omitempty"`

	NeedsConfirmation bool    `json:"needs_confirmation"`
	MatchConfidence   float64 `json:"match_confidence,omitempty"`

	// UserSelected defaults to true for safe operations and false for
	// any removal touching an unowned playlist or any change with
	// NeedsConfirmation set (spec.md §4.6).
	UserSelected bool `json:"user_selected"`

	ConflictResolution ConflictResolution `json:"conflict_resolution,omitempty"`

	// LibraryMetadata/PlatformMetadata carry side metadata the
	// Executor needs beyond TrackID/ExternalID: both sides' differing
	// fields for a Conflict change (so a caller can render a diff
	// before choosing a resolution), or the platform's own track
	// fields for a platform_to_library add that found no local match
	// (so the Executor can create the new local Track without another
	// remote fetch).
	LibraryMetadata  map[string]string `json:"library_metadata,omitempty"`
	PlatformMetadata map[string]string `json:"platform_metadata,omitempty"`
}

// DefaultUserSelected computes the spec.md §4.6 default selection for a
// change before the caller has had a chance to review it.
func DefaultUserSelected(kind ChangeKind, direction ChangeDirection, isPersonal, needsConfirmation bool) bool {
	if needsConfirmation {
		return false
	}
	if kind == KindRemove && direction == DirectionLibraryToPlatform && !isPersonal {
		return false
	}
	return true
}
