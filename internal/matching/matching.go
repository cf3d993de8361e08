// Package matching implements the Identity & Matching component (L1):
// scoring how likely a platform track candidate is to be the same song
// as a library track, per spec.md §4.1.
package matching

import (
	"math"
	"sort"
)

// Weights are the spec.md §4.1 step 3 contributions to confidence.
const (
	WeightTitle    = 0.45
	WeightArtist   = 0.30
	WeightAlbum    = 0.15
	WeightDuration = 0.10

	// DurationToleranceMS is the window within which duration agreement
	// contributes its full weight.
	DurationToleranceMS = 3000
)

// Candidate is a platform track being considered as a match for a
// library Track.
type Candidate struct {
	ExternalID string
	Title      string
	Artist     string
	Album      string
	DurationMS int

	// Strong identifiers: when present and equal to the library side's
	// equivalent, they short-circuit to confidence 1.0 (spec.md §4.1
	// step 2).
	ISRC             string
	DiscogsReleaseID string
	DiscogsPosition  string
	FileHash         string
}

// Query is the library-side Track being matched against candidates,
// reduced to the fields matching needs.
type Query struct {
	Title      string
	Artist     string
	Album      string
	DurationMS int

	ISRC             string
	DiscogsReleaseID string
	DiscogsPosition  string
	FileHash         string
}

// Decision is the result of Score for one candidate.
type Decision struct {
	Confidence  float64
	IsMatch     bool // confidence >= auto threshold: auto-link
	IsCandidate bool // in [candidate threshold, auto threshold): needs confirmation
}

// Thresholds holds the two configurable cutoffs from spec.md §6.
type Thresholds struct {
	Auto      float64 // default 0.82
	Candidate float64 // default 0.60
}

// DefaultThresholds returns spec.md's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Auto: 0.82, Candidate: 0.60}
}

// Score computes the match confidence and decision for one (query,
// candidate) pair, per spec.md §4.1.
//
// Failure mode (step "Failure modes"): an empty title or artist on
// either side always returns confidence 0, regardless of any strong
// identifier — an empty required field means the input is malformed,
// and a strong identifier cannot rescue malformed input.
func Score(q Query, c Candidate, th Thresholds) Decision {
	if q.Title == "" || q.Artist == "" || c.Title == "" || c.Artist == "" {
		return Decision{Confidence: 0}
	}

	if strongIdentifierMatch(q, c) {
		return Decision{Confidence: 1.0, IsMatch: true}
	}

	confidence := weightedSimilarity(q, c)
	d := Decision{Confidence: confidence}
	d.IsMatch = confidence >= th.Auto
	d.IsCandidate = !d.IsMatch && confidence >= th.Candidate
	return d
}

func strongIdentifierMatch(q Query, c Candidate) bool {
	if q.ISRC != "" && c.ISRC != "" && q.ISRC == c.ISRC {
		return true
	}
	if q.DiscogsReleaseID != "" && c.DiscogsReleaseID != "" &&
		q.DiscogsReleaseID == c.DiscogsReleaseID && q.DiscogsPosition == c.DiscogsPosition {
		return true
	}
	if q.FileHash != "" && c.FileHash != "" && q.FileHash == c.FileHash {
		return true
	}
	return false
}

func weightedSimilarity(q Query, c Candidate) float64 {
	titleScore := tokenSetSimilarity(Normalize(q.Title), Normalize(c.Title))
	artistScore := tokenSetSimilarity(Normalize(q.Artist), Normalize(c.Artist))

	var albumScore float64
	if q.Album != "" && c.Album != "" {
		albumScore = tokenSetSimilarity(Normalize(q.Album), Normalize(c.Album))
	}

	var durationScore float64
	if q.DurationMS > 0 && c.DurationMS > 0 {
		delta := math.Abs(float64(q.DurationMS - c.DurationMS))
		if delta <= DurationToleranceMS {
			durationScore = 1.0
		}
	}

	return titleScore*WeightTitle +
		artistScore*WeightArtist +
		albumScore*WeightAlbum +
		durationScore*WeightDuration
}

// Scored pairs a Candidate with its Decision, for ranking.
type Scored struct {
	Candidate Candidate
	Decision  Decision
}

// Best picks the highest-confidence candidate from a set of scored
// candidates, applying spec.md §4.1 step 5's deterministic tie-breakers:
// prefer one sharing an album, then shortest duration delta, then
// lowest external id lexicographically. Returns false if candidates is
// empty.
func Best(q Query, candidates []Candidate, th Thresholds) (Scored, bool) {
	if len(candidates) == 0 {
		return Scored{}, false
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Candidate: c, Decision: Score(q, c, th)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Decision.Confidence != b.Decision.Confidence {
			return a.Decision.Confidence > b.Decision.Confidence
		}
		aAlbum, bAlbum := sharesAlbum(q, a.Candidate), sharesAlbum(q, b.Candidate)
		if aAlbum != bAlbum {
			return aAlbum
		}
		aDelta, bDelta := durationDelta(q, a.Candidate), durationDelta(q, b.Candidate)
		if aDelta != bDelta {
			return aDelta < bDelta
		}
		return a.Candidate.ExternalID < b.Candidate.ExternalID
	})

	return scored[0], true
}

func sharesAlbum(q Query, c Candidate) bool {
	return q.Album != "" && c.Album != "" && Normalize(q.Album) == Normalize(c.Album)
}

func durationDelta(q Query, c Candidate) int {
	if q.DurationMS == 0 || c.DurationMS == 0 {
		return math.MaxInt32
	}
	d := q.DurationMS - c.DurationMS
	if d < 0 {
		d = -d
	}
	return d
}
