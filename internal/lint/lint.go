// Package lint defines the shared detected-issue data model: issues,
// segments, entity references, and fix records. Values are immutable once
// created; corrections append FixRecords rather than mutating Issues.
package lint

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity represents how serious a detected issue is
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a severity name to its level. The second return is
// false for unknown names.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToLower(name) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	}
	return SeverityLow, false
}

// Source identifies which detection mode produced an issue
type Source string

const (
	SourcePattern    Source = "pattern"
	SourceClassifier Source = "classifier"
)

// Span is a half-open byte range [Start, End) into chapter text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Issue represents a single detected deviation from a style, grammar, or
// reference rule. Suggested is empty only when no safe correction exists.
type Issue struct {
	ID         string
	Kind       string
	Severity   Severity
	Confidence float64
	File       string
	Line       int
	Span       Span
	Original   string
	Suggested  string
	Source     Source
	Reasoning  string
}

// NewID mints an identifier for an Issue or a run. Identifiers survive the
// process so fix records and the audit store can reference issues later.
func NewID() string {
	return uuid.NewString()
}

// SegmentType distinguishes spoken dialogue from narration
type SegmentType string

const (
	SegmentDialogue  SegmentType = "dialogue"
	SegmentNarration SegmentType = "narration"
)

// SegmentConfidence grades speaker attributions. Ordered: fallback and
// out-of-roster attributions are downgraded to ConfidenceLow.
type SegmentConfidence int

const (
	ConfidenceLow SegmentConfidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c SegmentConfidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseSegmentConfidence maps a confidence name to its level.
func ParseSegmentConfidence(name string) (SegmentConfidence, bool) {
	switch name {
	case "low":
		return ConfidenceLow, true
	case "medium":
		return ConfidenceMedium, true
	case "high":
		return ConfidenceHigh, true
	}
	return ConfidenceLow, false
}

// Speaker names reserved by the segmenter. Narration belongs to the
// narrator; dialogue that cannot be attributed goes to SpeakerUnknown.
const (
	SpeakerNarrator = "Narrator"
	SpeakerUnknown  = "unknown"
)

// Segment is a contiguous span of chapter text classified as dialogue or
// narration with an attributed speaker. Segments for a chapter are ordered
// by position and tile the text without gaps or overlaps.
type Segment struct {
	Text        string
	Type        SegmentType
	Speaker     string
	Confidence  SegmentConfidence
	Span        Span
	NeedsReview bool
}

// EntityType categorizes a resolved real-world reference
type EntityType string

const (
	EntityAuthor EntityType = "author"
	EntityPerson EntityType = "person"
	EntityBrand  EntityType = "brand"
	EntityTitle  EntityType = "title"
	EntityOther  EntityType = "other"
)

// VerificationSource records how an entity resolution was corroborated
type VerificationSource string

const (
	VerifiedExternal  VerificationSource = "external-service"
	VerifiedSecondary VerificationSource = "secondary-lookup"
	VerifiedNone      VerificationSource = "none"
)

// EntityReference is a detected real-world-adjacent term together with its
// resolved canonical form. Obfuscated marks variant renderings of a real
// reference (e.g. an altered author name).
type EntityReference struct {
	Term         string
	Canonical    string
	Confidence   float64
	Type         EntityType
	Obfuscated   bool
	Verification VerificationSource
}

// FixRecord is one entry in the append-only audit trail, emitted per
// applied correction.
type FixRecord struct {
	IssueID    string
	File       string
	Original   string
	Fixed      string
	Confidence float64
	AppliedAt  time.Time
}
