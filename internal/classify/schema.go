package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtl-tools/mtlint/internal/entity"
	"github.com/mtl-tools/mtlint/internal/lint"
)

// Wire format of the service reply. Segment texts are consecutive pieces
// of the passage rather than byte offsets; models copy text reliably but
// cannot be trusted with offset arithmetic.
type wireReply struct {
	Segments []wireSegment    `json:"segments"`
	Entities []wireResolution `json:"entities"`
}

type wireSegment struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker"`
	Confidence string `json:"confidence"`
	Text       string `json:"text"`
}

type wireResolution struct {
	Term       string  `json:"term"`
	Verdict    string  `json:"verdict"`
	Canonical  string  `json:"canonical"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// parseReply validates a raw reply against the request. Any schema
// violation returns ErrMalformedResponse so the caller can retry and
// eventually fall back; a reply is never partially trusted.
func parseReply(raw string, req Request) (*Result, error) {
	var reply wireReply
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v (reply: %s)", ErrMalformedResponse, err, snippet(raw))
	}

	res := &Result{}
	if req.Segments {
		segs, err := convertSegments(reply.Segments, req.Text)
		if err != nil {
			return nil, err
		}
		res.Segments = segs
	}
	if len(req.Terms) > 0 {
		rs, err := convertResolutions(reply.Entities, req.Terms)
		if err != nil {
			return nil, err
		}
		res.Resolutions = rs
	}
	return res, nil
}

// convertSegments checks that the segment texts reproduce the passage in
// order and converts them to spans. Tiling holds by construction: each
// segment must continue exactly where the previous one ended.
func convertSegments(ws []wireSegment, text string) ([]lint.Segment, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: no segments for a non-empty passage", ErrMalformedResponse)
	}
	segs := make([]lint.Segment, 0, len(ws))
	off := 0
	for i, w := range ws {
		var st lint.SegmentType
		switch w.Type {
		case string(lint.SegmentDialogue):
			st = lint.SegmentDialogue
		case string(lint.SegmentNarration):
			st = lint.SegmentNarration
		default:
			return nil, fmt.Errorf("%w: segment %d has type %q", ErrMalformedResponse, i, w.Type)
		}
		conf, ok := lint.ParseSegmentConfidence(w.Confidence)
		if !ok {
			return nil, fmt.Errorf("%w: segment %d has confidence %q", ErrMalformedResponse, i, w.Confidence)
		}
		if w.Text == "" {
			return nil, fmt.Errorf("%w: segment %d is empty", ErrMalformedResponse, i)
		}
		if !strings.HasPrefix(text[off:], w.Text) {
			return nil, fmt.Errorf("%w: segment %d does not continue the passage at byte %d", ErrMalformedResponse, i, off)
		}
		end := off + len(w.Text)
		segs = append(segs, lint.Segment{
			Text:       w.Text,
			Type:       st,
			Speaker:    strings.TrimSpace(w.Speaker),
			Confidence: conf,
			Span:       lint.Span{Start: off, End: end},
		})
		off = end
	}
	if off != len(text) {
		return nil, fmt.Errorf("%w: segments cover %d of %d passage bytes", ErrMalformedResponse, off, len(text))
	}
	return segs, nil
}

// convertResolutions checks each ruling against the requested terms.
// Terms the service skipped are not an error; the caller treats them as
// unknown. A ruling for a term that was never asked about is.
func convertResolutions(ws []wireResolution, terms []string) ([]Resolution, error) {
	asked := make(map[string]bool, len(terms))
	for _, t := range terms {
		asked[entity.Normalize(t)] = true
	}

	out := make([]Resolution, 0, len(ws))
	seen := make(map[string]int, len(ws))
	for i, w := range ws {
		key := entity.Normalize(w.Term)
		if !asked[key] {
			return nil, fmt.Errorf("%w: ruling %d names unrequested term %q", ErrMalformedResponse, i, w.Term)
		}
		if w.Confidence < 0 || w.Confidence > 1 {
			return nil, fmt.Errorf("%w: ruling %d has confidence %v", ErrMalformedResponse, i, w.Confidence)
		}
		r := Resolution{
			Term:       w.Term,
			Canonical:  strings.TrimSpace(w.Canonical),
			Confidence: w.Confidence,
		}
		switch Verdict(w.Verdict) {
		case VerdictObfuscated:
			r.Verdict = VerdictObfuscated
			if r.Canonical == "" {
				return nil, fmt.Errorf("%w: obfuscated term %q has no canonical form", ErrMalformedResponse, w.Term)
			}
		case VerdictLegitimate:
			r.Verdict = VerdictLegitimate
		case VerdictUnknown:
			r.Verdict = VerdictUnknown
		default:
			return nil, fmt.Errorf("%w: ruling %d has verdict %q", ErrMalformedResponse, i, w.Verdict)
		}
		et, err := parseEntityType(w.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: ruling %d: %v", ErrMalformedResponse, i, err)
		}
		r.Type = et

		// Duplicate rulings for one term: the later one wins.
		if j, dup := seen[key]; dup {
			out[j] = r
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out, nil
}

func parseEntityType(s string) (lint.EntityType, error) {
	switch s {
	case "":
		return lint.EntityOther, nil
	case string(lint.EntityAuthor):
		return lint.EntityAuthor, nil
	case string(lint.EntityPerson):
		return lint.EntityPerson, nil
	case string(lint.EntityBrand):
		return lint.EntityBrand, nil
	case string(lint.EntityTitle):
		return lint.EntityTitle, nil
	case string(lint.EntityOther):
		return lint.EntityOther, nil
	}
	return lint.EntityOther, fmt.Errorf("unknown entity type %q", s)
}

// ExtractJSON pulls a JSON object out of a reply that may be wrapped in
// markdown fences or prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") {
		return s
	}

	if idx := strings.Index(s, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}

	if idx := strings.Index(s, "```"); idx != -1 {
		start := idx + 3
		// Skip any language identifier
		if nlIdx := strings.Index(s[start:], "\n"); nlIdx != -1 {
			start += nlIdx + 1
		}
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}

	return s
}

// snippet truncates a reply for inclusion in error messages.
func snippet(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
