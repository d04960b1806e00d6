package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mtl-tools/mtlint/internal/chunker"
	"github.com/mtl-tools/mtlint/internal/entity"
	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/roster"
	"github.com/mtl-tools/mtlint/internal/segment"
)

// DefaultTimeout bounds one service attempt.
const DefaultTimeout = 45 * time.Second

// KindObfuscated is the issue kind for candidates the service confirmed
// as altered real-world references.
const KindObfuscated = "entity/obfuscated-reference"

// Options configure a Classifier. Zero values take the defaults; a nil
// Limiter means unlimited.
type Options struct {
	Timeout time.Duration
	Retry   RetryPolicy
	Limiter *rate.Limiter
	Chunk   chunker.Options
}

// Classifier coordinates the cache, rate limit, retry budget, and pattern
// fallback around a Client. One Classifier serves a whole run; the cache
// carries resolved terms across chapters.
type Classifier struct {
	client  Client
	roster  *roster.Roster
	cache   *entity.Cache
	retry   RetryPolicy
	limiter *rate.Limiter
	timeout time.Duration
	chunk   chunker.Options
	fb      *segment.Segmenter
	vet     bool
}

// New creates a Classifier. A nil roster or cache is replaced with an
// empty one.
func New(client Client, ros *roster.Roster, cache *entity.Cache, opts Options) *Classifier {
	if ros == nil {
		ros = roster.Empty()
	}
	if cache == nil {
		cache = entity.NewCache()
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		client:  client,
		roster:  ros,
		cache:   cache,
		retry:   retry,
		limiter: opts.Limiter,
		timeout: timeout,
		chunk:   opts.Chunk,
		fb:      segment.New(ros.Names(), ros.Narrator()),
		vet:     len(ros.Names()) > 0,
	}
}

// Cache exposes the classifier's entity cache.
func (c *Classifier) Cache() *entity.Cache { return c.cache }

// SegmentResult is a chapter tiling plus how it was obtained.
type SegmentResult struct {
	Segments  []lint.Segment
	Chunks    int
	Calls     int
	Fallbacks int
}

// SegmentChapter tiles chapter text into attributed dialogue and
// narration segments. Chunks the service cannot segment fall back to the
// pattern segmenter with low-confidence attributions; only context
// cancellation aborts the chapter.
func (c *Classifier) SegmentChapter(ctx context.Context, text string) (*SegmentResult, error) {
	res := &SegmentResult{}
	if text == "" {
		return res, nil
	}

	chunks := chunker.Split(text, c.chunk)
	res.Chunks = len(chunks)
	narrator := c.roster.Narrator()

	var segs []lint.Segment
	for _, ch := range chunks {
		req := Request{Text: ch.Text, Context: ch.Trailing, Segments: true}
		r, calls, err := c.call(ctx, req)
		res.Calls += calls
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			segs = append(segs, segment.Shift(c.fb.Fallback(ch.Text), ch.Start)...)
			res.Fallbacks++
			continue
		}
		segs = append(segs, segment.Shift(c.vetSpeakers(r.Segments, narrator), ch.Start)...)
	}

	merged := segment.Merge(segs)
	if err := segment.Verify(merged, len(text)); err != nil {
		return nil, fmt.Errorf("chapter tiling: %w", err)
	}
	res.Segments = merged
	return res, nil
}

// vetSpeakers canonicalizes speakers against the roster. Narration always
// belongs to the narrator; dialogue attributed to a name outside the
// roster is downgraded to an unknown speaker needing review. Without a
// roster there is nothing to vet against, so model names stand.
func (c *Classifier) vetSpeakers(segs []lint.Segment, narrator string) []lint.Segment {
	out := make([]lint.Segment, len(segs))
	for i, s := range segs {
		if s.Type == lint.SegmentNarration {
			s.Speaker = narrator
			out[i] = s
			continue
		}
		switch {
		case s.Speaker == "" || strings.EqualFold(s.Speaker, lint.SpeakerUnknown):
			s.Speaker = lint.SpeakerUnknown
			s.Confidence = lint.ConfidenceLow
			s.NeedsReview = true
		case !c.vet:
			// keep the model's attribution
		default:
			if canonical, ok := c.roster.Match(s.Speaker); ok {
				s.Speaker = canonical
			} else if strings.EqualFold(s.Speaker, narrator) {
				s.Speaker = narrator
			} else {
				s.Speaker = lint.SpeakerUnknown
				s.Confidence = lint.ConfidenceLow
				s.NeedsReview = true
			}
		}
		out[i] = s
	}
	return out
}

// ResolveResult carries entity rulings and the rewritten candidate
// issues for one chapter.
type ResolveResult struct {
	Entities  []lint.EntityReference
	Issues    []lint.Issue
	Calls     int
	CacheHits int
	Degraded  bool
}

// Resolve rules on entity candidate issues. Cached terms never reach the
// service; terms the service cannot rule on, or that fail after retries,
// stay unresolved and their candidate issues stand for review.
func (c *Classifier) Resolve(ctx context.Context, text string, candidates []lint.Issue) (*ResolveResult, error) {
	res := &ResolveResult{Issues: candidates}
	if len(candidates) == 0 {
		return res, nil
	}

	// One ruling per distinct normalized term; bucket by first occurrence.
	type occurrence struct {
		term  string
		start int
	}
	var order []string
	occ := make(map[string]occurrence)
	for _, iss := range candidates {
		key := entity.Normalize(iss.Original)
		if key == "" {
			continue
		}
		if _, ok := occ[key]; !ok {
			occ[key] = occurrence{term: iss.Original, start: iss.Span.Start}
			order = append(order, key)
		}
	}

	refs := make(map[string]lint.EntityReference, len(order))
	var misses []string
	for _, key := range order {
		if ref, ok := c.cache.Lookup(occ[key].term); ok {
			refs[key] = ref
			res.CacheHits++
			continue
		}
		misses = append(misses, key)
	}

	if len(misses) > 0 {
		chunks := chunker.Split(text, c.chunk)
		byChunk := make(map[int][]string, len(chunks))
		for _, key := range misses {
			ci := chunkFor(chunks, occ[key].start)
			byChunk[ci] = append(byChunk[ci], key)
		}

		for _, ch := range chunks {
			keys := byChunk[ch.Index]
			if len(keys) == 0 {
				continue
			}
			terms := make([]string, len(keys))
			for i, k := range keys {
				terms[i] = occ[k].term
			}

			req := Request{Text: ch.Text, Context: ch.Trailing, Terms: terms}
			r, calls, err := c.call(ctx, req)
			res.Calls += calls
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Unreached terms are not cached so a later chapter
				// can retry them.
				res.Degraded = true
				for _, k := range keys {
					refs[k] = lint.EntityReference{Term: occ[k].term, Verification: lint.VerifiedNone}
				}
				continue
			}

			ruled := make(map[string]Resolution, len(r.Resolutions))
			for _, rr := range r.Resolutions {
				ruled[entity.Normalize(rr.Term)] = rr
			}
			for _, k := range keys {
				rr, ok := ruled[k]
				if !ok {
					rr = Resolution{Term: occ[k].term, Verdict: VerdictUnknown}
				}
				ref := resolutionRef(occ[k].term, rr)
				refs[k] = ref
				c.cache.Store(occ[k].term, ref)
			}
		}
	}

	for _, key := range order {
		res.Entities = append(res.Entities, refs[key])
	}
	res.Issues = applyRulings(candidates, refs)
	return res, nil
}

// resolutionRef converts a service ruling to an entity reference. A
// legitimate term resolves to itself; an unknown verdict leaves the
// canonical form empty.
func resolutionRef(term string, r Resolution) lint.EntityReference {
	ref := lint.EntityReference{
		Term:         term,
		Confidence:   r.Confidence,
		Type:         r.Type,
		Verification: lint.VerifiedExternal,
	}
	switch r.Verdict {
	case VerdictObfuscated:
		ref.Canonical = r.Canonical
		ref.Obfuscated = true
	case VerdictLegitimate:
		ref.Canonical = r.Canonical
		if ref.Canonical == "" {
			ref.Canonical = term
		}
	}
	return ref
}

// applyRulings rewrites candidates per the rulings: confirmed obfuscated
// terms become correctable issues, legitimate terms drop, unresolved
// terms stand as they were detected.
func applyRulings(candidates []lint.Issue, refs map[string]lint.EntityReference) []lint.Issue {
	out := make([]lint.Issue, 0, len(candidates))
	for _, iss := range candidates {
		ref, ok := refs[entity.Normalize(iss.Original)]
		switch {
		case !ok:
			out = append(out, iss)
		case ref.Obfuscated:
			iss.Kind = KindObfuscated
			iss.Severity = lint.SeverityMedium
			iss.Confidence = ref.Confidence
			iss.Suggested = ref.Canonical
			iss.Source = lint.SourceClassifier
			iss.Reasoning = fmt.Sprintf("%q obscures the real %s %q", iss.Original, ref.Type, ref.Canonical)
			out = append(out, iss)
		case ref.Canonical != "":
			// legitimate, nothing to report
		default:
			out = append(out, iss)
		}
	}
	return out
}

// chunkFor finds the chunk whose span contains byte offset pos.
func chunkFor(chunks []chunker.Chunk, pos int) int {
	i := sort.Search(len(chunks), func(i int) bool { return chunks[i].End > pos })
	if i == len(chunks) {
		return len(chunks) - 1
	}
	return i
}

// call runs one Request through the rate limit, retry budget, and
// per-attempt timeout. The returned count is service attempts made.
func (c *Classifier) call(ctx context.Context, req Request) (*Result, int, error) {
	if c.client == nil {
		return nil, 0, ErrServiceUnavailable
	}

	prompt := buildPrompt(req, c.roster)
	var res *Result
	calls := 0
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		calls++
		raw, err := c.client.Complete(attemptCtx, prompt)
		if err != nil {
			// An attempt that outlives its own deadline counts as the
			// service being unavailable, as long as the run itself is
			// still live.
			if attemptCtx.Err() != nil && ctx.Err() == nil {
				return fmt.Errorf("%w: attempt timed out after %s", ErrServiceUnavailable, c.timeout)
			}
			return err
		}

		parsed, err := parseReply(raw, req)
		if err != nil {
			return err
		}
		res = parsed
		return nil
	})
	if err != nil {
		return nil, calls, err
	}
	return res, calls, nil
}
