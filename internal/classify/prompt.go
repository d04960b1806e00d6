package classify

import (
	"fmt"
	"strings"

	"github.com/mtl-tools/mtlint/internal/roster"
)

const segmentShape = `  "segments": [
    {"type": "dialogue|narration", "speaker": "character name or unknown", "confidence": "high|medium|low", "text": "exact text copied from the passage"}
  ]`

const entityShape = `  "entities": [
    {"term": "term exactly as listed", "verdict": "obfuscated|legitimate|unknown", "canonical": "the real reference when obfuscated", "type": "author|person|brand|title|other", "confidence": 0.95}
  ]`

// buildPrompt renders one Request. The reply contract mirrors parseReply:
// segment texts must be consecutive pieces of the passage, and rulings
// may only name the listed terms.
func buildPrompt(req Request, ros *roster.Roster) string {
	var b strings.Builder

	b.WriteString("You are reviewing one passage of a machine-translated novel.\n\n")

	if req.Context != "" {
		fmt.Fprintf(&b, "Preceding context (reference only, not part of the passage):\n...%s\n\n", req.Context)
	}

	fmt.Fprintf(&b, "Passage:\n<<<\n%s\n>>>\n\n", req.Text)

	if ros != nil && len(ros.Characters) > 0 {
		b.WriteString("Known characters:\n")
		for _, ch := range ros.Characters {
			b.WriteString("- " + ch.Name)
			if len(ch.Aliases) > 0 {
				b.WriteString(" (also: " + strings.Join(ch.Aliases, ", ") + ")")
			}
			if ch.Narrator {
				b.WriteString(" [narrator]")
			}
			if ch.Description != "" {
				b.WriteString(" - " + ch.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Tasks:\n")
	n := 1
	if req.Segments {
		fmt.Fprintf(&b, `%d. Tile the passage into dialogue and narration segments, in order.
   Copy each segment's text EXACTLY from the passage, including quotes,
   punctuation, and whitespace; the segment texts joined in order must
   reproduce the passage byte for byte. Attribute each dialogue segment
   to a known character (use "unknown" if unclear) and each narration
   segment to the narrator. Grade each attribution high, medium, or low.
`, n)
		n++
	}
	if len(req.Terms) > 0 {
		fmt.Fprintf(&b, `%d. Rule on each term below: is it an obfuscated rendering of a real-world
   reference (author, person, brand, or title), a legitimate term, or
   unknown? For obfuscated terms give the canonical real form.
`, n)
		for _, t := range req.Terms {
			fmt.Fprintf(&b, "   - %q\n", t)
		}
	}

	var shapes []string
	if req.Segments {
		shapes = append(shapes, segmentShape)
	}
	if len(req.Terms) > 0 {
		shapes = append(shapes, entityShape)
	}
	fmt.Fprintf(&b, "\nProvide a JSON response with the following structure:\n{\n%s\n}\n\nReturn ONLY the JSON, no other text.\n", strings.Join(shapes, ",\n"))

	return b.String()
}
