package citation

import (
	"regexp"
	"strings"
)

// Citation is one clause reference found in an answer. Start and End are byte
// offsets of RawText inside the answer.
type Citation struct {
	RawText      string `json:"raw_text"`
	ClauseNumber string `json:"clause_number"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
}

// Keyword followed by a dotted numeric identifier, optionally wrapped in
// parentheses: "Clause 10", "clause 10.5", "(Clause 2.1.3)".
var clausePattern = regexp.MustCompile(`(?i)\(?\bclause\s+(\d+(?:\.\d+)*)\b\)?`)

// Extract returns every clause reference in answerText, left to right.
// The same clause cited twice yields two citations.
func Extract(answerText string) []Citation {
	matches := clausePattern.FindAllStringSubmatchIndex(answerText, -1)
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		raw := answerText[start:end]
		// A lone "(" or ")" on one side is ordinary punctuation, not part of
		// the citation.
		if strings.HasPrefix(raw, "(") != strings.HasSuffix(raw, ")") {
			if strings.HasPrefix(raw, "(") {
				start++
			} else {
				end--
			}
			raw = answerText[start:end]
		}
		citations = append(citations, Citation{
			RawText:      raw,
			ClauseNumber: answerText[m[2]:m[3]],
			Start:        start,
			End:          end,
		})
	}
	return citations
}

// Segment is a slice of answer text that is either plain or a citation.
type Segment struct {
	Text     string    `json:"text"`
	Citation *Citation `json:"citation,omitempty"`
	Ordinal  int       `json:"ordinal"` // Index into the citation list, -1 for plain text
}

// Segments splits answerText so a UI can render citations as links while the
// surrounding text stays byte-for-byte untouched.
func Segments(answerText string) []Segment {
	citations := Extract(answerText)
	segments := make([]Segment, 0, len(citations)*2+1)
	cursor := 0
	for i := range citations {
		c := citations[i]
		if c.Start > cursor {
			segments = append(segments, Segment{Text: answerText[cursor:c.Start], Ordinal: -1})
		}
		segments = append(segments, Segment{Text: c.RawText, Citation: &c, Ordinal: i})
		cursor = c.End
	}
	if cursor < len(answerText) {
		segments = append(segments, Segment{Text: answerText[cursor:], Ordinal: -1})
	}
	return segments
}

// Label is the text searched for inside the document for a clause.
func Label(clauseNumber string) string {
	return "Clause " + clauseNumber
}
