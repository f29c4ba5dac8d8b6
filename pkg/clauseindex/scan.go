package clauseindex

import (
	"bufio"
	"regexp"
	"sort"
	"strings"

	"compliance-navigator-be/pkg/navigation"
)

// A clause heading starts a line: "Clause 19", "CLAUSE 19.1 Gifts".
var headingRegex = regexp.MustCompile(`(?i)^\s*clause\s+(\d+(?:\.\d+)*)\b`)

// ScanPages finds clause headings per page. The first page a heading appears
// on wins.
func ScanPages(pages map[int]string) navigation.Index {
	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	index := make(navigation.Index)
	for _, page := range numbers {
		if page < 1 {
			continue
		}
		scanner := bufio.NewScanner(strings.NewReader(pages[page]))
		for scanner.Scan() {
			m := headingRegex.FindStringSubmatch(scanner.Text())
			if m == nil {
				continue
			}
			if _, seen := index[m[1]]; !seen {
				index[m[1]] = page
			}
		}
	}
	return index
}

// ContentText pulls the literal strings out of a page content stream. Strings
// shown by one text operator line are joined; each line of the stream becomes a
// line of text.
func ContentText(stream []byte) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(string(stream)))
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := literals(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}

// literals concatenates the (...) string literals on one stream line,
// honouring nesting and backslash escapes.
func literals(line string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && depth > 0 && i+1 < len(line):
			i++
			switch line[i] {
			case 'n', 'r':
				b.WriteByte(' ')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(line[i])
			}
		case c == '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case c == ')' && depth > 0:
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
		case depth > 0:
			b.WriteByte(c)
		}
	}
	return b.String()
}
