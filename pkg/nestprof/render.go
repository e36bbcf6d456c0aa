package nestprof

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxDepth is the report depth used when callers have no preference.
// It is deep enough to show any realistic tree.
const DefaultMaxDepth = 99

const (
	ruleWidth  = 100
	labelWidth = 49
	callsWidth = 12
	timeWidth  = 18
)

var rule = strings.Repeat("-", ruleWidth) + "\n"

// Renderer formats snapshots as the fixed-width report table.
type Renderer struct {
	// Indent is the number of spaces per nesting level.
	Indent int
	// IndentNumbers indents the time columns along with the label, which is
	// what existing report consumers expect.
	IndentNumbers bool
}

// DefaultRenderer returns the renderer used by a profiler with default config.
func DefaultRenderer() Renderer {
	return Renderer{Indent: 1, IndentNumbers: true}
}

// Render writes the report for s to w. Descent stops below maxDepth levels;
// a negative maxDepth means no limit. Siblings at a shown depth are always
// rendered.
func (r Renderer) Render(w io.Writer, s Snapshot, maxDepth int) error {
	var buf bytes.Buffer
	buf.WriteString(rule)
	fmt.Fprintf(&buf, "%-*s %-*s %-*s %-*s\n",
		labelWidth, "Entry",
		callsWidth, "#calls",
		timeWidth, "CPU time (s)",
		timeWidth, "Wall time (s)")
	buf.WriteString(rule)
	r.renderChain(&buf, s.Roots, 0, maxDepth)
	buf.WriteString(rule)

	_, err := w.Write(buf.Bytes())
	return err
}

// String returns the report for s as text.
func (r Renderer) String(s Snapshot, maxDepth int) string {
	var sb strings.Builder
	r.Render(&sb, s, maxDepth)
	return sb.String()
}

func (r Renderer) renderChain(buf *bytes.Buffer, regions []Region, level, maxDepth int) {
	indent := ""
	if r.Indent > 0 {
		indent = strings.Repeat(" ", r.Indent*level)
	}
	numIndent := ""
	if r.IndentNumbers {
		numIndent = indent
	}

	for _, region := range regions {
		fmt.Fprintf(buf, "%-*s %-*d %-*s %-*s\n",
			labelWidth, indent+region.Label(),
			callsWidth, region.Calls,
			timeWidth, numIndent+seconds(region.CPUTotal.Seconds()),
			timeWidth, numIndent+seconds(region.WallTotal.Seconds()))

		if len(region.Children) > 0 && (maxDepth < 0 || level < maxDepth) {
			r.renderChain(buf, region.Children, level+1, maxDepth)
		}
	}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
