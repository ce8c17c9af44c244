// Package replacement rewrites obfuscated method identifiers in flame graph text.
// A token is recognised by the `:::` separator, a fixed prefix marker and a
// trailing space or `<`; everything else on the line is copied verbatim.
package replacement

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"remapflame/internal/parser"
)

// Separator precedes every remappable token in profiler frame labels.
const Separator = ":::"

// nonSpace matches one character outside the JVM whitespace class
// [ \t\n\v\f\r]. Go's \S would also accept a vertical tab.
const nonSpace = `[^ \t\n\v\f\r]`

// Stats counts what a transform did. Counting never affects output.
// Lines is filled in by text transforms, Functions by profile transforms.
type Stats struct {
	Lines     int
	Functions int
	Matches   int
	Replaced  int
	Unmapped  int
}

// Engine applies a mapping table to lines of text. It holds no mutable
// state, so a single Engine may be reused across runs.
type Engine struct {
	pattern  *regexp.Regexp
	mappings *parser.MappingTable
}

// Pattern compiles the token pattern for marker:
// `:::` then marker plus any non-whitespace run, then a space or `<`.
// The run is greedy, so the delimiter is the last space or `<` before the
// next whitespace character.
func Pattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(Separator) + `(` + regexp.QuoteMeta(marker) + nonSpace + `*)([ <])`)
}

// NewEngine creates an Engine for tokens starting with marker.
func NewEngine(marker string, mappings *parser.MappingTable) *Engine {
	return &Engine{
		pattern:  Pattern(marker),
		mappings: mappings,
	}
}

// RemapLine returns line with every mapped token replaced.
func (e *Engine) RemapLine(line string) string {
	var stats Stats
	return e.remapLine(line, &stats)
}

// remapLine scans matches left to right and copies the unmatched spans
// between them. Tokens absent from the table are copied unchanged.
func (e *Engine) remapLine(line string, stats *Stats) string {
	matches := e.pattern.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line
	}

	var sb strings.Builder
	sb.Grow(len(line))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		token := line[m[2]:m[3]]
		delim := line[m[4]:m[5]]

		stats.Matches++
		sb.WriteString(line[last:start])
		if readable, ok := e.mappings.Lookup(token); ok {
			stats.Replaced++
			sb.WriteString(Separator)
			sb.WriteString(readable)
			sb.WriteString(delim)
		} else {
			stats.Unmapped++
			sb.WriteString(line[start:end])
		}
		last = end
	}
	sb.WriteString(line[last:])

	return sb.String()
}

// StreamError reports a failure on one side of Process. Op is "read" or "write".
type StreamError struct {
	Op   string
	Line int
	Err  error
}

func (e *StreamError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed at line %d: %v", e.Op, e.Line, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Process streams lines from r to w, remapping each one independently.
// A line ends at `\n`, `\r\n` or a lone `\r`, the same terminators a JVM
// line reader recognises. Every output line is terminated by `\n`, so the
// output holds exactly as many lines as the input in the same order, and a
// final unterminated line gains a newline.
//
// Read and write failures are returned as *StreamError so callers can tell
// which side of the stream broke; the stats gathered so far are returned too.
func (e *Engine) Process(r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats
	reader := bufio.NewReaderSize(r, 64*1024)
	writer := bufio.NewWriterSize(w, 64*1024)

	for {
		chunk, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return stats, &StreamError{Op: "read", Line: stats.Lines + 1, Err: err}
		}
		if chunk == "" && err == io.EOF {
			break
		}

		for _, line := range splitLines(chunk) {
			stats.Lines++
			if _, werr := writer.WriteString(e.remapLine(line, &stats)); werr != nil {
				return stats, &StreamError{Op: "write", Line: stats.Lines, Err: werr}
			}
			if werr := writer.WriteByte('\n'); werr != nil {
				return stats, &StreamError{Op: "write", Line: stats.Lines, Err: werr}
			}
		}

		if err == io.EOF {
			break
		}
	}

	if err := writer.Flush(); err != nil {
		return stats, &StreamError{Op: "write", Line: stats.Lines, Err: err}
	}
	return stats, nil
}

// splitLines breaks a chunk read up to and including `\n` (or up to EOF)
// into lines, treating `\r\n` and a lone `\r` as terminators too.
func splitLines(chunk string) []string {
	terminated := strings.HasSuffix(chunk, "\n")
	if terminated {
		chunk = strings.TrimSuffix(chunk, "\n")
		chunk = strings.TrimSuffix(chunk, "\r")
	}

	lines := strings.Split(chunk, "\r")
	if !terminated && len(lines) > 1 && lines[len(lines)-1] == "" {
		// A chunk ending in a lone \r at EOF: the \r closed the last line.
		lines = lines[:len(lines)-1]
	}
	return lines
}
