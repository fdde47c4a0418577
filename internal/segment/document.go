package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single source line when scanning.
const maxLineBytes = 4 * 1024 * 1024

// Document is a line-addressed source text.
type Document struct {
	Path  string
	lines []string
}

// NewDocument wraps in-memory lines.
func NewDocument(lines []string) *Document {
	return &Document{lines: lines}
}

// ParseDocument splits text on newlines. A trailing newline does not add an empty line.
func ParseDocument(text string) *Document {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return &Document{}
	}
	return &Document{lines: strings.Split(text, "\n")}
}

// ReadDocument reads all lines from r.
func ReadDocument(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return &Document{lines: lines}, nil
}

// LoadDocument reads a document from disk.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	doc, err := ReadDocument(f)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// LineCount returns the number of lines in the document.
func (d *Document) LineCount() int { return len(d.lines) }

// Slice returns the raw text of span, clamped to the document bounds.
func (d *Document) Slice(span Span) string {
	start, end := d.clamp(span)
	return strings.Join(d.lines[start:end], "\n")
}

// Numbered returns the text of span with each line prefixed by its absolute line number.
func (d *Document) Numbered(span Span) string {
	start, end := d.clamp(span)
	width := len(strconv.Itoa(max(end-1, 0)))
	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%*d| %s\n", width, i, d.lines[i])
	}
	return b.String()
}

func (d *Document) clamp(span Span) (int, int) {
	start := min(max(span.Start, 0), len(d.lines))
	end := min(max(span.End, start), len(d.lines))
	return start, end
}
