// Package chunker splits markdown text into bounded, heading-aware pieces
// for embedding and ingestion.
package chunker

import "strings"

// charsPerToken is the sizing heuristic: roughly 4 characters per token.
const charsPerToken = 4

// Chunk is one bounded piece of a larger document.
type Chunk struct {
	Content           string `json:"content"`
	Heading           string `json:"heading,omitempty"`
	Index             int    `json:"index"`
	ApproximateTokens int    `json:"approximate_tokens"`
}

type section struct {
	heading string // raw heading line, empty for the preamble
	body    string
}

// Split chunks text on heading levels 1-3; level 4+ headings stay attached
// to their enclosing section. A section within maxTokens*4 characters
// becomes one chunk; larger sections split on paragraph then line
// boundaries. Every chunk from a headed section carries the heading as a
// prefix. Whitespace-only chunks are dropped and indices renumbered 0..N.
func Split(text string, maxTokens int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}

	maxChars := maxTokens * charsPerToken

	var chunks []Chunk
	for _, sec := range splitSections(text) {
		chunks = append(chunks, splitSection(sec, maxChars)...)
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		c.Index = len(out)
		c.ApproximateTokens = len(c.Content) / charsPerToken
		out = append(out, c)
	}
	return out
}

// SplitWithOverlap behaves like Split but prepends the tail of the previous
// chunk's original content to each subsequent chunk, snapped forward to a
// whitespace boundary so no chunk begins mid-word.
func SplitWithOverlap(text string, maxTokens, overlapTokens int) []Chunk {
	chunks := Split(text, maxTokens)
	if overlapTokens <= 0 || len(chunks) < 2 {
		return chunks
	}

	overlapChars := overlapTokens * charsPerToken
	originals := make([]string, len(chunks))
	for i := range chunks {
		originals[i] = chunks[i].Content
	}

	for i := 1; i < len(chunks); i++ {
		tail := overlapTail(originals[i-1], overlapChars)
		if tail == "" {
			continue
		}
		chunks[i].Content = tail + "\n" + chunks[i].Content
		chunks[i].ApproximateTokens = len(chunks[i].Content) / charsPerToken
	}
	return chunks
}

func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	current := section{}
	var body strings.Builder
	flush := func() {
		current.body = body.String()
		sections = append(sections, current)
		body.Reset()
	}

	for _, line := range lines {
		if level := headingLevel(line); level >= 1 && level <= 3 {
			flush()
			current = section{heading: line}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

// headingLevel returns the markdown heading level of line, or 0 when the
// line is not a heading.
func headingLevel(line string) int {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != ' ' {
		return 0
	}
	return i
}

func splitSection(sec section, maxChars int) []Chunk {
	body := strings.TrimSpace(sec.body)
	if body == "" {
		if sec.heading == "" {
			return nil
		}
		return []Chunk{{Content: sec.heading, Heading: headingText(sec.heading)}}
	}

	if len(body) <= maxChars {
		return []Chunk{compose(sec.heading, body)}
	}

	var chunks []Chunk
	var buf strings.Builder
	flush := func() {
		if strings.TrimSpace(buf.String()) != "" {
			chunks = append(chunks, compose(sec.heading, buf.String()))
		}
		buf.Reset()
	}

	for _, para := range splitParagraphs(body) {
		if len(para) > maxChars {
			flush()
			chunks = append(chunks, splitLongParagraph(sec.heading, para, maxChars)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(para)+2 > maxChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return chunks
}

// splitLongParagraph falls back to line boundaries. A single line beyond the
// budget is emitted as its own oversized chunk rather than looping.
func splitLongParagraph(heading, para string, maxChars int) []Chunk {
	var chunks []Chunk
	var buf strings.Builder
	flush := func() {
		if strings.TrimSpace(buf.String()) != "" {
			chunks = append(chunks, compose(heading, buf.String()))
		}
		buf.Reset()
	}

	for _, line := range strings.Split(para, "\n") {
		if len(line) > maxChars {
			flush()
			chunks = append(chunks, compose(heading, line))
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(line)+1 > maxChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	var buf []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(buf) > 0 {
				paragraphs = append(paragraphs, strings.Join(buf, "\n"))
				buf = nil
			}
			continue
		}
		buf = append(buf, line)
	}
	if len(buf) > 0 {
		paragraphs = append(paragraphs, strings.Join(buf, "\n"))
	}
	return paragraphs
}

func compose(rawHeading, body string) Chunk {
	body = strings.TrimSpace(body)
	content := body
	if rawHeading != "" {
		content = rawHeading + "\n\n" + body
	}
	return Chunk{Content: content, Heading: headingText(rawHeading)}
}

func headingText(rawHeading string) string {
	return strings.TrimSpace(strings.TrimLeft(rawHeading, "#"))
}

// overlapTail returns roughly the last n characters of text, advanced past
// the next whitespace when the cut would land inside a word. Returns empty
// when the tail holds no whitespace boundary at all.
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(text) {
		return text
	}

	start := len(text) - n
	if !strings.ContainsRune(" \t\n", rune(text[start-1])) {
		offset := strings.IndexAny(text[start:], " \t\n")
		if offset < 0 {
			return ""
		}
		start += offset + 1
	}
	return strings.TrimLeft(text[start:], " \t\n")
}
