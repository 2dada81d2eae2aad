package chunker

import (
	"strings"
	"unicode/utf8"
)

// SplitLines cuts lines into overlapping chunks bounded by w.MaxChars.
//
// Lines accumulate into a buffer, each counted with one trailing newline.
// Before a line is added, a non-empty buffer that would overflow is closed
// as a chunk, and its shortest suffix reaching w.OverlapChars seeds the next
// buffer. The budget is a stop-before-adding check: a single line longer
// than MaxChars is kept whole.
func SplitLines(lines []string, w Window, meta Meta) []Chunk {
	var (
		chunks []Chunk
		buf    []string
		chars  int
		start  int // 0-based index into lines of buf[0]
	)

	for i, line := range lines {
		n := lineChars(line)
		if chars+n > w.MaxChars && len(buf) > 0 {
			chunks = append(chunks, meta.chunk(
				strings.Join(buf, "\n"),
				meta.StartIndex+len(chunks),
				meta.BaseLine+start+1,
				meta.BaseLine+i,
			))

			buf = overlapSeed(buf, w.OverlapChars)
			chars = countChars(buf)
			for len(buf) > 0 && chars+n > w.MaxChars {
				chars -= lineChars(buf[0])
				buf = buf[1:]
			}
			buf = append([]string(nil), buf...)
			start = i - len(buf)
		}
		buf = append(buf, line)
		chars += n
	}

	if len(buf) > 0 {
		content := strings.Join(buf, "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, meta.chunk(
				content,
				meta.StartIndex+len(chunks),
				meta.BaseLine+start+1,
				meta.BaseLine+len(lines),
			))
		}
	}
	return chunks
}

// overlapSeed returns the shortest suffix of buf whose counted length reaches
// overlap. If the whole buffer never reaches it, there is no seed.
func overlapSeed(buf []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}
	acc := 0
	for j := len(buf) - 1; j >= 0; j-- {
		acc += lineChars(buf[j])
		if acc >= overlap {
			return buf[j:]
		}
	}
	return nil
}

func lineChars(line string) int {
	return utf8.RuneCountInString(line) + 1
}

func countChars(lines []string) int {
	total := 0
	for _, l := range lines {
		total += lineChars(l)
	}
	return total
}
