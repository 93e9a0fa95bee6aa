package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order; the empty separator splits runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter breaks text into chunks of at most Size runes that overlap by
// up to Overlap runes. It splits on the coarsest separator present and
// recurses with finer ones into pieces that are still too long.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a Splitter using DefaultSeparators. Non-positive
// sizes fall back to 1000 and overlaps at or above size to a fifth of it.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in order. Blank text yields no chunks.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var finer []string
	for i, c := range separators {
		if c == "" {
			break
		}
		if strings.Contains(text, c) {
			sep, finer = c, separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks, pending []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < s.Size {
			pending = append(pending, p)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		if len(finer) == 0 {
			chunks = append(chunks, strings.TrimSpace(p))
		} else {
			chunks = append(chunks, s.split(p, finer)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge joins small pieces into chunks up to Size, carrying the trailing
// Overlap runes of each chunk into the next.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		chunks  []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := runeLen(p)
		if len(current) > 0 && total+n+joinLen() > s.Size {
			if c := strings.TrimSpace(strings.Join(current, sep)); c != "" {
				chunks = append(chunks, c)
			}
			for len(current) > 0 && (total > s.Overlap || total+n+joinLen() > s.Size) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total += n + joinLen()
		current = append(current, p)
	}
	if c := strings.TrimSpace(strings.Join(current, sep)); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
