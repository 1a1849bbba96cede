package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextPiece is one translatable segment plus the exact whitespace that followed it
// in the source text, so pieces can be reassembled without artifacts.
type TextPiece struct {
	Text string
	Sep  string
}

type span struct{ start, end int }

// SplitText splits text into pieces of at most limit characters, preferring sentence
// boundaries, then word boundaries, and cutting inside a word only when one word is
// longer than limit. Leading and trailing whitespace of text is dropped.
func SplitText(text string, limit int) []TextPiece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []TextPiece{{Text: text}}
	}

	var atoms []span
	for _, s := range sentenceSpans(text) {
		if utf8.RuneCountInString(text[s.start:s.end]) <= limit {
			atoms = append(atoms, s)
			continue
		}
		atoms = append(atoms, wordSpans(text, s, limit)...)
	}

	var groups []span
	cur := span{start: -1}
	for _, a := range atoms {
		if cur.start < 0 {
			cur = a
			continue
		}
		if utf8.RuneCountInString(text[cur.start:a.end]) > limit {
			groups = append(groups, cur)
			cur = a
			continue
		}
		cur.end = a.end
	}
	if cur.start >= 0 {
		groups = append(groups, cur)
	}

	pieces := make([]TextPiece, len(groups))
	for i, g := range groups {
		pieces[i].Text = text[g.start:g.end]
		if i+1 < len(groups) {
			pieces[i].Sep = text[g.end:groups[i+1].start]
		}
	}
	return pieces
}

// JoinPieces reassembles translated texts using the separators of the source pieces.
func JoinPieces(pieces []TextPiece, translated []string) string {
	var b strings.Builder
	for i, p := range pieces {
		b.WriteString(translated[i])
		b.WriteString(p.Sep)
	}
	return b.String()
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

// sentenceSpans returns sentence spans without surrounding whitespace. A sentence ends
// at terminal punctuation followed by whitespace, or at a line break.
func sentenceSpans(text string) []span {
	var spans []span
	start := 0
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		next, size := utf8.DecodeRuneInString(text[i+w:])
		end := -1
		switch {
		case r == '\n':
			end = i
		case isTerminator(r) && (size == 0 || unicode.IsSpace(next)):
			end = i + w
		}
		i += w
		if end < 0 {
			continue
		}
		if s := trimSpan(text, span{start, end}); s.end > s.start {
			spans = append(spans, s)
		}
		start = end
	}
	if s := trimSpan(text, span{start, len(text)}); s.end > s.start {
		spans = append(spans, s)
	}
	return spans
}

// wordSpans splits an overlong sentence into words, cutting words longer than limit.
func wordSpans(text string, s span, limit int) []span {
	var out []span
	i := s.start
	for i < s.end {
		for i < s.end {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		if i >= s.end {
			break
		}
		j := i
		n := 0
		for j < s.end {
			r, size := utf8.DecodeRuneInString(text[j:])
			if unicode.IsSpace(r) {
				break
			}
			if n == limit {
				break
			}
			j += size
			n++
		}
		out = append(out, span{i, j})
		i = j
	}
	return out
}

func trimSpan(text string, s span) span {
	for s.start < s.end {
		r, size := utf8.DecodeRuneInString(text[s.start:])
		if !unicode.IsSpace(r) {
			break
		}
		s.start += size
	}
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}
