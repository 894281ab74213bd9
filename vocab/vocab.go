// Package vocab matches utterances against the configured summon and dismiss
// vocabularies. Matching is case-insensitive and whitespace tolerant.
package vocab

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/sessionmesh/core"
)

// Summon is the result of a successful summon match.
type Summon struct {
	Mode      core.Mode
	Phrase    string // the matched vocabulary entry (lower-cased)
	Remainder string // trimmed text following the phrase, original casing
}

type phrase struct {
	text string
	mode core.Mode
}

// Vocabulary holds the normalized summon and dismiss lists. It is immutable
// after construction and safe for concurrent use.
type Vocabulary struct {
	summon  []phrase
	dismiss map[string]struct{}
}

// New builds a Vocabulary. Entries are trimmed and case-folded; empty entries
// are dropped.
func New(summonNormal, summonCode, dismiss []string) *Vocabulary {
	v := &Vocabulary{dismiss: make(map[string]struct{}, len(dismiss))}
	add := func(entries []string, mode core.Mode) {
		for _, e := range entries {
			if n := normalize(e); n != "" {
				v.summon = append(v.summon, phrase{text: n, mode: mode})
			}
		}
	}
	add(summonCode, core.ModeCode)
	add(summonNormal, core.ModeNormal)

	// Longest phrase first; on equal length code phrases come first.
	sort.SliceStable(v.summon, func(i, j int) bool {
		return len(v.summon[i].text) > len(v.summon[j].text)
	})

	for _, d := range dismiss {
		if n := normalize(d); n != "" {
			v.dismiss[n] = struct{}{}
		}
	}
	return v
}

// MatchSummon reports whether text starts with a summon phrase. A phrase
// only matches on a word boundary; any run of whitespace in text matches a
// single space in the phrase.
func (v *Vocabulary) MatchSummon(text string) (Summon, bool) {
	trimmed := strings.TrimSpace(text)
	for _, p := range v.summon {
		end, ok := matchPrefix(trimmed, p.text)
		if !ok {
			continue
		}
		rest := trimmed[end:]
		if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		return Summon{
			Mode:      p.mode,
			Phrase:    p.text,
			Remainder: trimLeading(rest),
		}, true
	}
	return Summon{}, false
}

// IsDismiss reports whether text, trimmed and case-folded, equals a dismiss
// entry. Trailing ".", "!" and "?" are ignored.
func (v *Vocabulary) IsDismiss(text string) bool {
	n := strings.TrimRight(normalize(text), ".!?")
	_, ok := v.dismiss[strings.TrimSpace(n)]
	return ok
}

// IsCommand reports whether text begins with the command prefix.
func IsCommand(text, prefix string) bool {
	return prefix != "" && strings.HasPrefix(strings.TrimSpace(text), prefix)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchPrefix compares s case-insensitively against a normalized phrase and
// returns the byte offset in s where the phrase ends.
func matchPrefix(s, phrase string) (int, bool) {
	i := 0
	for _, want := range phrase {
		if i >= len(s) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if want == ' ' {
			if !unicode.IsSpace(r) {
				return 0, false
			}
			for i < len(s) {
				r, size = utf8.DecodeRuneInString(s[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += size
			}
			continue
		}
		if unicode.ToLower(r) != want {
			return 0, false
		}
		i += size
	}
	return i, true
}

func trimLeading(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, ",:;-"))
}
