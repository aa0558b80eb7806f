package terms

import (
	"sort"
	"strings"
)

// Term is one matchable ingredient term. Aliases are hidden sources of the
// same thing ("ketchup" for "sugar"). SafeVariants exempt a text that would
// otherwise match ("sugar-free", "cauliflower rice").
//
// The name matches as a plain substring. Aliases match whole words only,
// with an optional plural suffix: "rum" hits "dark rum" but not "crumbled".
type Term struct {
	Name         string   `yaml:"term" json:"term"`
	Aliases      []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	SafeVariants []string `yaml:"safe_variants,omitempty" json:"safe_variants,omitempty"`
}

// Match records one term hit against one searched text.
type Match struct {
	Term    string `json:"term"`
	Matched string `json:"matched"` // the term or alias that hit
	Text    string `json:"text"`
}

// Matcher holds lower-cased terms for case-insensitive substring matching.
type Matcher struct {
	terms []compiled
	raw   []Term
}

type compiled struct {
	name     string
	aliases  []string
	variants []string
}

// New builds a Matcher. Empty term names are skipped.
func New(ts []Term) *Matcher {
	m := &Matcher{}
	for _, t := range ts {
		m.AddTerm(t)
	}
	return m
}

// FromNames builds a Matcher of plain terms with no aliases or variants.
func FromNames(names []string) *Matcher {
	ts := make([]Term, 0, len(names))
	for _, n := range names {
		ts = append(ts, Term{Name: n})
	}
	return New(ts)
}

// AddTerm appends a term at runtime.
func (m *Matcher) AddTerm(t Term) {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if name == "" {
		return
	}
	c := compiled{name: name}
	for _, a := range t.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			c.aliases = append(c.aliases, a)
		}
	}
	for _, v := range t.SafeVariants {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			c.variants = append(c.variants, v)
		}
	}
	m.terms = append(m.terms, c)
	m.raw = append(m.raw, t)
}

// Len returns the number of terms.
func (m *Matcher) Len() int {
	return len(m.terms)
}

// Terms returns a copy of the raw terms.
func (m *Matcher) Terms() []Term {
	out := make([]Term, len(m.raw))
	copy(out, m.raw)
	return out
}

// MatchText checks a single text. Returns the first needle that hit, or "".
// A text containing one of the term's safe variants never matches that term.
func (m *Matcher) MatchText(term string, text string) string {
	lower := strings.ToLower(text)
	for _, c := range m.terms {
		if c.name == strings.ToLower(term) {
			return c.match(lower)
		}
	}
	return ""
}

// Match scans every text against every term. At most one Match is reported
// per (term, text) pair. Order follows terms, then texts.
func (m *Matcher) Match(texts []string) []Match {
	if len(m.terms) == 0 || len(texts) == 0 {
		return nil
	}
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}

	var out []Match
	for _, c := range m.terms {
		for i, lt := range lowered {
			if hit := c.match(lt); hit != "" {
				out = append(out, Match{Term: c.name, Matched: hit, Text: texts[i]})
			}
		}
	}
	return out
}

// Any reports whether any text matches any term.
func (m *Matcher) Any(texts []string) bool {
	for _, t := range texts {
		lt := strings.ToLower(t)
		for _, c := range m.terms {
			if c.match(lt) != "" {
				return true
			}
		}
	}
	return false
}

// MatchedTerms returns the distinct term names hit by texts, sorted.
func (m *Matcher) MatchedTerms(texts []string) []string {
	return UniqueTerms(m.Match(texts))
}

// UniqueTerms collapses matches to their distinct term names, sorted.
func UniqueTerms(ms []Match) []string {
	if len(ms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ms))
	var out []string
	for _, mt := range ms {
		if !seen[mt.Term] {
			seen[mt.Term] = true
			out = append(out, mt.Term)
		}
	}
	sort.Strings(out)
	return out
}

func (c compiled) match(lowerText string) string {
	hit := ""
	if strings.Contains(lowerText, c.name) {
		hit = c.name
	} else {
		for _, a := range c.aliases {
			if containsWord(lowerText, a) {
				hit = a
				break
			}
		}
	}
	if hit == "" {
		return ""
	}
	for _, v := range c.variants {
		if strings.Contains(lowerText, v) {
			return ""
		}
	}
	return hit
}

// containsWord reports whether word occurs in text starting at a word
// boundary and ending at one, allowing a trailing "s" or "es".
func containsWord(text, word string) bool {
	for from := 0; from <= len(text)-len(word); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if (start == 0 || !isWordByte(text[start-1])) && wordEnds(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func wordEnds(text string, end int) bool {
	rest := text[end:]
	for _, suffix := range []string{"", "s", "es"} {
		if !strings.HasPrefix(rest, suffix) {
			continue
		}
		if n := end + len(suffix); n == len(text) || !isWordByte(text[n]) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}
