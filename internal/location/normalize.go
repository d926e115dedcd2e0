package location

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxPasses is the base bound of the fixed-point iteration in Normalize; the
// input's rune count is added on top, since every pass that changes the
// string removes at least one rune or rewrites text no rule matches again.
const maxPasses = 8

// Rewrite replaces a literal with another literal. From only matches on word
// boundaries: a From that starts (ends) with a letter or digit must not be
// preceded (followed) by one.
type Rewrite struct {
	From string
	To   string
}

// Rules is the rule set applied by a Normalizer.
type Rules struct {
	// Fillers are leading words stripped before anything else ("bei", "near").
	Fillers []string
	// Rewrites are applied in order, each one independently of the others.
	Rewrites []Rewrite
	// Blocklist holds whole strings that carry no usable location.
	Blocklist []string
}

// DefaultRules returns the rule set tuned on the forum's profile data.
func DefaultRules() Rules {
	return Rules{
		Fillers: []string{
			"in der nähe von", "in der nähe", "nähe von", "nahe bei",
			"bei", "nahe", "nähe", "near", "at", "in", "im", "aus", "from", "um",
			"umgebung", "raum", "großraum", "umland", "region",
		},
		Rewrites: []Rewrite{
			{From: "(centro storico)", To: ""},
			{From: "ottenhofen b. münchen", To: "ottenhofen"},
			{From: "86399 landkreis augsburg", To: "86399 bobingen"},
			{From: "(15 km no von stuttgart)", To: ""},
			{From: "tü", To: "tübingen"},
			{From: "großraum", To: ""},
			{From: "umland", To: ""},
			{From: "frankfurt/main", To: "frankfurt am main"},
			{From: "frankfurt a.m.", To: "frankfurt am main"},
			{From: "frankfurt/m.", To: "frankfurt am main"},
			{From: "ffm", To: "frankfurt am main"},
			{From: "hh", To: "hamburg"},
			{From: "ruhrpott", To: "ruhrgebiet"},
			{From: "muenchen", To: "münchen"},
			{From: "koeln", To: "köln"},
			{From: "nuernberg", To: "nürnberg"},
			{From: "duesseldorf", To: "düsseldorf"},
			{From: "zuerich", To: "zürich"},
			{From: "oesterreich", To: "österreich"},
		},
		Blocklist: []string{
			"-", "--", "?", "??", "...", "n/a", "na", "k.a", "k. a", "ka", "keine angabe",
			"unbekannt", "unknown", "none", "privat", "geheim",
			"weltweit", "welt", "world", "erde", "planet erde", "earth",
			"überall", "ueberall", "everywhere", "nirgendwo", "nowhere", "irgendwo", "somewhere",
			"zuhause", "zu hause", "daheim", "home", "hier", "dort", "internet", "forum",
		},
	}
}

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// A bare district qualifier becomes "landkreis" only in front of a
	// lowercase word, so "kreis" on its own or in front of a number survives.
	districtRe = regexp.MustCompile(`(^|[\s,/(])(?:lkr|lk|kr|kreis)\.?\s+(\p{Ll})`)
	saintRe    = regexp.MustCompile(`(^|[\s,/(])st\.?\s+(\p{Ll})`)

	// "d-80331 münchen", "d 80331 münchen"
	leadingAbbrRe = regexp.MustCompile(`^([a-z]{1,3})[ -](\d{4,5})(?:[\s,]+(.*))?$`)
	// "80331 münchen, d", "80331 münchen (d)", "80331 münchen - d"
	trailingAbbrRe = regexp.MustCompile(`^(\d{4,5})\s+(.+?)\s*(?:,\s*|\(\s*|-\s+)([a-z]{1,3})\s*\)?$`)
)

// Normalizer converts raw profile locations into their canonical form.
type Normalizer struct {
	table     *Table
	fillers   []string
	rewrites  []Rewrite
	blocklist map[string]struct{}
}

// NewNormalizer creates a Normalizer over the given table and rules.
func NewNormalizer(table *Table, rules Rules) *Normalizer {
	n := &Normalizer{
		table:     table,
		rewrites:  append([]Rewrite(nil), rules.Rewrites...),
		blocklist: make(map[string]struct{}, len(rules.Blocklist)),
	}
	for _, f := range rules.Fillers {
		n.fillers = append(n.fillers, strings.ToLower(f)+" ")
	}
	sort.SliceStable(n.fillers, func(i, j int) bool { return len(n.fillers[i]) > len(n.fillers[j]) })
	for _, b := range rules.Blocklist {
		n.blocklist[strings.ToLower(b)] = struct{}{}
	}
	return n
}

// Normalize returns the canonical form of raw, or "" when raw holds nothing
// usable. It never fails and Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(raw string) string {
	s := raw
	for range maxPasses + utf8.RuneCountInString(raw) {
		next := n.pass(s)
		if next == s {
			return next
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(s string) string {
	s = clean(strings.ToLower(norm.NFC.String(s)))
	s = n.stripFillers(s)
	for _, rw := range n.rewrites {
		s = replaceWord(s, rw.From, rw.To)
	}
	s = clean(s)
	s = districtRe.ReplaceAllString(s, "${1}landkreis ${2}")
	s = saintRe.ReplaceAllString(s, "${1}sankt ${2}")
	s = n.canonicalAbbreviation(s)
	if n.blocked(s) {
		return ""
	}
	return clean(s)
}

// stripFillers removes leading filler words until none is left. Each round
// shortens the string, so the loop ends after at most len(s) rounds.
func (n *Normalizer) stripFillers(s string) string {
	for {
		stripped := false
		for _, f := range n.fillers {
			if len(s) > len(f) && strings.HasPrefix(s, f) {
				s = strings.TrimLeft(s[len(f):], " ")
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func (n *Normalizer) canonicalAbbreviation(s string) string {
	if m := leadingAbbrRe.FindStringSubmatch(s); m != nil {
		if code, ok := n.table.Abbreviation(m[1]); ok {
			return joinPostal(code, m[2], m[3])
		}
		return s
	}
	if m := trailingAbbrRe.FindStringSubmatch(s); m != nil {
		if code, ok := n.table.Abbreviation(m[3]); ok {
			return joinPostal(code, m[1], m[2])
		}
	}
	return s
}

func joinPostal(code, postal, rest string) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return code + "-" + postal
	}
	return code + "-" + postal + " " + rest
}

func (n *Normalizer) blocked(s string) bool {
	if _, ok := n.blocklist[strings.Trim(s, " .,;:!")]; ok {
		return true
	}
	return strings.IndexFunc(s, isWordRune) < 0
}

// clean collapses whitespace and trims separator punctuation at both ends.
func clean(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,;:.")
}

// replaceWord replaces every word-bounded occurrence of from with to. A
// replacement can join its neighbours into a new occurrence ("((x)x)" with
// from "(x)"), so the scan repeats until nothing matches, unless to itself
// contains from.
func replaceWord(s, from, to string) string {
	if from == "" {
		return s
	}
	if indexWord(to, from) >= 0 {
		return replaceOnce(s, from, to)
	}
	for range len(s) + 1 {
		next := replaceOnce(s, from, to)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func replaceOnce(s, from, to string) string {
	var b strings.Builder
	rest := s
	for {
		i := indexWord(rest, from)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		b.WriteString(to)
		rest = rest[i+len(from):]
	}
}

// indexWord returns the byte offset of the first word-bounded occurrence of
// word in s, or -1.
func indexWord(s, word string) int {
	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)
	for off := 0; off <= len(s)-len(word); {
		i := strings.Index(s[off:], word)
		if i < 0 {
			return -1
		}
		start := off + i
		end := start + len(word)
		okLeft := !isWordRune(first) || start == 0 || !isWordRune(lastRune(s[:start]))
		okRight := !isWordRune(last) || end == len(s) || !isWordRune(firstRune(s[end:]))
		if okLeft && okRight {
			return start
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return -1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
