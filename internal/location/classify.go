package location

import (
	"regexp"
	"strings"
)

var (
	postalPrefixRe = regexp.MustCompile(`^([a-z]{1,3})[ -](\d{4,5})`)
	tokenRe        = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	postalRe       = regexp.MustCompile(`^[0-9]{4,5}$`)
)

// Classification is what the classifier could infer about a location.
// Empty fields mean unknown.
type Classification struct {
	Country    string
	PostalCode string
}

// Classifier infers a country code and a postal code from location text.
type Classifier struct {
	table *Table
}

// NewClassifier creates a Classifier over the given table.
func NewClassifier(table *Table) *Classifier {
	return &Classifier{table: table}
}

// InferCountry returns the country code for s, or "" if none can be inferred.
// A postal abbreviation prefix ("d-80331") wins; otherwise the longest country
// or region name that occurs in s as a whole word decides.
func (c *Classifier) InferCountry(s string) string {
	s = strings.ToLower(s)
	if m := postalPrefixRe.FindStringSubmatch(s); m != nil {
		if code, ok := c.table.Abbreviation(m[1]); ok {
			return code
		}
	}
	for _, a := range c.table.aliases {
		if indexWord(s, a.name) >= 0 {
			return a.code
		}
	}
	return ""
}

// InferPostalCode returns the first token of s made of exactly four or five
// digits, or "".
func (c *Classifier) InferPostalCode(s string) string {
	for _, tok := range tokenRe.FindAllString(s, -1) {
		if postalRe.MatchString(tok) {
			return tok
		}
	}
	return ""
}

// Classify infers country and postal code from the raw location. When the raw
// text yields nothing and the canonical form differs, the canonical form gets
// a second chance.
func (c *Classifier) Classify(raw, canonical string) Classification {
	raw = strings.ToLower(raw)
	cl := Classification{
		Country:    c.InferCountry(raw),
		PostalCode: c.InferPostalCode(raw),
	}
	if canonical == raw {
		return cl
	}
	if cl.Country == "" {
		cl.Country = c.InferCountry(canonical)
	}
	if cl.PostalCode == "" {
		cl.PostalCode = c.InferPostalCode(canonical)
	}
	return cl
}
