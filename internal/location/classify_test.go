package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"d-80331 münchen", "de"},
		{"de-80331 münchen", "de"},
		{"a 1010 wien", "at"},
		{"ch-8001 zürich", "ch"},
		{"münchen", "de"},
		{"Zürich", "ch"},
		{"wien, österreich", "at"},
		{"niederösterreich", "at"},
		{"bozen, südtirol", "it"},
		{"innsbruck, tirol", "at"},
		{"sankt gallen", "ch"},
		{"12345", ""},
		{"irgendwo", ""},
		{"", ""},
		// unknown abbreviation falls through to the name scan
		{"xx-12345 berlin", "de"},
		// names only match as whole words
		{"essenheim", ""},
	}

	c := NewClassifier(DefaultTable())
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.InferCountry(tt.in))
		})
	}
}

func TestInferCountry_LongestAliasWins(t *testing.T) {
	table := NewTable(
		map[string][]string{"at": {"austria"}},
		map[string][]string{"xa": {"lower austria"}},
		nil,
	)
	c := NewClassifier(table)

	assert.Equal(t, "xa", c.InferCountry("st. pölten, lower austria"))
	assert.Equal(t, "at", c.InferCountry("vienna, austria"))
}

func TestInferPostalCode(t *testing.T) {
	c := NewClassifier(DefaultTable())

	assert.Equal(t, "12345", c.InferPostalCode("12345 berlin"))
	assert.Empty(t, c.InferPostalCode("no numbers here"))
	assert.Equal(t, "1010", c.InferPostalCode("a-1010 wien"))
	assert.Equal(t, "80331", c.InferPostalCode("de-80331 münchen"))
	assert.Equal(t, "8001", c.InferPostalCode("zürich 8001, 12345"))
	assert.Empty(t, c.InferPostalCode("123456 berlin"))
	assert.Empty(t, c.InferPostalCode("123 berlin"))
	assert.Empty(t, c.InferPostalCode("b12345"))
}

func TestClassify(t *testing.T) {
	table := DefaultTable()
	n := NewNormalizer(table, DefaultRules())
	c := NewClassifier(table)

	t.Run("raw string", func(t *testing.T) {
		raw := "bei München"
		got := c.Classify(raw, n.Normalize(raw))
		assert.Equal(t, Classification{Country: "de"}, got)
	})

	t.Run("second chance on canonical form", func(t *testing.T) {
		raw := "80331 Muenchen"
		got := c.Classify(raw, n.Normalize(raw))
		assert.Equal(t, Classification{Country: "de", PostalCode: "80331"}, got)
	})

	t.Run("trailing abbreviation resolved by canonical form", func(t *testing.T) {
		raw := "1010 Favoriten, A"
		got := c.Classify(raw, n.Normalize(raw))
		assert.Equal(t, Classification{Country: "at", PostalCode: "1010"}, got)
	})

	t.Run("nothing inferable", func(t *testing.T) {
		raw := "Velomobilhausen"
		got := c.Classify(raw, n.Normalize(raw))
		assert.Equal(t, Classification{}, got)
	})

	t.Run("postal code only", func(t *testing.T) {
		raw := "12345"
		got := c.Classify(raw, n.Normalize(raw))
		assert.Equal(t, Classification{PostalCode: "12345"}, got)
	})
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultTable())

	first := c.Classify("D-80331 München", "de-80331 münchen")
	for range 10 {
		assert.Equal(t, first, c.Classify("D-80331 München", "de-80331 münchen"))
	}
	assert.Equal(t, Classification{Country: "de", PostalCode: "80331"}, first)
}
