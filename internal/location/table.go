package location

import (
	"sort"
	"strings"
)

// Table maps country names, region names and postal abbreviations to
// two-letter lowercase country codes. A Table is immutable once built and safe
// to share between goroutines.
type Table struct {
	abbreviations map[string]string
	names         map[string]string
	// aliases holds every name ordered longest-first so that a longer alias
	// ("niederösterreich") is always tried before one it contains ("österreich").
	aliases []alias
}

type alias struct {
	name string
	code string
}

// NewTable builds a Table from country aliases, region aliases (both keyed by
// country code) and abbreviation aliases (abbreviation -> country code).
// All input is lowercased. When the same name appears under two codes the
// country entry wins over the region entry.
func NewTable(countries, regions map[string][]string, abbreviations map[string]string) *Table {
	t := &Table{
		abbreviations: make(map[string]string, len(abbreviations)),
		names:         make(map[string]string),
	}
	for abbr, code := range abbreviations {
		t.abbreviations[strings.ToLower(abbr)] = strings.ToLower(code)
	}
	for _, src := range []map[string][]string{regions, countries} {
		for code, names := range src {
			for _, n := range names {
				t.names[strings.ToLower(strings.TrimSpace(n))] = strings.ToLower(code)
			}
		}
	}
	for name, code := range t.names {
		if name == "" {
			continue
		}
		t.aliases = append(t.aliases, alias{name: name, code: code})
	}
	sort.Slice(t.aliases, func(i, j int) bool {
		li, lj := len([]rune(t.aliases[i].name)), len([]rune(t.aliases[j].name))
		if li != lj {
			return li > lj
		}
		return t.aliases[i].name < t.aliases[j].name
	})
	return t
}

// Abbreviation resolves a postal-style country abbreviation ("d", "a", "ch").
func (t *Table) Abbreviation(abbr string) (string, bool) {
	code, ok := t.abbreviations[strings.ToLower(abbr)]
	return code, ok
}

// Name resolves an exact country or region name.
func (t *Table) Name(name string) (string, bool) {
	code, ok := t.names[strings.ToLower(name)]
	return code, ok
}

// Codes returns the sorted set of country codes the table can produce.
func (t *Table) Codes() []string {
	seen := make(map[string]struct{})
	for _, code := range t.names {
		seen[code] = struct{}{}
	}
	for _, code := range t.abbreviations {
		seen[code] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// DefaultTable returns the mapping used for the forum population: mostly
// German-speaking members with a long tail across Europe.
func DefaultTable() *Table {
	return NewTable(defaultCountries, defaultRegions, defaultAbbreviations)
}

var defaultCountries = map[string][]string{
	"de": {"deutschland", "germany", "allemagne", "germania", "duitsland", "tyskland", "niemcy", "bundesrepublik deutschland", "brd"},
	"at": {"österreich", "oesterreich", "austria", "autriche", "oostenrijk"},
	"ch": {"schweiz", "suisse", "svizzera", "switzerland", "helvetia", "confoederatio helvetica"},
	"nl": {"niederlande", "netherlands", "nederland", "holland", "pays-bas"},
	"be": {"belgien", "belgium", "belgique", "belgië"},
	"lu": {"luxemburg", "luxembourg"},
	"li": {"liechtenstein"},
	"dk": {"dänemark", "daenemark", "denmark", "danmark"},
	"fr": {"frankreich", "france"},
	"it": {"italien", "italy", "italia"},
	"es": {"spanien", "spain", "españa", "espana"},
	"pt": {"portugal"},
	"gb": {"großbritannien", "grossbritannien", "united kingdom", "great britain", "england", "scotland", "schottland", "wales"},
	"ie": {"irland", "ireland"},
	"se": {"schweden", "sweden", "sverige"},
	"no": {"norwegen", "norway", "norge"},
	"fi": {"finnland", "finland", "suomi"},
	"pl": {"polen", "poland", "polska"},
	"cz": {"tschechien", "czechia", "czech republic", "tschechische republik"},
	"hu": {"ungarn", "hungary", "magyarország"},
	"si": {"slowenien", "slovenia", "slovenija"},
	"hr": {"kroatien", "croatia", "hrvatska"},
	"gr": {"griechenland", "greece"},
	"us": {"usa", "vereinigte staaten", "united states"},
	"ca": {"kanada", "canada"},
	"au": {"australien", "australia"},
	"nz": {"neuseeland", "new zealand"},
}

var defaultRegions = map[string][]string{
	"de": {
		"bayern", "bavaria", "oberbayern", "niederbayern", "oberpfalz", "franken", "mittelfranken",
		"oberfranken", "unterfranken", "schwaben", "allgäu", "baden-württemberg", "württemberg",
		"schwarzwald", "nordrhein-westfalen", "nrw", "ruhrgebiet", "rheinland", "münsterland",
		"sauerland", "eifel", "niedersachsen", "ostfriesland", "emsland", "hessen", "odenwald",
		"sachsen", "sachsen-anhalt", "thüringen", "brandenburg", "mecklenburg-vorpommern",
		"schleswig-holstein", "rheinland-pfalz", "pfalz", "hunsrück", "saarland", "harz",
		"lausitz", "vogtland", "erzgebirge",
		"berlin", "hamburg", "münchen", "köln", "frankfurt am main", "stuttgart", "düsseldorf",
		"dortmund", "essen", "leipzig", "bremen", "dresden", "hannover", "nürnberg", "duisburg",
		"bochum", "wuppertal", "bielefeld", "bonn", "münster", "karlsruhe", "mannheim",
		"augsburg", "wiesbaden", "aachen", "kiel", "freiburg im breisgau", "lübeck", "rostock",
		"kassel", "regensburg", "würzburg", "ulm", "heidelberg", "darmstadt", "göttingen",
		"tübingen", "ludwigsburg", "osnabrück", "oldenburg", "braunschweig", "magdeburg",
		"potsdam", "erfurt", "jena", "chemnitz", "ingolstadt", "konstanz",
	},
	"at": {
		"wien", "vienna", "niederösterreich", "lower austria", "oberösterreich", "upper austria",
		"steiermark", "styria", "kärnten", "carinthia", "salzburg", "salzburger land", "tirol",
		"vorarlberg", "burgenland", "graz", "linz", "innsbruck", "klagenfurt", "sankt pölten",
		"bregenz", "villach",
	},
	"ch": {
		"zürich", "bern", "basel", "luzern", "aargau", "thurgau", "graubünden", "st. gallen",
		"sankt gallen", "wallis", "valais", "tessin", "ticino", "genf", "genève",
		"lausanne", "winterthur", "schaffhausen", "solothurn", "chur",
	},
	"it": {"südtirol", "alto adige"},
	"fr": {"elsass", "alsace", "lothringen", "lorraine"},
	"es": {"mallorca", "kanaren"},
}

var defaultAbbreviations = map[string]string{
	"d": "de", "de": "de", "deu": "de", "ger": "de", "brd": "de",
	"a": "at", "at": "at", "aut": "at",
	"ch": "ch", "sui": "ch",
	"nl": "nl",
	"b":  "be", "be": "be",
	"l": "lu", "lu": "lu",
	"fl": "li",
	"dk": "dk",
	"f":  "fr", "fr": "fr",
	"i": "it", "it": "it",
	"e": "es", "es": "es",
	"p": "pt", "pt": "pt",
	"gb": "gb", "uk": "gb",
	"irl": "ie",
	"s":   "se", "se": "se",
	"n": "no", "no": "no",
	"fin": "fi", "fi": "fi",
	"pl": "pl",
	"cz": "cz",
	"h":  "hu", "hu": "hu",
	"us": "us", "usa": "us",
}
