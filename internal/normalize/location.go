package normalize

import (
	"regexp"
	"sort"
	"strings"
)

type country struct {
	name    string
	code    string
	aliases []string
}

var countries = []country{
	{"United States", "us", []string{"united states", "united states of america", "usa", "u.s.a.", "u.s."}},
	{"United Kingdom", "gb", []string{"united kingdom", "uk", "u.k.", "great britain", "england", "scotland", "wales", "britain"}},
	{"Canada", "ca", []string{"canada"}},
	{"Australia", "au", []string{"australia"}},
	{"New Zealand", "nz", []string{"new zealand"}},
	{"Ireland", "ie", []string{"ireland"}},
	{"Germany", "de", []string{"germany", "deutschland"}},
	{"France", "fr", []string{"france"}},
	{"Netherlands", "nl", []string{"netherlands", "holland", "the netherlands"}},
	{"Belgium", "be", []string{"belgium"}},
	{"Switzerland", "ch", []string{"switzerland", "schweiz"}},
	{"Austria", "at", []string{"austria", "österreich"}},
	{"Italy", "it", []string{"italy", "italia"}},
	{"Spain", "es", []string{"spain", "españa"}},
	{"Portugal", "pt", []string{"portugal"}},
	{"Sweden", "se", []string{"sweden"}},
	{"Norway", "no", []string{"norway"}},
	{"Denmark", "dk", []string{"denmark"}},
	{"Finland", "fi", []string{"finland"}},
	{"Poland", "pl", []string{"poland"}},
	{"Czech Republic", "cz", []string{"czech republic", "czechia"}},
	{"Hungary", "hu", []string{"hungary"}},
	{"Greece", "gr", []string{"greece"}},
	{"Turkey", "tr", []string{"turkey", "türkiye"}},
	{"Russia", "ru", []string{"russia", "russian federation"}},
	{"Ukraine", "ua", []string{"ukraine"}},
	{"China", "cn", []string{"china"}},
	{"Japan", "jp", []string{"japan"}},
	{"South Korea", "kr", []string{"south korea", "korea"}},
	{"India", "in", []string{"india"}},
	{"Pakistan", "pk", []string{"pakistan"}},
	{"Bangladesh", "bd", []string{"bangladesh"}},
	{"Singapore", "sg", []string{"singapore"}},
	{"Malaysia", "my", []string{"malaysia"}},
	{"Indonesia", "id", []string{"indonesia"}},
	{"Thailand", "th", []string{"thailand"}},
	{"Vietnam", "vn", []string{"vietnam", "viet nam"}},
	{"Philippines", "ph", []string{"philippines"}},
	{"Hong Kong", "hk", []string{"hong kong"}},
	{"Taiwan", "tw", []string{"taiwan"}},
	{"United Arab Emirates", "ae", []string{"united arab emirates", "uae"}},
	{"Saudi Arabia", "sa", []string{"saudi arabia"}},
	{"Qatar", "qa", []string{"qatar"}},
	{"Israel", "il", []string{"israel"}},
	{"Egypt", "eg", []string{"egypt"}},
	{"South Africa", "za", []string{"south africa"}},
	{"Nigeria", "ng", []string{"nigeria"}},
	{"Kenya", "ke", []string{"kenya"}},
	{"Ghana", "gh", []string{"ghana"}},
	{"Morocco", "ma", []string{"morocco"}},
	{"Brazil", "br", []string{"brazil", "brasil"}},
	{"Mexico", "mx", []string{"mexico", "méxico"}},
	{"Argentina", "ar", []string{"argentina"}},
	{"Chile", "cl", []string{"chile"}},
	{"Colombia", "co", []string{"colombia"}},
	{"Peru", "pe", []string{"peru"}},
	{"Uzbekistan", "uz", []string{"uzbekistan"}},
	{"Kazakhstan", "kz", []string{"kazakhstan"}},
}

type aliasPattern struct {
	re      *regexp.Regexp
	country *country
}

var countryPatterns = buildCountryPatterns()

func buildCountryPatterns() []aliasPattern {
	var out []aliasPattern
	for i := range countries {
		c := &countries[i]
		for _, alias := range c.aliases {
			re := regexp.MustCompile(`(?i)(^|[^\pL])` + regexp.QuoteMeta(alias) + `($|[^\pL])`)
			out = append(out, aliasPattern{re: re, country: c})
		}
	}
	// Longer aliases first so "south korea" wins over "korea".
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].re.String()) > len(out[j].re.String())
	})
	return out
}

// Country returns the canonical name of the country mentioned earliest in
// text, or "".
func Country(text string) string {
	if c := findCountry(text); c != nil {
		return c.name
	}
	return ""
}

// CountryCode returns the ISO 3166-1 alpha-2 code (lowercase) for a country
// name, alias or code.
func CountryCode(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	for _, c := range countries {
		if c.code == name || strings.ToLower(c.name) == name {
			return c.code
		}
		for _, alias := range c.aliases {
			if alias == name {
				return c.code
			}
		}
	}
	if c := findCountry(name); c != nil {
		return c.code
	}
	return ""
}

// CanonicalCountry maps an alias or code to the canonical country name and
// returns the input unchanged when it is unknown.
func CanonicalCountry(name string) string {
	code := CountryCode(name)
	if code == "" {
		return strings.TrimSpace(name)
	}
	for _, c := range countries {
		if c.code == code {
			return c.name
		}
	}
	return strings.TrimSpace(name)
}

func findCountry(text string) *country {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	bestPos := -1
	var best *country
	for _, p := range countryPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestPos == -1 || loc[0] < bestPos {
			bestPos = loc[0]
			best = p.country
		}
	}
	return best
}

var fieldKeywords = []struct {
	field    string
	keywords []string
}{
	{"Computer Science", []string{"computer science", "computing", "software", "informatics", "information technology", "data science", "artificial intelligence", "machine learning", "cybersecurity", "cyber security"}},
	{"Engineering", []string{"engineering", "mechanical", "electrical", "civil", "chemical engineering", "aerospace", "robotics"}},
	{"Medicine", []string{"medicine", "medical", "health", "nursing", "pharmacy", "dentistry", "public health", "biomedical"}},
	{"Business", []string{"business", "management", "mba", "finance", "economics", "accounting", "marketing"}},
	{"Law", []string{"law", "laws", "legal studies", "jurisprudence", "llb"}},
	{"Natural Sciences", []string{"physics", "chemistry", "biology", "mathematics", "math", "geology", "environmental science", "natural science"}},
	{"Social Sciences", []string{"social science", "sociology", "psychology", "political science", "international relations", "anthropology"}},
	{"Arts", []string{"arts", "humanities", "music", "design", "architecture", "literature", "history", "philosophy", "languages"}},
	{"Education", []string{"education", "teaching", "pedagogy"}},
	{"Agriculture", []string{"agriculture", "agronomy", "forestry", "veterinary", "food science"}},
}

var fieldPatterns = buildFieldPatterns()

type fieldPattern struct {
	field string
	re    *regexp.Regexp
}

func buildFieldPatterns() []fieldPattern {
	out := make([]fieldPattern, 0, len(fieldKeywords))
	for _, fk := range fieldKeywords {
		quoted := make([]string, 0, len(fk.keywords))
		for _, kw := range fk.keywords {
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
		re := regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
		out = append(out, fieldPattern{field: fk.field, re: re})
	}
	return out
}

// Field returns the field of study mentioned earliest in text, or "".
func Field(text string) string {
	bestPos := -1
	best := ""
	for _, p := range fieldPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestPos == -1 || loc[0] < bestPos {
			bestPos = loc[0]
			best = p.field
		}
	}
	return best
}

// FieldKeywords returns the keywords of the field of study named by field
// (canonical name or any of its keywords). Unknown fields yield the input
// itself as the only keyword.
func FieldKeywords(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	canonical := Field(field)
	for _, fk := range fieldKeywords {
		if strings.EqualFold(fk.field, field) || fk.field == canonical {
			return append([]string{strings.ToLower(fk.field)}, fk.keywords...)
		}
	}
	return []string{strings.ToLower(field)}
}

const (
	LevelBachelor = "bachelor"
	LevelMaster   = "master"
	LevelPhD      = "phd"
	LevelPostdoc  = "postdoc"
)

var levelPatterns = []struct {
	level string
	re    *regexp.Regexp
}{
	{LevelPostdoc, regexp.MustCompile(`(?i)\b(post-?doc\w*|post-?doctoral)\b`)},
	{LevelPhD, regexp.MustCompile(`(?i)\b(ph\.?d\.?|doctoral|doctorate)\b`)},
	{LevelMaster, regexp.MustCompile(`(?i)\b(masters?|master's|msc|m\.sc\.?|mba|llm|postgraduate)\b`)},
	{LevelBachelor, regexp.MustCompile(`(?i)\b(bachelors?|bachelor's|undergraduate|bsc|b\.sc\.?)\b`)},
}

// StudyLevel maps a free-form level ("Master's", "PhD", "undergraduate")
// to one of the Level constants, or "".
func StudyLevel(text string) string {
	levels := StudyLevels(text)
	if len(levels) == 0 {
		return ""
	}
	return levels[0]
}

// StudyLevels lists every level mentioned in text, most advanced first.
func StudyLevels(text string) []string {
	var out []string
	for _, p := range levelPatterns {
		if p.re.MatchString(text) {
			out = append(out, p.level)
		}
	}
	return out
}
