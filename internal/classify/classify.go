// Package classify infers year, paper, theme, and source trust for extracted
// questions using ordered first-match-wins rule tables.
package classify

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Exam levels.
const (
	LevelPrelims = "Prelims"
	LevelMains   = "Mains"
)

// Input carries one candidate question plus everything known about where it
// came from.
type Input struct {
	Question   string
	Filename   string
	SourceLink string
	LevelHint  string // LevelPrelims / LevelMains, may be empty
	PaperHint  string // from link discovery, wins over table lookup

	FallbackYear int // used when no plausible year token is found
}

// Result is the classification outcome. Theme and Tags may be empty; that
// never blocks persistence.
type Result struct {
	Year     int
	Level    string
	Paper    string
	Theme    string
	Tags     []string
	Verified bool
}

// paperRule maps a regex to a paper label. Tables are ordered; the first
// matching rule wins.
type paperRule struct {
	re    *regexp.Regexp
	paper string
}

// GS-4 and GS-3 come before GS-2/GS-1 so roman numerals like "gs-iii" are not
// swallowed by the shorter patterns. A bare "General Studies" mains title is
// ambiguous across the four papers and deliberately matches nothing here.
var mainsPaperRules = []paperRule{
	{regexp.MustCompile(`(?i)gs[-_ ]?(paper[-_ ]?)?(4|iv)\b|ethics|integrity and aptitude`), "GS-4"},
	{regexp.MustCompile(`(?i)gs[-_ ]?(paper[-_ ]?)?(3|iii)\b`), "GS-3"},
	{regexp.MustCompile(`(?i)gs[-_ ]?(paper[-_ ]?)?(2|ii)\b`), "GS-2"},
	{regexp.MustCompile(`(?i)gs[-_ ]?(paper[-_ ]?)?(1|i)\b`), "GS-1"},
	{regexp.MustCompile(`(?i)essay`), "Essay"},
	{regexp.MustCompile(`(?i)optional|literature|public[-_ ]?administration|anthropology|sociology|geography[-_ ]?optional`), "Optional"},
}

var prelimsPaperRules = []paperRule{
	{regexp.MustCompile(`(?i)csat|aptitude|paper[-_ ]?(2|ii)\b`), "CSAT"},
	{regexp.MustCompile(`(?i)paper[-_ ]?(1|i)\b|general[-_ ]?studies|gs\b`), "GS Paper I"},
}

// Level-specific fallbacks for documents no paper rule matched.
var paperDefaults = map[string]string{
	LevelPrelims: "GS Paper I",
	LevelMains:   "GS-1",
}

// themeRule maps literal keywords to a theme. Keywords double as topic tags.
type themeRule struct {
	keywords []string
	theme    string
}

// Theme tables are scoped per paper group: GS-1 history/geography themes have
// no business matching a GS-3 economy question.
var themeTables = map[string][]themeRule{
	"GS-1": {
		{[]string{"ancient", "medieval", "mughal", "freedom struggle", "independence movement", "colonial"}, "History"},
		{[]string{"monsoon", "river", "soil", "ocean current", "climate of india", "geograph"}, "Geography"},
		{[]string{"temple", "dance", "painting", "architecture", "sculpture", "culture"}, "Art & Culture"},
		{[]string{"constitution", "parliament", "judiciary", "fundamental rights", "polity"}, "Polity"},
		{[]string{"women", "caste", "urbanization", "poverty", "society"}, "Society"},
	},
	"GS-2": {
		{[]string{"constitution", "parliament", "judiciary", "amendment", "federal"}, "Polity"},
		{[]string{"governance", "transparency", "accountability", "civil services", "e-governance"}, "Governance"},
		{[]string{"bilateral", "foreign policy", "united nations", "international", "diaspora"}, "International Relations"},
		{[]string{"welfare", "vulnerable sections", "education policy", "health sector"}, "Social Justice"},
	},
	"GS-3": {
		{[]string{"gdp", "inflation", "monetary", "fiscal", "budget", "banking", "taxation"}, "Economy"},
		{[]string{"agriculture", "crop", "irrigation", "subsidy", "food processing", "msp"}, "Agriculture"},
		{[]string{"biodiversity", "climate change", "pollution", "conservation", "environment"}, "Environment"},
		{[]string{"satellite", "biotechnology", "nuclear", "space programme", "artificial intelligence"}, "Science & Technology"},
		{[]string{"terrorism", "insurgency", "cyber security", "border management", "money laundering", "naxal"}, "Internal Security"},
		{[]string{"disaster", "earthquake", "flood management"}, "Disaster Management"},
	},
	"GS-4": {
		{[]string{"ethic", "integrity", "probity", "attitude", "moral", "emotional intelligence", "conscience"}, "Ethics"},
	},
	"CSAT": {
		{[]string{"passage", "comprehension"}, "Comprehension"},
		{[]string{"ratio", "percentage", "average", "number of", "probability"}, "Quantitative Aptitude"},
		{[]string{"syllogism", "statement", "conclusion", "assumption", "reasoning"}, "Logical Reasoning"},
	},
}

// paperGroup collapses label variants onto theme-table keys.
func paperGroup(paper string) string {
	switch paper {
	case "GS Paper I":
		return "GS-1"
	case "GS Paper II":
		return "CSAT"
	default:
		return paper
	}
}

// govSuffixes is the allow-list for the verified flag. Matching is by host
// suffix so subdomains of official portals qualify.
var govSuffixes = []string{".gov.in", ".nic.in", ".gov", ".mil.in"}

var yearRe = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)

// Classify runs all rule tables over one candidate question.
func Classify(in Input) Result {
	level := in.LevelHint
	if level == "" {
		level = LevelMains
	}

	paper := in.PaperHint
	if paper == "" {
		paper = GuessPaper(level, in.Filename, in.Question)
	}

	theme, tags := guessTheme(paper, in.Question)

	return Result{
		Year:     GuessYear(in.Filename, in.Question, in.FallbackYear),
		Level:    level,
		Paper:    paper,
		Theme:    theme,
		Tags:     tags,
		Verified: IsVerifiedSource(in.SourceLink),
	}
}

// GuessYear scans the filename first, then the text, for a plausible exam
// year between 1950 and the current year. Returns fallback (possibly 0) when
// nothing matches.
func GuessYear(filename, text string, fallback int) int {
	maxYear := time.Now().Year()
	for _, s := range []string{filename, text} {
		for _, m := range yearRe.FindAllString(s, -1) {
			y, _ := strconv.Atoi(m)
			if y >= 1950 && y <= maxYear {
				return y
			}
		}
	}
	return fallback
}

// GuessPaper applies the level-scoped paper table, filename before body text,
// first match wins. Unmatched documents get the level default.
func GuessPaper(level, filename, text string) string {
	if paper := LookupPaper(level, filename, text); paper != "" {
		return paper
	}
	return paperDefaults[level]
}

// LookupPaper runs the paper table without the level default; empty means no
// rule matched. Hint derivation uses this so an unmatched document leaves the
// per-question lookup free to run later.
func LookupPaper(level, filename, text string) string {
	rules := mainsPaperRules
	if level == LevelPrelims {
		rules = prelimsPaperRules
	}
	for _, src := range []string{filename, text} {
		if src == "" {
			continue
		}
		for _, r := range rules {
			if r.re.MatchString(src) {
				return r.paper
			}
		}
	}
	return ""
}

// guessTheme returns the first matching theme for the question's paper group
// plus every table keyword found in the question as topic tags.
func guessTheme(paper, question string) (string, []string) {
	rules, ok := themeTables[paperGroup(paper)]
	if !ok {
		return "", nil
	}

	lower := strings.ToLower(question)
	theme := ""
	var tags []string
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				if theme == "" {
					theme = rule.theme
				}
				tags = append(tags, kw)
			}
		}
	}
	return theme, tags
}

// IsVerifiedSource reports whether the link's host is on the government
// domain allow-list. This is a source-trust signal only.
func IsVerifiedSource(sourceLink string) bool {
	u, err := url.Parse(sourceLink)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range govSuffixes {
		if strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".") {
			return true
		}
	}
	return false
}
