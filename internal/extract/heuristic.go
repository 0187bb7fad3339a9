// Package extract turns free-form student narratives into profile fields,
// either with local pattern rules or through the reasoning service, and
// reconciles the two.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/academic-crs/internal/model"
)

// Keyword sets for academic level inference, checked in this order.
var (
	highSchoolKeywords = []string{
		"12th", "class 12", "class xii", "higher secondary", "plus two", "hsc",
		"intermediate", "puc", "pre-university",
	}
	// A high-school keyword is ignored when the text also mentions one of these.
	bachelorCompletionKeywords = []string{"b.tech", "btech", "bachelor"}

	undergraduateKeywords = []string{
		"b.tech", "btech", "b.e", "bachelor of", "bachelors in",
		"bsc", "b.sc", "bca", "bcom", "b.com", "ba ", "b.a ",
	}
	postgraduateKeywords = []string{
		"m.tech", "mtech", "m.e", "master of", "ms in", "m.s.", "msc", "m.sc",
		"mba", "pgdm",
	}
	workingProfessionalKeywords = []string{
		"working", "work experience", "software engineer", "developer at",
		"currently employed", "full-time job",
	}
)

// boardRules is checked in order; the first hit wins.
var boardRules = []struct {
	keywords []string
	board    string
}{
	{[]string{"cbse"}, "CBSE"},
	{[]string{"icse"}, "ICSE"},
	{[]string{"state board", "stateboard"}, "State Board"},
	{[]string{"hsc", "higher secondary"}, "HSC"},
	{[]string{"puc", "pre-university"}, "PUC"},
}

// scoreKeywords mark text that talks about a class 12 result.
var scoreKeywords = []string{"12th", "class 12", "class xii", "higher secondary", "hsc"}

const scoreAnchor = `(?:12th|class 12|class xii|higher secondary|hsc)`

var (
	namePattern = regexp.MustCompile(`\b(?i:my name is)\s+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)

	degreePattern = regexp.MustCompile(`(?i)\b(b\.tech|btech|b\.sc|b\.com|b\.e\.?|bachelors?|bsc|bcom|bca|ba|engineering|computer science|information technology|mechanical|civil)\b`)

	yearPattern     = regexp.MustCompile(`(?i)\b(?:graduat\w*|finish\w*|complet\w*|passed out|year)\s*(?:in|of)?\s*(\d{4}|\d{2})\b`)
	anyYearPattern  = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	cgpaPattern     = regexp.MustCompile(`(?i)\bc?gpa\s*(?:is|:|of)?\s*(\d+(?:\.\d+)?(?:\s*/\s*\d+(?:\.\d+)?)?)`)
	goalPattern     = regexp.MustCompile(`(?i)\b(?:goal|want|aspir|aim|plan)\w*\s*(?:is\s+)?(?:to\s+)?(?:become|be|pursue)?\s*(?:an?\s+)?(\w+(?:\s+\w+)*?\s*(?:engineer|scientist|developer|researcher|specialist|expert|manager|analyst))`)
	budgetPattern   = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\s*-\s*\d{1,3})?\s*lakhs?)\b`)
	locationPattern = regexp.MustCompile(`\b(USA|US|UK|(?i:united states|united kingdom|canada|germany|australia|france|singapore|netherlands|ireland|india))\b`)

	specializationPattern = regexp.MustCompile(`(?i)\b(?:speciali[sz](?:e|ing|ation)?|field|major|focus)\s*(?:in\s+|on\s+|of\s+)?(machine learning|ml|ai|computer science|cs|data science|data analytics|software engineering|mechanical engineering|civil engineering|electronics|ece)\b`)

	// SAT and ACT only match in upper case; lower-case "sat"/"act" are verbs.
	examPattern = regexp.MustCompile(`\b((?i:jee(?:\s*main|\s*advanced)?|neet|bitsat|viteee|comedk|mht[-\s]?cet|kcet|cuet)|SAT|ACT)\b[^.\n]*`)

	percentScorePattern  = regexp.MustCompile(`(?i)` + scoreAnchor + `[^.\n%]*?(\d{2,3}(?:\.\d+)?)\s*%`)
	fractionScorePattern = regexp.MustCompile(`(?i)` + scoreAnchor + `[^.\n]*?(\d{2,4}\s*/\s*\d{2,4})`)
	barePercentPattern   = regexp.MustCompile(`(\d{2,3}(?:\.\d+)?)\s*%`)

	whitespace = regexp.MustCompile(`\s+`)
)

var locationAliases = map[string]string{
	"us":            "USA",
	"usa":           "USA",
	"united states": "USA",
	"uk":            "United Kingdom",
}

var specializationAliases = map[string]string{
	"ml":               "Machine Learning",
	"machine learning": "Machine Learning",
	"ai":               "Artificial Intelligence",
	"cs":               "Computer Science",
	"computer science": "Computer Science",
	"ece":              "Electronics and Communication",
	"electronics":      "Electronics and Communication",
}

// titleCase builds a fresh Caser per call; a Caser must not be shared
// between goroutines.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// Heuristic extracts whatever profile fields the pattern rules can find in
// text. It never fails; fields with no match are absent.
func Heuristic(text string) model.Profile {
	info := model.Profile{}
	if strings.TrimSpace(text) == "" {
		return info
	}
	lower := strings.ToLower(text)

	if m := namePattern.FindStringSubmatch(text); m != nil {
		info.Set(model.FieldStudentName, strings.TrimSpace(m[1]))
	}
	if m := degreePattern.FindStringSubmatch(text); m != nil {
		info.Set(model.FieldCurrentDegree, strings.TrimSpace(m[1]))
	}
	info.Set(model.FieldGraduationYear, graduationYear(text))
	if m := cgpaPattern.FindStringSubmatch(text); m != nil {
		info.Set(model.FieldCGPA, strings.TrimSpace(m[1]))
	}
	if m := goalPattern.FindStringSubmatch(text); m != nil {
		info.Set(model.FieldCareerGoal, whitespace.ReplaceAllString(strings.TrimSpace(m[1]), " "))
	}
	if m := budgetPattern.FindStringSubmatch(text); m != nil {
		info.Set(model.FieldBudget, strings.TrimSpace(m[1]))
	}
	info.Set(model.FieldPreferredLocations, preferredLocations(text))
	info.Set(model.FieldSpecialization, specialization(text))
	info.Set(model.FieldAcademicLevel, AcademicLevel(lower))
	info.Set(model.FieldBoard, board(lower))
	info.Set(model.FieldClass12Score, class12Score(text))
	info.Set(model.FieldCompetitiveExams, competitiveExams(text))

	return info
}

// AcademicLevel classifies lower-cased text into one of the model.Level*
// values, or "" when no keyword set matches.
func AcademicLevel(lower string) string {
	if containsAny(lower, highSchoolKeywords) && !containsAny(lower, bachelorCompletionKeywords) {
		return model.LevelHighSchool
	}
	if containsAny(lower, undergraduateKeywords) {
		return model.LevelUndergraduate
	}
	if containsAny(lower, postgraduateKeywords) {
		return model.LevelPostgraduate
	}
	if containsAny(lower, workingProfessionalKeywords) {
		return model.LevelWorkingProfessional
	}
	return ""
}

// graduationYear prefixes two-digit years with "20"; "passed out in 98"
// becomes "2098". That is a known limitation of the heuristic.
func graduationYear(text string) string {
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		m = anyYearPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return ""
	}
	year := m[1]
	if len(year) == 2 {
		year = "20" + year
	}
	return year
}

func preferredLocations(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range locationPattern.FindAllStringSubmatch(text, -1) {
		name := canonicalLocation(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func canonicalLocation(raw string) string {
	raw = whitespace.ReplaceAllString(strings.TrimSpace(raw), " ")
	if raw == "" {
		return ""
	}
	if alias, ok := locationAliases[strings.ToLower(raw)]; ok {
		return alias
	}
	return titleCase(raw)
}

func specialization(text string) string {
	m := specializationPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	spec := whitespace.ReplaceAllString(strings.TrimSpace(m[1]), " ")
	if alias, ok := specializationAliases[strings.ToLower(spec)]; ok {
		return alias
	}
	return titleCase(spec)
}

func board(lower string) string {
	for _, rule := range boardRules {
		if containsAny(lower, rule.keywords) {
			return rule.board
		}
	}
	return ""
}

// class12Score tries an anchored percentage, then an anchored fraction, then
// any percentage on a line that mentions a score keyword. Percentages always
// carry a trailing "%".
func class12Score(text string) string {
	if m := percentScorePattern.FindStringSubmatch(text); m != nil {
		return m[1] + "%"
	}
	if m := fractionScorePattern.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(m[1], " ", "")
	}
	for _, line := range strings.Split(text, "\n") {
		if !containsAny(strings.ToLower(line), scoreKeywords) {
			continue
		}
		if m := barePercentPattern.FindStringSubmatch(line); m != nil {
			return m[1] + "%"
		}
	}
	return ""
}

// competitiveExams returns one record per mention; repeats are kept.
func competitiveExams(text string) []model.ExamRecord {
	var exams []model.ExamRecord
	for _, m := range examPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToUpper(whitespace.ReplaceAllString(strings.TrimSpace(m[1]), " "))
		details := strings.TrimSpace(m[0])
		if name == "" {
			continue
		}
		exams = append(exams, model.ExamRecord{ExamName: name, Details: details})
	}
	return exams
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
