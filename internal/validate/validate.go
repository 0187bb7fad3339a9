// Package validate reports which profile fields still need to be asked for.
package validate

import "github.com/sells-group/academic-crs/internal/model"

// Requirement is a required field and the question that asks for it.
type Requirement struct {
	Field    string `json:"field"`
	Question string `json:"question"`
}

var defaultSet = []Requirement{
	{model.FieldStudentName, "What's your full name?"},
	{model.FieldCurrentDegree, "What degree are you currently pursuing?"},
	{model.FieldGraduationYear, "When do you expect to graduate?"},
	{model.FieldCGPA, "What's your current CGPA or GPA?"},
	{model.FieldCareerGoal, "What's your main career goal?"},
	{model.FieldPreferredLocations, "Which countries are you interested in studying?"},
	{model.FieldBudget, "What is your approximate budget for the program?"},
	{model.FieldSpecialization, "What specialization or field would you like to focus on?"},
}

var highSchoolSet = []Requirement{
	{model.FieldStudentName, "What's your full name?"},
	{model.FieldBoard, "Which board did you study under (e.g., CBSE, ICSE, State Board)?"},
	{model.FieldClass12Score, "What was your Class 12 / higher secondary score?"},
	{model.FieldCompetitiveExams, "Have you written any competitive exams like JEE, NEET, SAT etc.? If yes, share exam name and score/rank."},
	{model.FieldPreferredLocations, "Which countries are you interested in studying?"},
	{model.FieldBudget, "What is your approximate budget for your undergraduate studies?"},
	{model.FieldSpecialization, "What field or branch (e.g., CS, Mechanical, MBBS, BBA) are you interested in?"},
}

// Requirements returns the ordered requirement set for level. Only the
// literal "high_school" selects the high-school set.
func Requirements(level string) []Requirement {
	if level == model.LevelHighSchool {
		return highSchoolSet
	}
	return defaultSet
}

// MissingFields returns a question for every required field of level that is
// absent or empty in profile. The report is built fresh on each call.
func MissingFields(profile model.Profile, level string) model.MissingFieldReport {
	report := model.MissingFieldReport{}
	for _, r := range Requirements(level) {
		if !profile.Has(r.Field) {
			report[r.Field] = r.Question
		}
	}
	return report
}

// Missing is MissingFields in requirement order.
func Missing(profile model.Profile, level string) []Requirement {
	var out []Requirement
	for _, r := range Requirements(level) {
		if !profile.Has(r.Field) {
			out = append(out, r)
		}
	}
	return out
}

// ForProfile validates profile against the level it declares.
func ForProfile(profile model.Profile) model.MissingFieldReport {
	return MissingFields(profile, profile.String(model.FieldAcademicLevel))
}
