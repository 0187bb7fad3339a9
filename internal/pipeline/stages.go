// Package pipeline runs the five recommendation stages, one at a time, over a
// profile the caller owns.
package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/model"
)

// ErrInvalidStageIndex is matched by every StageIndexError.
var ErrInvalidStageIndex = eris.New("pipeline: invalid stage index")

// StageIndexError reports an index outside the pipeline.
type StageIndexError struct {
	Index int
	Count int
}

func (e *StageIndexError) Error() string {
	return fmt.Sprintf("pipeline: stage index %d out of range [0, %d)", e.Index, e.Count)
}

// Is matches ErrInvalidStageIndex.
func (e *StageIndexError) Is(target error) bool { return target == ErrInvalidStageIndex }

// Stage describes one pipeline step. Stages are fixed at start-up.
type Stage struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Reads          string `json:"reads,omitempty"`
	Output         string `json:"output"`
	UseSearch      bool   `json:"use_search"`
	Goal           string `json:"-"`
	Backstory      string `json:"-"`
	Task           string `json:"-"`
	ExpectedOutput string `json:"-"`
}

var stages = []Stage{
	{
		Name:   "normalize",
		Role:   "Search-Optimized Data Normalizer",
		Output: model.FieldNormalizedProfile,
		Goal: `Clean up a student profile so it produces precise university searches.

The profile may hold academic_level, student_name, current_degree,
graduation_year, cgpa, board, class12_score, competitive_exams, career_goal,
preferred_locations, budget, specialization, raw_user_text and user_feedback.

1. Flatten nested values: competitive_exams becomes a list of strings such as
   "JEE Main: 97 percentile", never objects.
2. Standardize: academic levels use high_school, undergraduate, postgraduate or
   working_professional; budgets become searchable ranges such as
   "10-15 lakhs" or "50000-75000 USD"; subject names use their common form;
   countries use full names ("United States", not "US").
3. Keep anything that sharpens a search: exam details, exact scores, feedback.
4. Drop every field that is null, empty, "not specified" or "N/A".

Reply with one JSON object and nothing else: no markdown, no commentary.`,
		Backstory: `You look after data quality for a university search service. Consistent,
search-friendly profiles are what make good matches possible.`,
		Task: `Here is the student profile:
{profile}

Normalize it as your goal describes and return only the cleaned JSON object.`,
		ExpectedOutput: "A JSON object of standardized, non-empty profile fields.",
	},
	{
		Name:      "match",
		Role:      "University Matcher",
		Reads:     model.FieldNormalizedProfile,
		Output:    model.FieldMatchedPrograms,
		UseSearch: true,
		Goal: `Recommend realistic university programs backed by real search results.

- Search a handful of times and reuse what you find.
- Never make up fees or programs. When a fee is not in the results, write
  "Not available".
- Respect the budget and the academic record. Label anything clearly out of
  reach "High Reach" instead of presenting it as a safe choice.
- Undergraduate applicants get bachelor programs; everyone else gets master
  or postgraduate programs.
- For selective institutions, name the entrance exams they require.
- User feedback overrides everything else. When it states a rank, score or
  budget, only recommend programs that accept it.

Useful queries: "<university> <program> tuition fees 2024",
"<program> colleges in <location> fees", "<university> <program> admission
requirements".

Reply with a JSON array, no markdown. Each element has university, program,
degree_level, location, duration, tuition, living_cost, total_cost,
requirements, website and fit_reason.`,
		Backstory: "You give budget-aware study-abroad advice and you are honest about admission odds.",
		Task: `Student profile:
{profile}

Upstream normalized profile:
{upstream}

User feedback: {user_feedback}

Find six to eight achievable, affordable programs. When the feedback is not
"None", let it reshape the search and drop anything that needs a better rank
or score than the student has. Return only the JSON array.`,
		ExpectedOutput: "A JSON array of university program matches.",
	},
	{
		Name:   "rank",
		Role:   "University Program Specialist",
		Reads:  model.FieldMatchedPrograms,
		Output: model.FieldRankedPrograms,
		Goal: `Rank the matched programs and keep the best five or six.

For each one give the course, university, degree level, duration, location,
yearly tuition (or "Check website"), yearly living cost, a three to four
sentence description, the website, two to four pros, one to three cons,
admission difficulty and a career alignment score from 1 to 10.

Finish with a short recommendation naming the one or two best fits and why.
Use only facts from the matches; add no new fees or cutoffs. Be frank about
reach schools and address any user feedback directly.`,
		Backstory: `You are a senior academic consultant who compares programs worldwide on
rankings, return on investment, graduate outcomes and curriculum.`,
		Task: `Student profile:
{profile}

Matched programs:
{upstream}

User feedback: {user_feedback}

Rank the matched programs as your goal describes. When the feedback is not
"None", the ranking must reflect it. Keep it structured and reasonably short.`,
		ExpectedOutput: "A ranked list of programs with pros, cons and a closing recommendation.",
	},
	{
		Name:      "find-scholarships",
		Role:      "Scholarship Finder",
		Reads:     model.FieldRankedPrograms,
		Output:    model.FieldScholarships,
		UseSearch: true,
		Goal: `Find three to five scholarships that fit the student and the ranked programs,
at undergraduate or postgraduate level as appropriate.

For each: name, amount with currency, eligibility, deadline (or "rolling")
and the official link when there is one. If nothing fits, say so and suggest
general funding routes such as government schemes, university aid or
assistantships.

Return a clean list and stop there.`,
		Backstory: "You advise students on funding and you keep track of current scholarships worldwide.",
		Task: `Student profile:
{profile}

Ranked programs:
{upstream}

User feedback: {user_feedback}

List the most relevant funding opportunities, favouring any the feedback asks
for. Be concise.`,
		ExpectedOutput: "A short list of relevant scholarships or funding options.",
	},
	{
		Name:      "collect-reviews",
		Role:      "Reviews Collector",
		Reads:     model.FieldRankedPrograms,
		Output:    model.FieldReviews,
		UseSearch: true,
		Goal: `Summarize student opinion of the ranked universities and programs.

Use a few credible sources such as forums and review sites; look for
patterns. For each program give an overall sentiment (Positive, Mixed or
Negative), two or three points of praise, one or two concerns and a one or
two sentence summary. No invented statistics or quotes. No citation markers.`,
		Backstory: "You research student experience and give a balanced picture of academic and campus life.",
		Task: `Student profile:
{profile}

Ranked programs:
{upstream}

User feedback: {user_feedback}

Review only the programs in the ranked list, none from the wider match list.
Keep each summary brief and balanced.`,
		ExpectedOutput: "Short review summaries for the ranked programs only.",
	},
}

func init() {
	for i := range stages {
		stages[i].Index = i
	}
}

// Stages returns a copy of the pipeline in order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// Count is the number of stages.
func Count() int { return len(stages) }

// StageAt returns the stage at index or a *StageIndexError.
func StageAt(index int) (Stage, error) {
	if index < 0 || index >= len(stages) {
		return Stage{}, &StageIndexError{Index: index, Count: len(stages)}
	}
	return stages[index], nil
}

// ByName looks a stage up by name.
func ByName(name string) (Stage, bool) {
	for _, s := range stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}
