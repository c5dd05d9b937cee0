package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validQuestion() QuizQuestion {
	return QuizQuestion{
		Question:    "What is 2+2?",
		Choices:     []string{"3", "4", "5", "22"},
		Answer:      "4",
		Explanation: "Arithmetic.",
	}
}

func TestValidateQuiz(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *QuizQuestion)
		wantErr bool
	}{
		{"valid", func(q *QuizQuestion) {}, false},
		{"answer not a choice", func(q *QuizQuestion) { q.Answer = "four" }, true},
		{"answer differs by whitespace", func(q *QuizQuestion) { q.Answer = "4 " }, true},
		{"answer differs by case", func(q *QuizQuestion) { q.Choices[1] = "Four"; q.Answer = "four" }, true},
		{"three choices", func(q *QuizQuestion) { q.Choices = q.Choices[:3] }, true},
		{"five choices", func(q *QuizQuestion) { q.Choices = append(q.Choices, "6") }, true},
		{"duplicate choice", func(q *QuizQuestion) { q.Choices[3] = "3" }, true},
		{"empty choice", func(q *QuizQuestion) { q.Choices[0] = " " }, true},
		{"missing question", func(q *QuizQuestion) { q.Question = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(&q)
			err := ValidateQuiz(Quiz{Questions: []QuizQuestion{q}})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("empty quiz", func(t *testing.T) {
		assert.Error(t, ValidateQuiz(Quiz{}))
	})
}

func TestValidateQuizAggregatesProblems(t *testing.T) {
	bad := QuizQuestion{Choices: []string{"a", "a"}, Answer: "z"}
	err := ValidateQuiz(Quiz{Questions: []QuizQuestion{bad}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// missing question, wrong count, duplicate, answer mismatch
	assert.Len(t, verr.Problems, 4)
	assert.Contains(t, err.Error(), "exactly 4 choices")
}

func TestQuizAnswerMustBeAChoice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		choices := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 4, 4, rapid.ID[string]).Draw(t, "choices")
		answer := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "answer")
		q := Quiz{Questions: []QuizQuestion{{Question: "q", Choices: choices, Answer: answer}}}

		isChoice := false
		for _, c := range choices {
			if c == answer {
				isChoice = true
			}
		}
		err := ValidateQuiz(q)
		if isChoice && err != nil {
			t.Fatalf("valid quiz rejected: %v", err)
		}
		if !isChoice && err == nil {
			t.Fatalf("answer %q outside %v accepted", answer, choices)
		}
	})
}

func TestValidateBlueprint(t *testing.T) {
	valid := Blueprint{
		Summary: "Intro to graphs",
		Topics: []BlueprintTopic{
			{Key: "basics", Title: "Basics"},
			{Key: "bfs", Title: "BFS", Prerequisites: []string{"Basics"}},
		},
	}
	assert.NoError(t, ValidateBlueprint(valid))

	tests := []struct {
		name string
		bp   Blueprint
		want string
	}{
		{"missing summary", Blueprint{Topics: valid.Topics}, "summary is required"},
		{"no topics", Blueprint{Summary: "s"}, "topics must not be empty"},
		{"duplicate keys", Blueprint{Summary: "s", Topics: []BlueprintTopic{
			{Key: "a", Title: "A"}, {Key: "A", Title: "A again"},
		}}, "duplicates"},
		{"unknown prerequisite", Blueprint{Summary: "s", Topics: []BlueprintTopic{
			{Key: "a", Title: "A", Prerequisites: []string{"zzz"}},
		}}, "unknown topic"},
		{"self prerequisite", Blueprint{Summary: "s", Topics: []BlueprintTopic{
			{Key: "a", Title: "A", Prerequisites: []string{"a"}},
		}}, "unknown topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlueprint(tt.bp)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateFlashcards(t *testing.T) {
	assert.NoError(t, ValidateFlashcards(Flashcards{Cards: []Flashcard{
		{Front: "Mitosis", Back: "Cell division"},
		{Front: "Meiosis", Back: "Reduction division"},
	}}))

	err := ValidateFlashcards(Flashcards{Cards: []Flashcard{
		{Front: "Mitosis", Back: "a"},
		{Front: "  mitosis ", Back: "b"},
		{Front: "x"},
	}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"cards[2].front duplicates cards[1]", "cards[3].back is required"}, verr.Problems)

	assert.Error(t, ValidateFlashcards(Flashcards{}))
}

func TestParseQuizFromNoisyOutput(t *testing.T) {
	raw := "Sure! Here is the quiz:\n```json\n" +
		`{"questions":[{"question":"Capital of France?","choices":["Paris","Rome","Berlin","Madrid"],"answer":"Paris","explanation":"It is."}]}` +
		"\n```"
	q, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, "Paris", q.Questions[0].Answer)
}

func TestParseChatAnswerNormalizesCitations(t *testing.T) {
	context := "Source 1 | Lecture 3 | page 2\nCells divide.\n\n---\n\nSource 2 | Notes | document 1\nDNA replicates."
	labels := HarvestSourceLabels(context)
	require.Equal(t, []string{"Source 1 | Lecture 3 | page 2", "Source 2 | Notes | document 1"}, labels)

	raw := `{"answer":"Cells divide.","citations":[
		{"sourceLabel":"source:  SOURCE 1 | lecture 3 |  page 2","rationale":"states it"},
		{"sourceLabel":"Source 1","rationale":"states it"},
		{"sourceLabel":"source 2","rationale":"background"},
		{"sourceLabel":"Wikipedia","rationale":"general"}
	]}`
	a, err := ParseChatAnswer(raw, labels)
	require.NoError(t, err)
	assert.Equal(t, []Citation{
		{SourceLabel: "Source 1 | Lecture 3 | page 2", Rationale: "states it"},
		{SourceLabel: "Source 1", Rationale: "states it"},
		{SourceLabel: "source 2", Rationale: "background"},
		{SourceLabel: "Wikipedia", Rationale: "general"},
	}, a.Citations)
}

func TestNormalizeCitations(t *testing.T) {
	known := []string{"Source 1 | Lecture 3 | page 4", "Source 2 | Notes | document 1"}

	tests := []struct {
		name string
		in   []Citation
		want []Citation
	}{
		{
			name: "case whitespace and source prefix are ignored",
			in:   []Citation{{SourceLabel: "Source:   source 1 |  LECTURE 3 | page 4 ", Rationale: "r"}},
			want: []Citation{{SourceLabel: "Source 1 | Lecture 3 | page 4", Rationale: "r"}},
		},
		{
			name: "short labels pass through verbatim",
			in:   []Citation{{SourceLabel: "1", Rationale: "r"}, {SourceLabel: "Source 1", Rationale: "r2"}},
			want: []Citation{{SourceLabel: "1", Rationale: "r"}, {SourceLabel: "Source 1", Rationale: "r2"}},
		},
		{
			name: "unmatched label passes through verbatim",
			in:   []Citation{{SourceLabel: "Campbell Biology, ch. 7", Rationale: "background"}},
			want: []Citation{{SourceLabel: "Campbell Biology, ch. 7", Rationale: "background"}},
		},
		{
			name: "duplicates after normalization are dropped",
			in: []Citation{
				{SourceLabel: "source 2 | notes | document 1", Rationale: "r"},
				{SourceLabel: "Source 2 | Notes | document 1", Rationale: "r"},
				{SourceLabel: "Source 2 | Notes | document 1", Rationale: "other"},
			},
			want: []Citation{
				{SourceLabel: "Source 2 | Notes | document 1", Rationale: "r"},
				{SourceLabel: "Source 2 | Notes | document 1", Rationale: "other"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCitations(tt.in, known))
		})
	}
}

func TestParseChatAnswerRequiresAnswer(t *testing.T) {
	_, err := ParseChatAnswer(`{"answer":"","citations":[{"sourceLabel":"","rationale":"x"}]}`, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}
