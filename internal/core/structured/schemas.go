package structured

import (
	"fmt"
	"strings"
)

// Blueprint is the course outline produced from a class's materials.
type Blueprint struct {
	Summary string           `json:"summary"`
	Topics  []BlueprintTopic `json:"topics"`
}

type BlueprintTopic struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Prerequisites []string `json:"prerequisites"`
	Objectives    []string `json:"objectives"`
}

// Quiz is a set of four-choice questions.
type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// QuizChoiceCount is the exact number of choices every question must offer.
const QuizChoiceCount = 4

type Flashcards struct {
	Cards []Flashcard `json:"cards"`
}

type Flashcard struct {
	Front string  `json:"front"`
	Back  string  `json:"back"`
	Hint  *string `json:"hint,omitempty"`
}

// ChatAnswer is a grounded answer with the sources it relied on.
type ChatAnswer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

type Citation struct {
	SourceLabel string `json:"sourceLabel"`
	Rationale   string `json:"rationale"`
}

// ValidateBlueprint checks required fields, unique topic keys and prerequisite references.
func ValidateBlueprint(b Blueprint) error {
	var p problems
	if blank(b.Summary) {
		p.add("summary is required")
	}
	if len(b.Topics) == 0 {
		p.add("topics must not be empty")
	}

	keys := make(map[string]int, len(b.Topics))
	for i, t := range b.Topics {
		n := i + 1
		if blank(t.Key) {
			p.add(fmt.Sprintf("topics[%d].key is required", n))
		} else {
			k := strings.ToLower(strings.TrimSpace(t.Key))
			if first, dup := keys[k]; dup {
				p.add(fmt.Sprintf("topics[%d].key %q duplicates topics[%d]", n, t.Key, first))
			} else {
				keys[k] = n
			}
		}
		if blank(t.Title) {
			p.add(fmt.Sprintf("topics[%d].title is required", n))
		}
		for j, o := range t.Objectives {
			if blank(o) {
				p.add(fmt.Sprintf("topics[%d].objectives[%d] is empty", n, j+1))
			}
		}
	}

	for i, t := range b.Topics {
		self := strings.ToLower(strings.TrimSpace(t.Key))
		for _, pre := range t.Prerequisites {
			k := strings.ToLower(strings.TrimSpace(pre))
			if _, ok := keys[k]; !ok || k == self {
				p.add(fmt.Sprintf("topics[%d].prerequisites references unknown topic %q", i+1, pre))
			}
		}
	}
	return p.err()
}

// ValidateQuiz requires exactly four unique choices per question and an answer
// byte-identical to one of them.
func ValidateQuiz(q Quiz) error {
	var p problems
	if len(q.Questions) == 0 {
		p.add("questions must not be empty")
	}
	for i, item := range q.Questions {
		n := i + 1
		if blank(item.Question) {
			p.add(fmt.Sprintf("questions[%d].question is required", n))
		}
		if len(item.Choices) != QuizChoiceCount {
			p.add(fmt.Sprintf("questions[%d] must have exactly %d choices, got %d", n, QuizChoiceCount, len(item.Choices)))
		}
		seen := make(map[string]struct{}, len(item.Choices))
		matched := false
		for j, c := range item.Choices {
			if blank(c) {
				p.add(fmt.Sprintf("questions[%d].choices[%d] is empty", n, j+1))
			}
			if _, dup := seen[c]; dup {
				p.add(fmt.Sprintf("questions[%d] has duplicate choice %q", n, c))
			}
			seen[c] = struct{}{}
			if c == item.Answer {
				matched = true
			}
		}
		if blank(item.Answer) {
			p.add(fmt.Sprintf("questions[%d].answer is required", n))
		} else if !matched {
			p.add(fmt.Sprintf("questions[%d].answer %q is not one of its choices", n, item.Answer))
		}
	}
	return p.err()
}

// ValidateFlashcards requires front and back on every card and unique fronts.
func ValidateFlashcards(f Flashcards) error {
	var p problems
	if len(f.Cards) == 0 {
		p.add("cards must not be empty")
	}
	fronts := make(map[string]int, len(f.Cards))
	for i, c := range f.Cards {
		n := i + 1
		if blank(c.Front) {
			p.add(fmt.Sprintf("cards[%d].front is required", n))
		} else {
			k := normalizeText(c.Front)
			if first, dup := fronts[k]; dup {
				p.add(fmt.Sprintf("cards[%d].front duplicates cards[%d]", n, first))
			} else {
				fronts[k] = n
			}
		}
		if blank(c.Back) {
			p.add(fmt.Sprintf("cards[%d].back is required", n))
		}
	}
	return p.err()
}

// ValidateChatAnswer requires an answer and a label on every citation.
func ValidateChatAnswer(a ChatAnswer) error {
	var p problems
	if blank(a.Answer) {
		p.add("answer is required")
	}
	for i, c := range a.Citations {
		if blank(c.SourceLabel) {
			p.add(fmt.Sprintf("citations[%d].sourceLabel is required", i+1))
		}
	}
	return p.err()
}

// ParseBlueprint extracts and validates a blueprint from raw model output.
func ParseBlueprint(raw string) (*Blueprint, error) {
	return parse(raw, ValidateBlueprint)
}

func ParseQuiz(raw string) (*Quiz, error) {
	return parse(raw, ValidateQuiz)
}

func ParseFlashcards(raw string) (*Flashcards, error) {
	return parse(raw, ValidateFlashcards)
}

// ParseChatAnswer extracts and validates a chat answer, then maps its citation labels
// onto knownLabels.
func ParseChatAnswer(raw string, knownLabels []string) (*ChatAnswer, error) {
	a, err := parse(raw, ValidateChatAnswer)
	if err != nil {
		return nil, err
	}
	a.Citations = NormalizeCitations(a.Citations, knownLabels)
	return a, nil
}

func parse[T any](raw string, validate func(T) error) (*T, error) {
	v, err := Decode[T](raw)
	if err != nil {
		return nil, err
	}
	if err := validate(v); err != nil {
		return nil, err
	}
	return &v, nil
}
