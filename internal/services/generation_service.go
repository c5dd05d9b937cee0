package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/core/llm"
	"github.com/markdave123-py/Coursewise/internal/core/retrieval"
	"github.com/markdave123-py/Coursewise/internal/core/structured"
)

// ErrInvalidRequest marks caller input problems.
var ErrInvalidRequest = errors.New("invalid request")

const noGrounding = "No course material matched this request."

const (
	defaultQuizQuestions = 5
	defaultFlashcards    = 10
	maxItems             = 30
)

// Retriever builds prompt context for a class.
type Retriever interface {
	Retrieve(ctx context.Context, classID, query string) (*retrieval.Result, error)
}

// Generated is a validated generation result and the call that produced it.
type Generated[T any] struct {
	Result   T        `json:"result"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Sources  []string `json:"sources"`
}

type BlueprintRequest struct {
	ClassID string `json:"-"`
	Focus   string `json:"focus"`
}

type QuizRequest struct {
	ClassID string `json:"-"`
	Topic   string `json:"topic"`
	Count   int    `json:"count"`
	Scope   string `json:"scope"`
}

type FlashcardsRequest struct {
	ClassID string `json:"-"`
	Topic   string `json:"topic"`
	Count   int    `json:"count"`
	Scope   string `json:"scope"`
}

type ChatRequest struct {
	ClassID  string `json:"-"`
	Question string `json:"question"`
	Scope    string `json:"scope"`
}

// GenerationService runs the retrieval-grounded generation use-cases.
type GenerationService struct {
	retriever Retriever
	generator core.TextGenerator
	logger    *slog.Logger
}

func NewGenerationService(retriever Retriever, generator core.TextGenerator, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{retriever: retriever, generator: generator, logger: logger}
}

func (s *GenerationService) Blueprint(ctx context.Context, req BlueprintRequest) (*Generated[structured.Blueprint], error) {
	query := strings.TrimSpace(req.Focus)
	if query == "" {
		query = "course overview, main topics, learning objectives"
	}
	system := `You design course blueprints from course material.
Respond with exactly one JSON object and nothing else:
{"summary": string, "topics": [{"key": string, "title": string, "description": string, "prerequisites": [topic keys], "objectives": [string]}]}
Topic keys must be unique. Prerequisites may only reference keys of other topics in the same blueprint.`
	build := func(material string) string {
		return fmt.Sprintf("Course material:\n%s\n\nFocus: %s", material, query)
	}
	return run(ctx, s, "blueprint", req.ClassID, query, system, build, func(raw string, _ []string) (*structured.Blueprint, error) {
		return structured.ParseBlueprint(raw)
	})
}

func (s *GenerationService) Quiz(ctx context.Context, req QuizRequest) (*Generated[structured.Quiz], error) {
	topic, err := required("topic", req.Topic)
	if err != nil {
		return nil, err
	}
	count := clampCount(req.Count, defaultQuizQuestions)
	system := fmt.Sprintf(`You write multiple-choice quizzes grounded in course material.
Respond with exactly one JSON object and nothing else:
{"questions": [{"question": string, "choices": [string, string, string, string], "answer": string, "explanation": string}]}
Every question has exactly %d distinct choices and its answer is copied verbatim from its choices.`, structured.QuizChoiceCount)
	build := func(material string) string {
		return fmt.Sprintf("%sCourse material:\n%s\n\nWrite %d questions about: %s", scope(req.Scope), material, count, topic)
	}
	return run(ctx, s, "quiz", req.ClassID, topic, system, build, func(raw string, _ []string) (*structured.Quiz, error) {
		return structured.ParseQuiz(raw)
	})
}

func (s *GenerationService) Flashcards(ctx context.Context, req FlashcardsRequest) (*Generated[structured.Flashcards], error) {
	topic, err := required("topic", req.Topic)
	if err != nil {
		return nil, err
	}
	count := clampCount(req.Count, defaultFlashcards)
	system := `You write study flashcards grounded in course material.
Respond with exactly one JSON object and nothing else:
{"cards": [{"front": string, "back": string, "hint": string (optional)}]}
Card fronts must all be different.`
	build := func(material string) string {
		return fmt.Sprintf("%sCourse material:\n%s\n\nWrite %d flashcards about: %s", scope(req.Scope), material, count, topic)
	}
	return run(ctx, s, "flashcards", req.ClassID, topic, system, build, func(raw string, _ []string) (*structured.Flashcards, error) {
		return structured.ParseFlashcards(raw)
	})
}

// Chat answers a question and maps the model's citations onto the source headers it
// was actually shown.
func (s *GenerationService) Chat(ctx context.Context, req ChatRequest) (*Generated[structured.ChatAnswer], error) {
	question, err := required("question", req.Question)
	if err != nil {
		return nil, err
	}
	system := `You are a course assistant. Answer only from the provided course material and say so when it does not cover the question.
Respond with exactly one JSON object and nothing else:
{"answer": string, "citations": [{"sourceLabel": string, "rationale": string}]}
Each sourceLabel is the header line of a source you used, for example "Source 2 | Lecture 3 | page 4".`
	build := func(material string) string {
		return fmt.Sprintf("%sCourse material:\n%s\n\nQuestion: %s", scope(req.Scope), material, question)
	}
	return run(ctx, s, "chat", req.ClassID, question, system, build, func(raw string, contextText []string) (*structured.ChatAnswer, error) {
		labels := structured.HarvestSourceLabels(append([]string{req.Scope}, contextText...)...)
		return structured.ParseChatAnswer(raw, labels)
	})
}

func run[T any](
	ctx context.Context,
	s *GenerationService,
	useCase, classID, query, system string,
	build func(material string) string,
	parse func(raw string, contexts []string) (*T, error),
) (*Generated[T], error) {
	if strings.TrimSpace(classID) == "" {
		return nil, fmt.Errorf("%w: class id is required", ErrInvalidRequest)
	}
	log := s.logger.With("use_case", useCase, "class_id", classID)

	res, err := s.retriever.Retrieve(ctx, classID, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	contextText := res.Context
	if contextText == "" {
		log.Info("no grounding context available")
		contextText = noGrounding
	}

	out, err := s.generator.GenerateText(ctx, llm.GenerateRequest{
		System: system,
		Prompt: build(contextText),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", useCase, err)
	}

	parsed, err := parse(out.Content, []string{res.Context})
	if err != nil {
		log.Warn("model output rejected", "provider", out.Provider, "model", out.Model, "error", err)
		return nil, err
	}

	sources := structured.HarvestSourceLabels(res.Context)
	if sources == nil {
		sources = []string{}
	}
	log.Info("generation finished", "provider", out.Provider, "model", out.Model,
		"sources", len(sources), "duration_ms", out.Latency.Milliseconds())
	return &Generated[T]{
		Result:   *parsed,
		Provider: string(out.Provider),
		Model:    out.Model,
		Sources:  sources,
	}, nil
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
	}
	return v, nil
}

func clampCount(n, def int) int {
	if n <= 0 {
		return def
	}
	return min(n, maxItems)
}

func scope(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "Scope:\n" + s + "\n\n"
}
