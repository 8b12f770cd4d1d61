// Package generate answers questions with a hosted completion model, grounded on retrieved chunks.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/nuevorag/internal/bedrock"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// SystemPrompt restricts the model to the supplied context.
const SystemPrompt = `Eres un asistente que responde preguntas usando únicamente la información del contexto proporcionado.
Si el contexto no contiene información suficiente para responder, dilo explícitamente y no inventes datos.
Responde en el mismo idioma de la pregunta, de forma clara y concisa.`

// Defaults for the inference configuration.
const (
	DefaultMaxTokens      = 1000
	DefaultTemperature    = 0.1
	DefaultTopP           = 0.9
	DefaultContextMatches = 5
)

// Generator builds a grounded prompt and invokes a Nova-style messages model.
type Generator struct {
	invoker        bedrock.Invoker
	modelID        string
	maxTokens      int
	temperature    float64
	topP           float64
	contextMatches int
	logger         *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets a logger for generation diagnostics.
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithInference overrides max tokens, temperature and top-p.
func WithInference(maxTokens int, temperature, topP float64) GeneratorOption {
	return func(g *Generator) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		g.temperature = temperature
		if topP > 0 {
			g.topP = topP
		}
	}
}

// WithContextMatches sets how many matches are included in the prompt.
func WithContextMatches(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.contextMatches = n
		}
	}
}

// NewGenerator creates a generator for modelID.
func NewGenerator(invoker bedrock.Invoker, modelID string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		invoker:        invoker,
		modelID:        modelID,
		maxTokens:      DefaultMaxTokens,
		temperature:    DefaultTemperature,
		topP:           DefaultTopP,
		contextMatches: DefaultContextMatches,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

type textBlock struct {
	Text string `json:"text"`
}

type message struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type inferenceConfig struct {
	MaxTokens     int      `json:"maxTokens"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

type request struct {
	System          []textBlock     `json:"system"`
	Messages        []message       `json:"messages"`
	InferenceConfig inferenceConfig `json:"inferenceConfig"`
}

type response struct {
	Output struct {
		Message struct {
			Content []textBlock `json:"content"`
		} `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
}

// BuildContext renders up to limit matches as numbered documents separated by blank lines.
func BuildContext(matches []models.RetrievalMatch, limit int) string {
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[Documento %d]\n%s", i+1, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt returns the user message for question and its context.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf("Contexto:\n%s\n\nPregunta: %s\n\nRespuesta:", context, question)
}

// Generate answers question from matches. Errors wrap models.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, question string, matches []models.RetrievalMatch) (string, error) {
	body, err := json.Marshal(request{
		System: []textBlock{{Text: SystemPrompt}},
		Messages: []message{{
			Role:    "user",
			Content: []textBlock{{Text: BuildPrompt(question, BuildContext(matches, g.contextMatches))}},
		}},
		InferenceConfig: inferenceConfig{
			MaxTokens:     g.maxTokens,
			Temperature:   g.temperature,
			TopP:          g.topP,
			StopSequences: []string{},
		},
	})
	if err != nil {
		return "", generationError(fmt.Errorf("encode request: %w", err))
	}

	out, err := g.invoker.InvokeModel(ctx, g.modelID, body)
	if err != nil {
		return "", generationError(err)
	}
	answer, err := parseAnswer(out)
	if err != nil {
		g.logger.Warn("unusable model response",
			zap.String("model_id", g.modelID),
			zap.String("body", utils.Truncate(string(out), 200)),
			zap.Error(err))
		return "", generationError(err)
	}
	return answer, nil
}

func parseAnswer(out []byte) (string, error) {
	var resp response
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Output.Message.Content) == 0 {
		return "", errors.New("response has no content")
	}
	text := strings.TrimSpace(resp.Output.Message.Content[0].Text)
	if text == "" {
		return "", errors.New("response text is empty")
	}
	return text, nil
}

func generationError(err error) error {
	return models.NewStageError(models.StageGenerate, models.ErrGeneration, err)
}
