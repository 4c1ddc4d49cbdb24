// internal/stages/sentiment/analyze-sentiment/handler.go
package analyzesentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const (
	StageName = "analyze-sentiment"

	analyzeSystemPrompt = `You are a financial sentiment analyst. Analyze the provided news headlines for the given company.
Respond with ONLY a JSON object of the form:
{
  "company_name": "...",
  "stock_code": "...",
  "newsdesc": "one-paragraph digest of the news",
  "sentiment": "Positive" | "Neutral" | "Negative",
  "people_names": ["..."],
  "places_names": ["..."],
  "other_companies_referred": ["..."],
  "related_industries": ["..."],
  "market_implications": "...",
  "confidence_score": 0.0-1.0
}`
)

// reportSchema checks the structural shape of the model output. The
// confidence range is deliberately not part of the schema: out-of-range
// values are clamped rather than rejected.
const reportSchema = `{
	"type": "object",
	"required": ["company_name", "stock_code", "newsdesc", "sentiment", "market_implications", "confidence_score"],
	"properties": {
		"company_name":             {"type": "string"},
		"stock_code":               {"type": "string"},
		"newsdesc":                 {"type": "string", "minLength": 1},
		"sentiment":                {"type": "string", "enum": ["Positive", "Neutral", "Negative"]},
		"people_names":             {"type": "array", "items": {"type": "string"}},
		"places_names":             {"type": "array", "items": {"type": "string"}},
		"other_companies_referred": {"type": "array", "items": {"type": "string"}},
		"related_industries":       {"type": "array", "items": {"type": "string"}},
		"market_implications":      {"type": "string"},
		"confidence_score":         {"type": "number"}
	}
}`

type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

type Handler struct {
	config *Config
	llm    LLM
	schema *gojsonschema.Schema
	logger logger.Logger
}

func NewHandler(config *Config, llm LLM, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(reportSchema))
	if err != nil {
		return nil, errs.NewServiceError(StageName, err)
	}
	return &Handler{
		config: config,
		llm:    llm,
		schema: schema,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Company) == "" {
		return nil, errs.NewValidationError("company must not be empty", "")
	}
	if len(input.Articles) == 0 {
		return nil, errs.NewValidationError("at least one article is required", "")
	}

	userPrompt := h.buildPrompt(input)

	raw, err := h.llm.Complete(ctx, analyzeSystemPrompt, userPrompt, h.config.Temperature)
	if err != nil {
		return nil, err
	}

	report, err := h.parseReport(raw)
	if err != nil {
		return nil, err
	}

	if report.CompanyName == "" {
		report.CompanyName = input.Company
	}
	if report.StockCode == "" {
		report.StockCode = input.Ticker
	}

	h.logger.Info("sentiment analyzed", map[string]interface{}{
		"ticker":     input.Ticker,
		"sentiment":  report.Sentiment,
		"confidence": report.ConfidenceScore,
	})

	return &Output{
		Report:       *report,
		SystemPrompt: analyzeSystemPrompt,
		UserPrompt:   userPrompt,
	}, nil
}

func (h *Handler) buildPrompt(input *Input) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Company: %s (%s)", input.Company, input.Ticker))
	parts = append(parts, "\nRecent headlines:")
	for _, article := range input.Articles {
		line := fmt.Sprintf("- %s", article.Headline)
		if article.Source != "" {
			line += fmt.Sprintf(" (%s)", article.Source)
		}
		if article.Timestamp != "" {
			line += fmt.Sprintf(" [%s]", article.Timestamp)
		}
		parts = append(parts, line)
	}
	parts = append(parts, "\nProduce the sentiment report JSON:")
	return strings.Join(parts, "\n")
}

func (h *Handler) parseReport(raw string) (*Report, error) {
	cleaned := stripCodeFence(raw)

	if !json.Valid([]byte(cleaned)) {
		return nil, errs.NewParseError("sentiment report", "response is not valid JSON")
	}

	result, err := h.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, errs.NewParseError("sentiment report", err.Error())
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, errs.NewValidationError("sentiment report failed validation", strings.Join(problems, "; "))
	}

	var report Report
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, errs.NewParseError("sentiment report", err.Error())
	}

	if report.ConfidenceScore < 0 || report.ConfidenceScore > 1 {
		clamped := report.ConfidenceScore
		if clamped < 0 {
			clamped = 0
		} else if clamped > 1 {
			clamped = 1
		}
		h.logger.Warn("confidence score out of range, clamping", map[string]interface{}{
			"reported": report.ConfidenceScore,
			"clamped":  clamped,
		})
		report.ConfidenceScore = clamped
	}

	return &report, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
