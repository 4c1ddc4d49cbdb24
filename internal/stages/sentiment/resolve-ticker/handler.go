// internal/stages/sentiment/resolve-ticker/handler.go
package resolveticker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const (
	StageName = "resolve-ticker"

	resolveSystemPrompt = `You are a financial data assistant. Given a company name, return its primary stock ticker symbol.
Respond with ONLY a JSON object of the form {"ticker": "...", "company_name": "...", "exchange": "...", "confidence": "high"|"medium"|"low"}.
If the company is not publicly traded or you do not recognize it, use "UNKNOWN" as the ticker.`
)

// tickerPattern accepts plain symbols plus class/market suffixes such
// as BRK.B or RDS-A.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,6}([.\-][A-Z0-9]{1,3})?$`)

type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

type Handler struct {
	config *Config
	llm    LLM
	logger logger.Logger
}

func NewHandler(config *Config, llm LLM, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		llm:    llm,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	company := strings.TrimSpace(input.Company)
	if company == "" {
		return nil, errs.NewValidationError("company name must not be empty", "")
	}

	userPrompt := fmt.Sprintf("Company: %s", company)

	raw, err := h.llm.Complete(ctx, resolveSystemPrompt, userPrompt, h.config.Temperature)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Ticker      string `json:"ticker"`
		CompanyName string `json:"company_name"`
		Exchange    string `json:"exchange"`
		Confidence  string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, errs.NewParseError("ticker resolution response", err.Error())
	}

	ticker := strings.ToUpper(strings.TrimSpace(parsed.Ticker))
	if ticker == "" || ticker == "UNKNOWN" {
		return nil, errs.NewNotFoundError("ticker symbol", company)
	}
	if !tickerPattern.MatchString(ticker) {
		return nil, errs.NewParseError("ticker symbol", ticker)
	}

	if parsed.CompanyName == "" {
		parsed.CompanyName = company
	}

	confidence := strings.ToLower(strings.TrimSpace(parsed.Confidence))
	switch confidence {
	case "high", "medium", "low":
	default:
		confidence = "low"
	}

	h.logger.Info("resolved ticker", map[string]interface{}{
		"company": company,
		"ticker":  ticker,
	})

	return &Output{
		Ticker:       ticker,
		CompanyName:  parsed.CompanyName,
		Exchange:     parsed.Exchange,
		Confidence:   confidence,
		SystemPrompt: resolveSystemPrompt,
		UserPrompt:   userPrompt,
	}, nil
}

// stripCodeFence removes a markdown fence the model sometimes wraps
// around JSON output.
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
