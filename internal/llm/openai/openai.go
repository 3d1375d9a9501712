package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"live-trader/internal/interfaces"
	"live-trader/internal/trace"
	"live-trader/internal/types"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	decisionSchema = `{"action":"BUY|SELL|HOLD","symbol":"ticker or empty","qty":0,"reason":"short","confidence":0.0}`
	defaultSystem  = "You manage a stock portfolio once per trading hour. Decide at most one order."
)

var ErrMissingAPIKey = errors.New("openai: api key missing")

type Config struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	System      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIDecider asks an OpenAI-compatible chat endpoint for one decision per
// cycle. Repeated endpoint failures open a circuit breaker so later cycles
// fail fast and degrade to a no-trade.
type OpenAIDecider struct {
	cfg    Config
	client *resty.Client
	cb     *gobreaker.CircuitBreaker
}

var _ interfaces.Decider = (*OpenAIDecider)(nil)

func NewOpenAIDecider(cfg Config) (*OpenAIDecider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.System == "" {
		cfg.System = defaultSystem
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(time.Second)

	st := gobreaker.Settings{Name: "llm-" + cfg.Name}
	st.Interval = 10 * time.Minute
	st.Timeout = 30 * time.Minute
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}

	return &OpenAIDecider{cfg: cfg, client: client, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *OpenAIDecider) Decide(ctx context.Context, in types.DecisionInput) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	state, err := json.Marshal(in)
	if err != nil {
		return types.Decision{}, fmt.Errorf("encode state: %w", err)
	}
	prompt := fmt.Sprintf("You will receive state as JSON. Respond ONLY with compact JSON matching the schema.\nSchema:%s\nState:%s", decisionSchema, state)

	body := chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: d.cfg.System},
			{Role: "user", Content: prompt},
		},
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	}

	out, err := d.cb.Execute(func() (interface{}, error) {
		var r chatResponse
		resp, err := d.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&r).
			Post("/chat/completions")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("openai http %d", resp.StatusCode())
		}
		if len(r.Choices) == 0 {
			return nil, errors.New("no choices")
		}
		return r.Choices[0].Message.Content, nil
	})
	if err != nil {
		return types.Decision{}, fmt.Errorf("llm %s: %w", d.cfg.Name, err)
	}

	return ParseDecision(out.(string)), nil
}

// ParseDecision reads the model reply. Anything unreadable becomes HOLD.
func ParseDecision(content string) types.Decision {
	out := strings.TrimSpace(content)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)

	var dres types.Decision
	if err := json.Unmarshal([]byte(out), &dres); err != nil {
		return types.Decision{Action: types.DecisionHold, Reason: "invalid_json", Confidence: 0.0}
	}

	dres.Action = strings.ToUpper(strings.TrimSpace(dres.Action))
	dres.Symbol = strings.ToUpper(strings.TrimSpace(dres.Symbol))
	switch dres.Action {
	case types.DecisionBuy, types.DecisionSell, types.DecisionHold:
	default:
		dres.Action = types.DecisionHold
	}
	if dres.Qty < 0 || math.IsNaN(dres.Qty) || math.IsInf(dres.Qty, 0) {
		dres.Qty = 0
	}
	if dres.Confidence < 0 || dres.Confidence > 1 {
		dres.Confidence = 0.0
	}
	return dres
}
