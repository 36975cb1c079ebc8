package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/prompts"
	"github.com/arbiter-ai/arbiter/pkg/formatting"
)

// Options bounds every collaborator call. Values come from service
// configuration.
type Options struct {
	Timeout    time.Duration
	MaxRetries uint64
}

// Client is the agent-backed Collaborator implementation. Prompt
// instructions resolve through the prompts system so active overrides apply
// without redeploys; output specifications are fixed.
type Client struct {
	agent   gaconfig.AgentConfig
	prompts prompts.System
	opts    Options
	logger  *slog.Logger
}

// NewClient creates a collaborator backed by a go-agents chat agent.
func NewClient(
	agentCfg gaconfig.AgentConfig,
	ps prompts.System,
	opts Options,
	logger *slog.Logger,
) *Client {
	return &Client{
		agent:   agentCfg,
		prompts: ps,
		opts:    opts,
		logger:  logger.With("system", "llm"),
	}
}

type classifyResponse struct {
	Category            string  `json:"category"`
	Confidence          float64 `json:"confidence"`
	Rationale           string  `json:"rationale"`
	Progression         string  `json:"progression"`
	FutureOpportunities string  `json:"future_opportunities"`
}

// Classify produces a new immutable classification estimate for the case
// description and dialogue history.
func (c *Client) Classify(ctx context.Context, description string, history []Turn) (*decision.Classification, error) {
	resp, err := invoke[classifyResponse](ctx, c, prompts.StageClassify,
		section("Case description", description),
		historySection(history),
	)
	if err != nil {
		return nil, err
	}

	category, err := decision.ParseCategory(resp.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: category %q", ErrMalformed, resp.Category)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrMalformed, resp.Confidence)
	}

	return &decision.Classification{
		Category:            category,
		Confidence:          resp.Confidence,
		Rationale:           resp.Rationale,
		Progression:         resp.Progression,
		FutureOpportunities: resp.FutureOpportunities,
		ModelName:           c.agent.Model.Name,
		ProviderName:        c.agent.Provider.Name,
		ClassifiedAt:        time.Now().UTC(),
	}, nil
}

// GenerateQuestions asks for at most budget clarification questions given
// the current estimate and dialogue history.
func (c *Client) GenerateQuestions(
	ctx context.Context,
	description string,
	current *decision.Classification,
	history []Turn,
	budget int,
	criticalOnly bool,
) ([]interview.Question, error) {
	constraint := fmt.Sprintf("Generate at most %d questions.", budget)
	if criticalOnly {
		constraint += " Only generate a question if it is critical to settling the classification."
	}

	questions, err := invoke[[]interview.Question](ctx, c, prompts.StageQuestions,
		section("Case description", description),
		jsonSection("Current classification estimate", current),
		historySection(history),
		section("Constraints", constraint),
	)
	if err != nil {
		return nil, err
	}

	if len(questions) > 3 {
		questions = questions[:3]
	}
	return questions, nil
}

// ExtractAttributes maps the declared matrix attributes to values extracted
// from the case material. Every declared attribute is present in the result;
// attributes the model omitted or left unparseable carry the unknown
// sentinel so extraction never aborts the pipeline.
func (c *Client) ExtractAttributes(
	ctx context.Context,
	description string,
	history []Turn,
	attrs []decision.Attribute,
) (map[string]any, error) {
	extracted, err := invoke[map[string]any](ctx, c, prompts.StageExtract,
		jsonSection("Declared attributes", attrs),
		section("Case description", description),
		historySection(history),
	)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(attrs))
	for _, a := range attrs {
		v, ok := extracted[a.Name]
		if !ok || v == nil {
			c.logger.Warn("attribute missing from extraction", "attribute", a.Name)
			v = decision.UnknownValue
		}
		values[a.Name] = v
	}
	return values, nil
}

// GenerateDraft asks for the bootstrap baseline matrix content.
func (c *Client) GenerateDraft(ctx context.Context) (*Draft, error) {
	draft, err := invoke[Draft](ctx, c, prompts.StageBootstrap,
		jsonSection("Transformation tiers", decision.Categories()),
	)
	if err != nil {
		return nil, err
	}

	if len(draft.Attributes) == 0 || len(draft.Rules) == 0 {
		return nil, fmt.Errorf("%w: bootstrap draft missing attributes or rules", ErrMalformed)
	}
	return &draft, nil
}

// SummarizePatterns turns clustered misclassification evidence into
// free-text pattern descriptions.
func (c *Client) SummarizePatterns(ctx context.Context, ev Evidence) ([]string, error) {
	return invoke[[]string](ctx, c, prompts.StagePatterns,
		jsonSection("Analysis evidence", ev),
	)
}

// SuggestChanges proposes matrix changes from analysis evidence. The shape
// of each suggestion is validated by the learning engine; here only the
// type discriminator is checked.
func (c *Client) SuggestChanges(ctx context.Context, ev Evidence) ([]SuggestedChange, error) {
	changes, err := invoke[[]SuggestedChange](ctx, c, prompts.StageSuggestions,
		jsonSection("Analysis evidence", ev),
	)
	if err != nil {
		return nil, err
	}

	for _, ch := range changes {
		switch ch.Type {
		case "new_rule", "modify_rule", "adjust_weight", "new_attribute":
		default:
			return nil, fmt.Errorf("%w: suggestion type %q", ErrMalformed, ch.Type)
		}
	}
	return changes, nil
}

// invoke composes the stage prompt, runs the chat call under timeout and
// bounded exponential-backoff retry, and parses the response into T.
func invoke[T any](ctx context.Context, c *Client, stage prompts.Stage, sections ...string) (T, error) {
	var result T

	prompt, err := c.compose(ctx, stage, sections...)
	if err != nil {
		return result, err
	}

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		a, err := agent.New(&c.agent)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create agent: %w", err))
		}

		resp, err := a.Chat(callCtx, prompt)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, stage, err)
		}

		parsed, err := formatting.Parse[T](resp.Text())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformed, stage, err)
		}

		result = parsed
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.opts.MaxRetries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Error("collaborator call failed", "stage", stage, "error", err)
		return result, err
	}
	return result, nil
}

func (c *Client) compose(ctx context.Context, stage prompts.Stage, sections ...string) (string, error) {
	instructions, err := c.prompts.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := prompts.Spec(stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	for _, s := range sections {
		if s == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(s)
	}

	return sb.String(), nil
}

func section(title, body string) string {
	if body == "" {
		return ""
	}
	return title + ":\n\n" + body
}

func jsonSection(title string, v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return title + ":\n\n" + string(data)
}

func historySection(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	return jsonSection("Clarification history", history)
}
