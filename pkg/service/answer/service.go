package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// client implements Service on top of a gollem LLM client
type client struct {
	llmClient gollem.LLMClient
}

// Option is a functional option for client configuration
type Option func(*client)

// New creates a new answer generation service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient: llmClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Generate produces a citation-constrained draft from the evidence set
func (c *client) Generate(ctx context.Context, input Input) (*model.DraftAnswer, error) {
	if input.Evidence == nil || input.Evidence.Empty() {
		return nil, goerr.New("generator invoked with empty evidence set",
			goerr.V("question", input.Question))
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(buildSystemPrompt()),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session",
			goerr.T(types.ErrTagTransient))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(input)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate answer draft",
			goerr.T(types.ErrTagTransient))
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("LLM returned no content", goerr.T(types.ErrTagTransient))
	}

	var llmResp llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &llmResp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response",
			goerr.T(types.ErrTagGrounding),
			goerr.V("response", resp.Texts[0]))
	}

	draft := &model.DraftAnswer{
		Sentences: make([]model.DraftSentence, 0, len(llmResp.Sentences)),
	}
	for _, s := range llmResp.Sentences {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		citations := make([]types.ChunkID, 0, len(s.Citations))
		for _, id := range s.Citations {
			citations = append(citations, types.ChunkID(id))
		}
		draft.Sentences = append(draft.Sentences, model.DraftSentence{
			Text:      text,
			Factual:   s.Factual,
			Citations: citations,
		})
	}

	if len(draft.Sentences) == 0 {
		return nil, goerr.New("LLM produced an empty draft",
			goerr.T(types.ErrTagGrounding),
			goerr.V("question", input.Question))
	}

	return draft, nil
}

// buildSystemPrompt creates the fixed system prompt constraining the
// generator to the closed evidence set.
func buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You answer questions about a venue using ONLY the provided review excerpts as evidence.\n\n")
	sb.WriteString("## Rules:\n\n")
	sb.WriteString("1. Split your answer into sentences. For each sentence, set \"factual\" to true if it makes a claim about the venue, false if it is purely connective text.\n")
	sb.WriteString("2. Every factual sentence MUST cite one or more evidence chunk IDs in \"citations\", copied exactly from the evidence list.\n")
	sb.WriteString("3. Never cite a chunk ID that is not in the evidence list. Never invent evidence.\n")
	sb.WriteString("4. If the evidence does not address part of the question, say nothing about that part rather than guessing.\n")
	sb.WriteString("5. Only claim what the cited excerpt actually says. Do not generalize beyond it.\n")
	sb.WriteString("6. Write in the same language as the question.\n")

	return sb.String()
}

// buildUserPrompt creates the per-attempt prompt with the evidence list and
// question. On retries it names the previous attempt's violations so the
// model can repair them.
func buildUserPrompt(input Input) string {
	var sb strings.Builder

	sb.WriteString("## Evidence (review excerpts):\n\n")
	for _, sc := range input.Evidence.Chunks {
		chunk := sc.Chunk
		fmt.Fprintf(&sb, "### Chunk ID: %s\n", chunk.ID)
		fmt.Fprintf(&sb, "Posted: %s\n", chunk.PostedAt.Format("2006-01-02"))
		if chunk.Rating != nil {
			fmt.Fprintf(&sb, "Rating: %.1f\n", *chunk.Rating)
		}
		fmt.Fprintf(&sb, "Text: %s\n\n", chunk.Text)
	}

	if len(input.Violations) > 0 {
		sb.WriteString("## Problems with your previous answer:\n\n")
		for _, v := range input.Violations {
			fmt.Fprintf(&sb, "- %s\n", v)
		}
		sb.WriteString("\nProduce a corrected answer that avoids these problems. Drop any claim you cannot support with the evidence above.\n\n")
	}

	sb.WriteString("## Question:\n\n")
	sb.WriteString(input.Question)
	sb.WriteString("\n")

	return sb.String()
}

// buildResponseSchema creates the JSON schema for structured output
func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "GroundedAnswer",
		Description: "Answer sentences with citations into the provided evidence set",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"sentences": {
				Type:        gollem.TypeArray,
				Description: "The answer, one sentence per entry, in reading order",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"text": {
							Type:        gollem.TypeString,
							Description: "The sentence text",
							Required:    true,
						},
						"factual": {
							Type:        gollem.TypeBoolean,
							Description: "Whether the sentence makes a claim about the venue",
							Required:    true,
						},
						"citations": {
							Type:        gollem.TypeArray,
							Description: "Evidence chunk IDs supporting the sentence; required for factual sentences",
							Items: &gollem.Parameter{
								Type: gollem.TypeString,
							},
							Required: true,
						},
					},
				},
				Required: true,
			},
		},
	}
}
