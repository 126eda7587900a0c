package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"stepweave/internal/models"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Turn is one prior exchange replayed to the model for conversational context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Snippet is a knowledge-base excerpt retrieved for the current instruction.
type Snippet struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// RefineRequest carries everything the model needs to rework a workflow document.
type RefineRequest struct {
	WorkflowName string
	Document     string
	Instruction  string
	History      []Turn
	Snippets     []Snippet
}

// RefineResult is the parsed model response: the full updated document and a
// plain-text summary of the changes.
type RefineResult struct {
	Document string
	Summary  string
}

// Refiner produces a refined workflow document from a user instruction.
type Refiner interface {
	Refine(ctx context.Context, req *RefineRequest) (*RefineResult, error)
}

// StreamingRefiner additionally reports assistant text as it arrives.
type StreamingRefiner interface {
	Refiner
	RefineStream(ctx context.Context, req *RefineRequest, onDelta func(string)) (*RefineResult, error)
}

// RefineClient implements Refiner over any eino chat model. Provider-specific
// construction lives in providers.go.
type RefineClient struct {
	chatModel model.BaseChatModel
}

func NewRefineClient(chatModel model.BaseChatModel) *RefineClient {
	return &RefineClient{chatModel: chatModel}
}

// Refine runs a single blocking completion and parses the response.
func (c *RefineClient) Refine(ctx context.Context, req *RefineRequest) (*RefineResult, error) {
	messages, err := buildRefineMessages(req)
	if err != nil {
		return nil, err
	}

	out, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, classifyModelError(ctx, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, models.NewRefineError(models.FailureParseError, "model returned no content")
	}
	return parseRefineResponse(out.Content)
}

// RefineStream runs a streaming completion, forwarding every assistant chunk
// to onDelta before parsing the accumulated response.
func (c *RefineClient) RefineStream(ctx context.Context, req *RefineRequest, onDelta func(string)) (*RefineResult, error) {
	messages, err := buildRefineMessages(req)
	if err != nil {
		return nil, err
	}

	reader, err := c.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, classifyModelError(ctx, err)
	}
	if reader == nil {
		return nil, fmt.Errorf("chat model returned nil stream reader")
	}
	defer reader.Close()

	var full strings.Builder
	for {
		msg, recvErr := reader.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			return nil, classifyModelError(ctx, recvErr)
		}
		if msg == nil || len(msg.Content) == 0 {
			continue
		}
		full.WriteString(msg.Content)
		if onDelta != nil {
			onDelta(msg.Content)
		}
	}

	if strings.TrimSpace(full.String()) == "" {
		return nil, models.NewRefineError(models.FailureParseError, "model returned no content")
	}
	return parseRefineResponse(full.String())
}

func buildRefineMessages(req *RefineRequest) ([]*schema.Message, error) {
	if req == nil {
		return nil, fmt.Errorf("refine request is required")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, fmt.Errorf("instruction is required")
	}

	system, err := loadPrompt("refine_workflow_system.txt")
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(req.History)+2)
	messages = append(messages, schema.SystemMessage(system))
	for _, turn := range req.History {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		if turn.Role == string(schema.Assistant) {
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		} else {
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	messages = append(messages, schema.UserMessage(renderUserMessage(req)))
	return messages, nil
}

func renderUserMessage(req *RefineRequest) string {
	var b strings.Builder
	name := strings.TrimSpace(req.WorkflowName)
	if name == "" {
		name = "untitled"
	}
	fmt.Fprintf(&b, "Current workflow document for %q:\n\n```json\n%s\n```\n\n", name, strings.TrimSpace(req.Document))
	if len(req.Snippets) > 0 {
		b.WriteString("Relevant knowledge base excerpts:\n\n")
		for _, snippet := range req.Snippets {
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", snippet.Path, strings.TrimSpace(snippet.Text))
		}
	}
	fmt.Fprintf(&b, "Instruction:\n%s\n", strings.TrimSpace(req.Instruction))
	return b.String()
}

func loadPrompt(name string) (string, error) {
	data, err := embeddedPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(data), nil
}

// classifyModelError tags deadline expiry as a timeout; other provider errors
// pass through uncoded and surface as UNKNOWN_ERROR downstream.
func classifyModelError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.WrapRefineError(models.FailureTimeout, err)
	}
	return err
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?[ \t]*\n(.*?)\n?```")

// parseRefineResponse extracts the updated document from the last fenced JSON
// block and treats the surrounding prose as the change summary. A response that
// is nothing but a bare JSON object is accepted too; anything else is a
// PARSE_ERROR.
func parseRefineResponse(content string) (*RefineResult, error) {
	matches := fencedBlockPattern.FindAllStringSubmatchIndex(content, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		body := strings.TrimSpace(content[m[2]:m[3]])
		if !strings.HasPrefix(body, "{") || !json.Valid([]byte(body)) {
			continue
		}
		before := strings.TrimSpace(content[:m[0]])
		after := strings.TrimSpace(content[m[1]:])
		summary := before
		if after != "" {
			if summary != "" {
				summary += "\n"
			}
			summary += after
		}
		return &RefineResult{Document: body, Summary: summary}, nil
	}

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return &RefineResult{Document: trimmed}, nil
	}
	return nil, models.NewRefineError(models.FailureParseError, "model response does not contain a workflow document")
}
