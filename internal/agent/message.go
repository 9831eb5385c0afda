// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Message is one event of an agent response stream. The concrete type is one of
// *AssistantMessage, *UserMessage, *SystemMessage or *ResultMessage.
type Message interface {
	isMessage()
}

// ContentBlock is one block of assistant or user content. The concrete type is
// one of TextBlock, ThinkingBlock, ToolUseBlock or ToolResultBlock.
type ContentBlock interface {
	isContentBlock()
}

// AssistantMessage carries model output.
type AssistantMessage struct {
	Model           string
	Content         []ContentBlock
	ParentToolUseID string
	SessionID       string
}

// UserMessage carries user turns; tool results arrive this way.
type UserMessage struct {
	Content         []ContentBlock
	ParentToolUseID string
	SessionID       string
}

// SystemMessage is a runtime notice such as session init.
type SystemMessage struct {
	Subtype string
	Data    map[string]any
}

// ResultMessage terminates a response stream.
type ResultMessage struct {
	Subtype          string
	IsError          bool
	DurationMS       int64
	DurationAPIMS    int64
	NumTurns         int
	SessionID        string
	TotalCostUSD     float64
	Usage            map[string]any
	Result           string
	StructuredOutput json.RawMessage // Absent unless an output format was requested
}

func (*AssistantMessage) isMessage() {}
func (*UserMessage) isMessage()      {}
func (*SystemMessage) isMessage()    {}
func (*ResultMessage) isMessage()    {}

// TextBlock is plain model text.
type TextBlock struct {
	Text string
}

// ThinkingBlock is model reasoning output.
type ThinkingBlock struct {
	Thinking  string
	Signature string
}

// ToolUseBlock is a tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultBlock is the outcome of a tool invocation.
type ToolResultBlock struct {
	ToolUseID string
	Content   any // string, list of content parts, or nil
	IsError   bool
}

func (TextBlock) isContentBlock()       {}
func (ThinkingBlock) isContentBlock()   {}
func (ToolUseBlock) isContentBlock()    {}
func (ToolResultBlock) isContentBlock() {}

// Text renders the tool result content as a single string.
func (b ToolResultBlock) Text() string {
	switch v := b.Content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		// Content parts: join the text ones, fall back to JSON for the rest
		var out string
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					out += text
					continue
				}
			}
			raw, _ := json.Marshal(part)
			out += string(raw)
		}
		return out
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// wireEvent is the stream-json line envelope shared by every event type.
type wireEvent struct {
	Type            string       `json:"type"`
	Subtype         string       `json:"subtype,omitempty"`
	Message         *wireMessage `json:"message,omitempty"`
	ParentToolUseID *string      `json:"parent_tool_use_id,omitempty"`
	SessionID       string       `json:"session_id,omitempty"`

	// result fields
	IsError          bool            `json:"is_error,omitempty"`
	DurationMS       int64           `json:"duration_ms,omitempty"`
	DurationAPIMS    int64           `json:"duration_api_ms,omitempty"`
	NumTurns         int             `json:"num_turns,omitempty"`
	TotalCostUSD     float64         `json:"total_cost_usd,omitempty"`
	Usage            map[string]any  `json:"usage,omitempty"`
	Result           string          `json:"result,omitempty"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
}

// wireMessage is the nested message object of assistant and user events.
type wireMessage struct {
	Role    string            `json:"role,omitempty"`
	Model   string            `json:"model,omitempty"`
	Content []wireContentItem `json:"-"`
}

// UnmarshalJSON accepts content as either a string or an array of items.
func (m *wireMessage) UnmarshalJSON(data []byte) error {
	type alias wireMessage
	var raw struct {
		alias
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	*m = wireMessage(raw.alias)

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	var items []wireContentItem
	if err := json.Unmarshal(raw.Content, &items); err == nil {
		m.Content = items
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = []wireContentItem{{Type: "text", Text: text}}
		return nil
	}

	return fmt.Errorf("content field is neither array nor string: %s", truncateString(string(raw.Content), 100))
}

type wireContentItem struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Thinking  string         `json:"thinking,omitempty"`
	Signature string         `json:"signature,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   any            `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// ParseMessage decodes one stream-json line. Event types the client does not
// model (stream_event and friends) decode to a nil Message and nil error.
func ParseMessage(line []byte) (Message, error) {
	var ev wireEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}

	switch ev.Type {
	case "assistant":
		if ev.Message == nil {
			return nil, fmt.Errorf("assistant event without message")
		}
		return &AssistantMessage{
			Model:           ev.Message.Model,
			Content:         convertContent(ev.Message.Content),
			ParentToolUseID: deref(ev.ParentToolUseID),
			SessionID:       ev.SessionID,
		}, nil

	case "user":
		if ev.Message == nil {
			return nil, fmt.Errorf("user event without message")
		}
		return &UserMessage{
			Content:         convertContent(ev.Message.Content),
			ParentToolUseID: deref(ev.ParentToolUseID),
			SessionID:       ev.SessionID,
		}, nil

	case "system":
		var data map[string]any
		if err := json.Unmarshal(line, &data); err != nil {
			return nil, err
		}
		return &SystemMessage{Subtype: ev.Subtype, Data: data}, nil

	case "result":
		return &ResultMessage{
			Subtype:          ev.Subtype,
			IsError:          ev.IsError,
			DurationMS:       ev.DurationMS,
			DurationAPIMS:    ev.DurationAPIMS,
			NumTurns:         ev.NumTurns,
			SessionID:        ev.SessionID,
			TotalCostUSD:     ev.TotalCostUSD,
			Usage:            ev.Usage,
			Result:           ev.Result,
			StructuredOutput: ev.StructuredOutput,
		}, nil

	default:
		return nil, nil
	}
}

func convertContent(items []wireContentItem) []ContentBlock {
	blocks := make([]ContentBlock, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "text":
			blocks = append(blocks, TextBlock{Text: item.Text})
		case "thinking":
			blocks = append(blocks, ThinkingBlock{Thinking: item.Thinking, Signature: item.Signature})
		case "tool_use":
			blocks = append(blocks, ToolUseBlock{ID: item.ID, Name: item.Name, Input: item.Input})
		case "tool_result":
			blocks = append(blocks, ToolResultBlock{ToolUseID: item.ToolUseID, Content: item.Content, IsError: item.IsError})
		}
	}
	return blocks
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
