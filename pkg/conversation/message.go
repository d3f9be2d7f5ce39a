package conversation

import (
	"bytes"
	"encoding/json"
)

type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeParts  ContentType = "parts"
	ContentTypeObject ContentType = "object"
)

// MessageContent is one of the content shapes clients send: a bare string,
// a list of content parts, or a single object with a text field.
type MessageContent interface {
	ContentType() ContentType
	// String returns the recoverable plain text, or "" if there is none.
	String() string
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

type TextContent string

func (c TextContent) ContentType() ContentType {
	return ContentTypeText
}

func (c TextContent) String() string {
	return string(c)
}

var _ MessageContent = TextContent("")

// ContentPart is a single element of a part list. Bare string parts are
// decoded as text parts.
type ContentPart struct {
	Type string          `json:"type,omitempty"`
	Text string          `json:"text,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// HasText reports whether the part is a recognizable text part.
func (p ContentPart) HasText() bool {
	if p.Text == "" {
		return false
	}
	return p.Type == "" || p.Type == "text"
}

func (p *ContentPart) UnmarshalJSON(b []byte) error {
	p.Raw = append(json.RawMessage{}, b...)

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Type = "text"
		p.Text = s
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		// numbers, nulls, nested arrays: kept raw, never text
		return nil
	}
	if t, ok := obj["type"]; ok {
		_ = json.Unmarshal(t, &p.Type)
	}
	if t, ok := obj["text"]; ok {
		_ = json.Unmarshal(t, &p.Text)
	}
	return nil
}

type PartsContent []ContentPart

func (c PartsContent) ContentType() ContentType {
	return ContentTypeParts
}

// String returns the text of the first part carrying text.
func (c PartsContent) String() string {
	for _, p := range c {
		if p.HasText() {
			return p.Text
		}
	}
	return ""
}

var _ MessageContent = PartsContent(nil)

type ObjectContent struct {
	Text string
	Raw  json.RawMessage
}

func (c *ObjectContent) ContentType() ContentType {
	return ContentTypeObject
}

func (c *ObjectContent) String() string {
	return c.Text
}

var _ MessageContent = (*ObjectContent)(nil)

// Message is a conversation message as sent by the client. Unknown fields
// are ignored and content never fails to decode.
type Message struct {
	ID      string         `json:"id,omitempty"`
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

// Text returns the message's recoverable plain text.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.String()
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: TextContent(text)}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: TextContent(text)}
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Role = raw.Role
	m.Content = decodeContent(raw.Content)
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	var content interface{}
	switch c := m.Content.(type) {
	case nil:
		content = ""
	case TextContent:
		content = string(c)
	case PartsContent:
		parts := make([]json.RawMessage, 0, len(c))
		for _, p := range c {
			if len(p.Raw) > 0 {
				parts = append(parts, p.Raw)
				continue
			}
			b, err := json.Marshal(struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{Type: p.Type, Text: p.Text})
			if err != nil {
				return nil, err
			}
			parts = append(parts, b)
		}
		content = parts
	case *ObjectContent:
		if len(c.Raw) > 0 {
			content = c.Raw
		} else {
			content = map[string]string{"text": c.Text}
		}
	default:
		content = c.String()
	}

	return json.Marshal(struct {
		ID      string      `json:"id,omitempty"`
		Role    Role        `json:"role"`
		Content interface{} `json:"content"`
	}{ID: m.ID, Role: m.Role, Content: content})
}

func decodeContent(b json.RawMessage) MessageContent {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return TextContent("")
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return TextContent("")
		}
		return TextContent(s)
	case '[':
		var parts PartsContent
		if err := json.Unmarshal(b, &parts); err != nil {
			return PartsContent{}
		}
		return parts
	case '{':
		ret := &ObjectContent{Raw: append(json.RawMessage{}, b...)}
		var obj struct {
			Text interface{} `json:"text"`
		}
		if err := json.Unmarshal(b, &obj); err == nil {
			if s, ok := obj.Text.(string); ok {
				ret.Text = s
			}
		}
		return ret
	default:
		return TextContent("")
	}
}

// Conversation is the ordered message history of one request.
type Conversation []Message
