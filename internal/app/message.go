package app

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a wire-level role string against the closed set of
// roles the model accepts. External input is never trusted implicitly.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	case RoleSystem:
		return RoleSystem, true
	default:
		return Role(""), false
	}
}

type AttachmentType string

const (
	AttachmentCode  AttachmentType = "code"
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

func ParseAttachmentType(value string) (AttachmentType, bool) {
	switch AttachmentType(strings.ToLower(strings.TrimSpace(value))) {
	case AttachmentCode:
		return AttachmentCode, true
	case AttachmentImage:
		return AttachmentImage, true
	case AttachmentFile:
		return AttachmentFile, true
	default:
		return AttachmentType(""), false
	}
}

// Attachment is client-only material carried alongside a message. Content is
// raw text for code and base64 for images/files; the model carries the
// payload opaquely and never decodes it.
type Attachment struct {
	Type    AttachmentType `json:"type"`
	Name    string         `json:"name"`
	Content string         `json:"content"`
}

func NewAttachment(typ string, name string, content string) (Attachment, error) {
	t, ok := ParseAttachmentType(typ)
	if !ok {
		return Attachment{}, &ValidationError{Field: "attachment.type", Reason: "must be one of code|image|file, got " + strings.TrimSpace(typ)}
	}
	if strings.TrimSpace(name) == "" {
		return Attachment{}, &ValidationError{Field: "attachment.name", Reason: "must not be empty"}
	}
	return Attachment{Type: t, Name: name, Content: content}, nil
}

// Message is one turn of a conversation. ID and Attachments are client-only:
// ID is set for locally created messages so streaming updates and optimistic
// edits can be reconciled, and is absent on messages received fully formed
// from a backend.
type Message struct {
	ID          string       `json:"id,omitempty"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func NewMessage(role string, content string, timestamp time.Time) (Message, error) {
	r, ok := ParseRole(role)
	if !ok {
		return Message{}, &ValidationError{Field: "message.role", Reason: "must be one of user|assistant|system, got " + strings.TrimSpace(role)}
	}
	return Message{Role: r, Content: content, Timestamp: timestamp}, nil
}

// Attach adds an attachment to the message. Role and timestamp are fixed at
// construction and never change afterwards.
func (m *Message) Attach(a Attachment) {
	m.Attachments = append(m.Attachments, a)
}

// Equals reports whether two messages are the same turn for UI
// reconciliation: by ID when both carry one, else structurally on
// role, content and timestamp.
func (m Message) Equals(other Message) bool {
	if m.ID != "" && other.ID != "" {
		return m.ID == other.ID
	}
	return m.Role == other.Role && m.Content == other.Content && m.Timestamp.Equal(other.Timestamp)
}
