package bridge

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeGenerate = "generate"
	TypeStatus   = "status"
	TypePing     = "ping"
)

// Outbound message types.
const (
	TypeGenerated = "generated"
	TypeError     = "error"
	TypePong      = "pong"
)

// Inbound is any message a plugin sends.
type Inbound struct {
	Type      string `json:"type"`
	Prompt    string `json:"prompt,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// GeneratedMessage carries a persisted generation result to the plugin.
type GeneratedMessage struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	CommandType string `json:"commandType"`
	CommandID   string `json:"commandId"`
}

// ErrorMessage reports a request-level failure.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// PongMessage answers an application-level ping.
type PongMessage struct {
	Type string `json:"type"`
}

// StatusMessage answers a status request.
type StatusMessage struct {
	Type         string `json:"type"`
	Connected    bool   `json:"connected"`
	UserID       string `json:"userId"`
	ProjectID    string `json:"projectId"`
	ProjectName  string `json:"projectName,omitempty"`
	ProjectType  string `json:"projectType,omitempty"`
	CommandCount int    `json:"commandCount"`
}

// NewGenerated builds a generated message.
func NewGenerated(code, commandType, commandID string) GeneratedMessage {
	return GeneratedMessage{Type: TypeGenerated, Code: code, CommandType: commandType, CommandID: commandID}
}

// NewError builds an error message.
func NewError(text string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: text}
}

// DecodeInbound parses one text frame. Unknown types are an error.
func DecodeInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("decode: %w", err)
	}
	switch msg.Type {
	case TypeGenerate, TypeStatus, TypePing:
		return msg, nil
	default:
		return Inbound{}, fmt.Errorf("%w %q", errUnknownMessage, msg.Type)
	}
}
