package domain

import (
	"strings"
)

// Message is a chat line relayed between two users. It is never stored.
type Message struct {
	From UserID
	To   UserID
	Text string
}

func NewMessage(from, to UserID, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	return &Message{
		From: from,
		To:   to,
		Text: text,
	}, nil
}
