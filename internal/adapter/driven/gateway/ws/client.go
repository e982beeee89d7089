package ws

import "github.com/Wyydra/yacall/internal/core/domain"

type Client interface {
	Handle() domain.Handle
	Send(signal domain.Signal) error
	Close() error
}
