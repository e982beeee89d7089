package port

import (
	"context"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// Gateway is the transport side: one full-duplex channel per connected
// client.
type Gateway interface {
	Send(ctx context.Context, handle domain.Handle, signal domain.Signal) error
	Broadcast(ctx context.Context, signal domain.Signal) error
}
