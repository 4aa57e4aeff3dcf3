package cmd

import (
	"context"
	"time"

	"firestige.xyz/pktcraft/internal/command"
)

// ClientInterface is the daemon API used by --remote commands.
type ClientInterface interface {
	PacketSend(ctx context.Context, document map[string]any, label string) (*command.BuildResult, error)
	FrameList(ctx context.Context) ([]command.FrameInfo, error)
	FrameDelete(ctx context.Context, id string) error
	SequenceSend(ctx context.Context, ids []string) (int, error)
	DaemonStatus(ctx context.Context) (map[string]interface{}, error)
	DaemonShutdown(ctx context.Context) error
}

// newClient is replaced in tests.
var newClient = func() ClientInterface {
	return command.NewUDSClient(globalCfg.Control.Socket, 30*time.Second)
}
