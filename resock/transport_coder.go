package resock

import (
	"context"

	"github.com/coder/websocket"

	"github.com/vovakirdan/resock-sdk/resock-sdk-go/resock/internal"
)

// coderDialer dials with github.com/coder/websocket.
type coderDialer struct {
	cfg Config
}

func (d *coderDialer) Dial(ctx context.Context, url string) (Socket, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn := internal.NewConn(ws, d.cfg.ReadTimeout, d.cfg.WriteTimeout, d.cfg.ReadLimit)
	return &frameSocket{conn: conn}, nil
}
