package resock

import (
	"context"

	"github.com/vovakirdan/resock-sdk/resock-sdk-go/resock/internal"
)

// gorillaDialer dials with github.com/gorilla/websocket.
type gorillaDialer struct {
	cfg Config
}

func (d *gorillaDialer) Dial(ctx context.Context, url string) (Socket, error) {
	ws, err := internal.DialGorilla(ctx, url, d.cfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	conn := internal.NewGorillaConn(ws, d.cfg.ReadTimeout, d.cfg.WriteTimeout, d.cfg.ReadLimit)
	return &frameSocket{conn: conn}, nil
}
