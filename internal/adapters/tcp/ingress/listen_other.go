//go:build !unix

package ingress

import (
	"context"
	"net"
)

// listen binds addr. Shared ports are not available on this platform.
func listen(ctx context.Context, addr string, _ bool) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
