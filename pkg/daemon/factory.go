package daemon

import (
	stderrors "errors"
	"net"
	"os"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/pkg/paths"
)

// ErrNotRunning is returned by Connect when no daemon answers.
var ErrNotRunning = stderrors.New("orion daemon is not running; start it with 'orion serve'")

// SocketPath returns the socket the daemon listens on for cfg.
func SocketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Server.Socket != "" {
		return cfg.Server.Socket
	}
	return paths.SocketPath()
}

// Connect returns a RemoteClient for the running daemon. The Unix socket is
// tried first, then the configured TCP address.
func Connect(cfg *config.Config) (*RemoteClient, error) {
	socketPath := SocketPath(cfg)
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return NewRemoteClient(socketPath)
		}
	}

	if cfg != nil && cfg.Server.Listen != "" {
		conn, err := net.DialTimeout("tcp", cfg.Server.Listen, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			client := NewHTTPClient("http://" + cfg.Server.Listen)
			if client.IsRunning() {
				return client, nil
			}
		}
	}
	return nil, ErrNotRunning
}

// New returns a RemoteClient when the daemon is available, otherwise the
// result of local. This is the transparent daemon pattern: callers use the
// same API either way.
func New(cfg *config.Config, local func() (Client, error)) (Client, error) {
	if client, err := Connect(cfg); err == nil {
		return client, nil
	}
	return local()
}
