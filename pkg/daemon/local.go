package daemon

import (
	"context"
	"errors"
	"io"

	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/server"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/daemon/watcher"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/sirupsen/logrus"
)

// LocalClient implements Client by calling an in-process engine.
// Sessions live only as long as the engine does.
type LocalClient struct {
	engine *engine.Engine
	logger *logrus.Entry
}

// NewLocalClient creates a LocalClient around eng.
func NewLocalClient(eng *engine.Engine, logger *logrus.Entry) *LocalClient {
	return &LocalClient{engine: eng, logger: logger}
}

func (c *LocalClient) CreateSession(ctx context.Context) (string, error) {
	return c.engine.CreateSession(ctx)
}

func (c *LocalClient) LoadSource(ctx context.Context, token, name string, src io.Reader) (engine.LoadResult, error) {
	return c.engine.LoadSource(ctx, token, name, src)
}

func (c *LocalClient) LoadCode(ctx context.Context, token, code string) (engine.LoadResult, error) {
	return c.engine.LoadCode(ctx, token, code)
}

func (c *LocalClient) Step(ctx context.Context, token string) (models.ProgramState, error) {
	return c.engine.Step(ctx, token)
}

func (c *LocalClient) Next(ctx context.Context, token string) (models.ProgramState, error) {
	return c.engine.Next(ctx, token)
}

func (c *LocalClient) State(ctx context.Context, token string) (models.ProgramState, error) {
	return c.engine.State(token)
}

func (c *LocalClient) SendRaw(ctx context.Context, token, command, expected string) ([]mi.Record, error) {
	return c.engine.SendRaw(ctx, token, command, expected)
}

func (c *LocalClient) InspectVariable(ctx context.Context, token, name string, frame int) (models.VariableInfo, error) {
	return c.engine.InspectVariable(ctx, token, name, frame)
}

func (c *LocalClient) Output(ctx context.Context, token string) ([]string, error) {
	return c.engine.Output(token)
}

func (c *LocalClient) Memory(ctx context.Context, token string) (models.HeapSnapshot, error) {
	return c.engine.Memory(token)
}

func (c *LocalClient) CloseSession(ctx context.Context, token string) error {
	return c.engine.CloseSession(token)
}

func (c *LocalClient) Sessions(ctx context.Context) ([]store.SessionSummary, error) {
	return c.engine.Sessions(), nil
}

// StreamUpdates relays the engine's store updates until ctx is done.
func (c *LocalClient) StreamUpdates(ctx context.Context) (<-chan store.Update, error) {
	st := c.engine.Store()
	sub := st.Subscribe()
	out := make(chan store.Update, 10)

	go func() {
		defer close(out)
		defer st.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// FollowOutput tails the session's output file directly.
func (c *LocalClient) FollowOutput(ctx context.Context, token string) (<-chan string, error) {
	sess, err := c.engine.Store().Get(token)
	if err != nil {
		return nil, err
	}
	return watcher.FollowOutput(ctx, sess.Dir.Output(), c.logger.WithField("session", token))
}

// GetConfig returns an error for LocalClient since config is only available via daemon.
func (c *LocalClient) GetConfig(ctx context.Context) (*server.RunningConfig, error) {
	return nil, errors.New("config not available in local mode; start the daemon to view running config")
}

// IsRunning returns false since this is the in-process client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close shuts down every session the engine still holds.
func (c *LocalClient) Close() error {
	c.engine.Store().Close()
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
