package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/server"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/version"
)

// unixBaseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const unixBaseURL = "http://unix"

// requestTimeout bounds non-streaming requests. Loading compiles the
// program, so it has to outlast the compiler timeout.
const requestTimeout = 2 * time.Minute

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix
// socket or TCP.
type RemoteClient struct {
	httpClient   *http.Client
	streamClient *http.Client
	wsDialer     *websocket.Dialer
	baseURL      string
}

// NewRemoteClient creates a RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
	return &RemoteClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:     dial,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
			Timeout: requestTimeout,
		},
		streamClient: &http.Client{Transport: &http.Transport{DialContext: dial}},
		wsDialer: &websocket.Dialer{
			NetDialContext:   dial,
			HandshakeTimeout: 10 * time.Second,
		},
		baseURL: unixBaseURL,
	}, nil
}

// NewHTTPClient creates a RemoteClient for a daemon reachable at baseURL,
// e.g. "http://127.0.0.1:5000".
func NewHTTPClient(baseURL string) *RemoteClient {
	return &RemoteClient{
		httpClient:   &http.Client{Timeout: requestTimeout},
		streamClient: &http.Client{},
		wsDialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *RemoteClient) CreateSession(ctx context.Context) (string, error) {
	var resp server.StartResponse
	if err := c.get(ctx, "/start", nil, &resp); err != nil {
		return "", err
	}
	return resp.SessionToken, nil
}

// LoadSource uploads src as a multipart file.
func (c *RemoteClient) LoadSource(ctx context.Context, token, name string, src io.Reader) (engine.LoadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("sessionToken", token); err != nil {
		return engine.LoadResult{}, err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return engine.LoadResult{}, err
	}
	if _, err := io.Copy(part, src); err != nil {
		return engine.LoadResult{}, fmt.Errorf("failed to read source: %w", err)
	}
	if err := mw.Close(); err != nil {
		return engine.LoadResult{}, err
	}

	var resp server.LoadResponse
	if err := c.post(ctx, "/file", mw.FormDataContentType(), &body, &resp); err != nil {
		return engine.LoadResult{}, err
	}
	return engine.LoadResult{Records: resp.Response, State: resp.ProgramState}, nil
}

func (c *RemoteClient) LoadCode(ctx context.Context, token, code string) (engine.LoadResult, error) {
	form := url.Values{"sessionToken": {token}, "code": {code}}
	var resp server.LoadResponse
	if err := c.post(ctx, "/code", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp); err != nil {
		return engine.LoadResult{}, err
	}
	return engine.LoadResult{Records: resp.Response, State: resp.ProgramState}, nil
}

func (c *RemoteClient) Step(ctx context.Context, token string) (models.ProgramState, error) {
	return c.state(ctx, "/step", token)
}

func (c *RemoteClient) Next(ctx context.Context, token string) (models.ProgramState, error) {
	return c.state(ctx, "/next", token)
}

func (c *RemoteClient) State(ctx context.Context, token string) (models.ProgramState, error) {
	return c.state(ctx, "/state", token)
}

func (c *RemoteClient) state(ctx context.Context, path, token string) (models.ProgramState, error) {
	var resp server.StepResponse
	if err := c.get(ctx, path, url.Values{"sessionToken": {token}}, &resp); err != nil {
		return models.ProgramState{}, err
	}
	return resp.ProgramState, nil
}

func (c *RemoteClient) SendRaw(ctx context.Context, token, command, expected string) ([]mi.Record, error) {
	q := url.Values{"sessionToken": {token}, "command": {command}}
	if expected != "" {
		q.Set("expected", expected)
	}
	var recs []mi.Record
	if err := c.get(ctx, "/command", q, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *RemoteClient) InspectVariable(ctx context.Context, token, name string, frame int) (models.VariableInfo, error) {
	q := url.Values{"sessionToken": {token}, "name": {name}, "frame": {strconv.Itoa(frame)}}
	var info models.VariableInfo
	if err := c.get(ctx, "/variable", q, &info); err != nil {
		return models.VariableInfo{}, err
	}
	return info, nil
}

func (c *RemoteClient) Output(ctx context.Context, token string) ([]string, error) {
	var resp server.OutputResponse
	if err := c.get(ctx, "/output", url.Values{"sessionToken": {token}}, &resp); err != nil {
		return nil, err
	}
	return resp.Output, nil
}

func (c *RemoteClient) Memory(ctx context.Context, token string) (models.HeapSnapshot, error) {
	var resp server.MemoryResponse
	if err := c.get(ctx, "/memory", url.Values{"sessionToken": {token}}, &resp); err != nil {
		return nil, err
	}
	return resp.Memory, nil
}

func (c *RemoteClient) CloseSession(ctx context.Context, token string) error {
	form := url.Values{"sessionToken": {token}}
	var resp server.CloseResponse
	return c.post(ctx, "/close", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp)
}

func (c *RemoteClient) Sessions(ctx context.Context) ([]store.SessionSummary, error) {
	var sessions []store.SessionSummary
	if err := c.get(ctx, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetConfig returns the daemon's running configuration.
func (c *RemoteClient) GetConfig(ctx context.Context) (*server.RunningConfig, error) {
	var cfg server.RunningConfig
	if err := c.get(ctx, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamUpdates subscribes to session updates via Server-Sent Events (SSE).
// The channel is closed when the context is cancelled or the connection is lost.
func (c *RemoteClient) StreamUpdates(ctx context.Context) (<-chan store.Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan store.Update, 10)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		// Heap snapshots can exceed the default 64KB line limit.
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var update store.Update
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
				continue // Skip malformed data
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// FollowOutput streams a session's output over the daemon's websocket.
func (c *RemoteClient) FollowOutput(ctx context.Context, token string) (<-chan string, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/output/stream?" +
		url.Values{"sessionToken": {token}}.Encode()

	conn, resp, err := c.wsDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("failed to connect to output stream: %w", err)
	}

	ch := make(chan string, 64)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case ch <- string(msg):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}

func (c *RemoteClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *RemoteClient) post(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, out)
}

func (c *RemoteClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError turns a failed response back into the daemon's error.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error *errors.OrionError `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != nil && body.Error.Code != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned status %d: %s", resp.StatusCode, msg))
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
