package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/DTPriya20/click-gait/internal/worker"
	"github.com/DTPriya20/click-gait/pkg/models"
)

type eventOutcome = models.EventOutcome

// trackerClient is the session API as seen from the command line.
type trackerClient interface {
	Predict(ctx context.Context, features []float64, at *time.Time) (*models.EventOutcome, error)
	Summary(ctx context.Context) (*models.Summary, error)
	Reset(ctx context.Context) (string, error)
	Close() error
}

type httpClient struct {
	base    string
	session string
	hc      *http.Client
}

func newHTTPClient(base, session string, timeout time.Duration) *httpClient {
	return &httpClient{
		base:    strings.TrimRight(base, "/"),
		session: session,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) Predict(ctx context.Context, features []float64, at *time.Time) (*models.EventOutcome, error) {
	out := &models.EventOutcome{}
	err := c.post(ctx, "/predict", worker.PredictRequest{Features: features, Timestamp: at}, out)
	return out, err
}

func (c *httpClient) Summary(ctx context.Context) (*models.Summary, error) {
	out := &models.Summary{}
	err := c.post(ctx, "/session_summary", nil, out)
	return out, err
}

func (c *httpClient) Reset(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.post(ctx, "/reset_session", nil, &out)
	return out.Message, err
}

func (c *httpClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(worker.SessionHeader, c.session)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s (HTTP %d)", path, e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

type grpcClient struct {
	conn    *grpc.ClientConn
	tracker *worker.TrackerClient
	session string
}

func newGRPCClient(addr, session string) (*grpcClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &grpcClient{conn: conn, tracker: worker.NewTrackerClient(conn), session: session}, nil
}

func (c *grpcClient) Predict(ctx context.Context, features []float64, at *time.Time) (*models.EventOutcome, error) {
	return c.tracker.Predict(ctx, &worker.TrackerPredictRequest{SessionID: c.session, Features: features, Timestamp: at})
}

func (c *grpcClient) Summary(ctx context.Context) (*models.Summary, error) {
	return c.tracker.Summary(ctx, c.session)
}

func (c *grpcClient) Reset(ctx context.Context) (string, error) {
	out, err := c.tracker.Reset(ctx, c.session)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
