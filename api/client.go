package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LincolnVS/tlc-baselines/training"
)

// Client drives a remote environment. It implements training.SimulationClock
// and caches the metric values reported with every Reset and Step.
type Client struct {
	conn *grpc.ClientConn

	mu      sync.RWMutex
	metrics map[string]float64
}

var _ training.SimulationClock = (*Client)(nil)

// Dial connects to the environment served at target. Extra options are
// applied after the defaults (plaintext transport, msgpack codec).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, metrics: map[string]float64{}}, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) Describe(ctx context.Context) (*DescribeResponse, error) {
	out := new(DescribeResponse)
	if err := c.invoke(ctx, "Describe", &DescribeRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Reset(ctx context.Context) ([][]float64, error) {
	out := new(ResetResponse)
	if err := c.invoke(ctx, "Reset", &ResetRequest{}, out); err != nil {
		return nil, err
	}
	c.cache(out.Metrics)
	return out.Observations, nil
}

func (c *Client) Step(ctx context.Context, actions []int) (training.StepResult, error) {
	out := new(StepResponse)
	if err := c.invoke(ctx, "Step", &StepRequest{Actions: actions}, out); err != nil {
		return training.StepResult{}, err
	}
	c.cache(out.Metrics)
	return training.StepResult{
		Observations: out.Observations,
		Rewards:      out.Rewards,
		Dones:        out.Dones,
		Info:         out.Info,
	}, nil
}

func (c *Client) SetSaveReplay(ctx context.Context, enabled bool) error {
	return c.invoke(ctx, "SetSaveReplay", &SaveReplayRequest{Enabled: enabled}, new(Empty))
}

func (c *Client) SetReplayFile(ctx context.Context, name string) error {
	return c.invoke(ctx, "SetReplayFile", &ReplayFileRequest{Name: name}, new(Empty))
}

// Metrics fetches the current metric values and refreshes the cache.
func (c *Client) Metrics(ctx context.Context) ([]MetricValue, error) {
	out := new(MetricsResponse)
	if err := c.invoke(ctx, "Metrics", &MetricsRequest{}, out); err != nil {
		return nil, err
	}
	c.cache(out.Metrics)
	return out.Metrics, nil
}

func (c *Client) cache(values []MetricValue) {
	if len(values) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		c.metrics[v.Name] = v.Value
	}
}

// TrainingMetrics exposes the cached remote metrics named in names.
func (c *Client) TrainingMetrics(names []string) []training.Metric {
	return lo.Map(names, func(name string, _ int) training.Metric {
		return remoteMetric{client: c, name: name}
	})
}

func (c *Client) Close() error { return c.conn.Close() }

type remoteMetric struct {
	client *Client
	name   string
}

func (m remoteMetric) Name() string { return m.name }

func (m remoteMetric) Eval() float64 {
	m.client.mu.RLock()
	defer m.client.mu.RUnlock()
	return m.client.metrics[m.name]
}
