// Package api defines the gRPC service through which a remote process can
// drive a traffic signal control environment. Messages travel as msgpack.
package api

// Empty is the request or response of calls without payload.
type Empty struct{}

type DescribeRequest struct{}

// IntersectionInfo describes one agent slot of the environment.
type IntersectionInfo struct {
	ID             string `msgpack:"id"`
	Phases         int    `msgpack:"phases"`
	ObservationLen int    `msgpack:"observation_len"`
}

type DescribeResponse struct {
	Intersections []IntersectionInfo `msgpack:"intersections"`
	MetricNames   []string           `msgpack:"metric_names"`
}

type ResetRequest struct{}

type ResetResponse struct {
	Observations [][]float64   `msgpack:"observations"`
	Metrics      []MetricValue `msgpack:"metrics"`
}

type StepRequest struct {
	Actions []int `msgpack:"actions"`
}

type StepResponse struct {
	Observations [][]float64        `msgpack:"observations"`
	Rewards      []float64          `msgpack:"rewards"`
	Dones        []bool             `msgpack:"dones"`
	Info         map[string]float64 `msgpack:"info"`
	// Metrics carries the metric values after the tick.
	Metrics []MetricValue `msgpack:"metrics"`
}

type SaveReplayRequest struct {
	Enabled bool `msgpack:"enabled"`
}

type ReplayFileRequest struct {
	Name string `msgpack:"name"`
}

type MetricsRequest struct{}

type MetricValue struct {
	Name  string  `msgpack:"name"`
	Value float64 `msgpack:"value"`
}

type MetricsResponse struct {
	Metrics []MetricValue `msgpack:"metrics"`
}
