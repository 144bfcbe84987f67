package environment

import (
	"context"
	"log"
	"net"
	"sync"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LincolnVS/tlc-baselines/api"
	"github.com/LincolnVS/tlc-baselines/metric"
)

// Server exposes an Env over gRPC. Calls are serialised: the world is
// advanced by one caller at a time.
type Server struct {
	api.UnimplementedEnvironmentServer

	mu      sync.Mutex
	env     *Env
	logger  *log.Logger
	episode int
	ticks   int
}

// NewServer wraps env. A nil logger logs through the standard logger.
func NewServer(env *Env, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{env: env, logger: logger, episode: -1}
}

// Serve registers the service on a new grpc.Server and blocks until lis
// fails or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	api.RegisterEnvironmentServer(gs, s)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	s.logger.Printf("🚦 environment server listening on %s", lis.Addr())
	return gs.Serve(lis)
}

func (s *Server) Describe(context.Context, *api.DescribeRequest) (*api.DescribeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &api.DescribeResponse{
		Intersections: lo.Map(s.env.Slots(), func(sl Slot, _ int) api.IntersectionInfo {
			return api.IntersectionInfo{
				ID:             sl.Intersection.ID,
				Phases:         len(sl.Intersection.Phases),
				ObservationLen: sl.Observation.Len(),
			}
		}),
		MetricNames: lo.Map(s.env.Metrics(), func(m metric.Metric, _ int) string { return m.Name() }),
	}, nil
}

func (s *Server) Reset(ctx context.Context, _ *api.ResetRequest) (*api.ResetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.episode >= 0 {
		s.logger.Printf("🏁 episode %d finished after %d ticks", s.episode, s.ticks)
	}
	obs, err := s.env.Reset(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reset: %v", err)
	}
	s.episode++
	s.ticks = 0
	return &api.ResetResponse{Observations: obs, Metrics: s.metricValues()}, nil
}

func (s *Server) Step(ctx context.Context, req *api.StepRequest) (*api.StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.episode < 0 {
		return nil, status.Error(codes.FailedPrecondition, "step before reset")
	}
	if len(req.Actions) != len(s.env.Slots()) {
		return nil, status.Errorf(codes.InvalidArgument, "got %d actions for %d intersections", len(req.Actions), len(s.env.Slots()))
	}
	res, err := s.env.Step(ctx, req.Actions)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "step: %v", err)
	}
	s.ticks++
	return &api.StepResponse{
		Observations: res.Observations,
		Rewards:      res.Rewards,
		Dones:        res.Dones,
		Info:         res.Info,
		Metrics:      s.metricValues(),
	}, nil
}

func (s *Server) SetSaveReplay(ctx context.Context, req *api.SaveReplayRequest) (*api.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.env.SetSaveReplay(ctx, req.Enabled); err != nil {
		return nil, status.Errorf(codes.Internal, "save replay: %v", err)
	}
	return &api.Empty{}, nil
}

func (s *Server) SetReplayFile(ctx context.Context, req *api.ReplayFileRequest) (*api.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.env.SetReplayFile(ctx, req.Name); err != nil {
		return nil, status.Errorf(codes.Internal, "replay file: %v", err)
	}
	return &api.Empty{}, nil
}

func (s *Server) Metrics(context.Context, *api.MetricsRequest) (*api.MetricsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &api.MetricsResponse{Metrics: s.metricValues()}, nil
}

func (s *Server) metricValues() []api.MetricValue {
	return lo.Map(s.env.Metrics(), func(m metric.Metric, _ int) api.MetricValue {
		return api.MetricValue{Name: m.Name(), Value: m.Eval()}
	})
}
