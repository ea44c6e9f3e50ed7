package worker

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/DTPriya20/click-gait/internal/classifier"
	"github.com/DTPriya20/click-gait/internal/rpc"
	"github.com/DTPriya20/click-gait/internal/tracker"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// TrackerServiceName is the gRPC service exposing the session operations.
const TrackerServiceName = "gait.tracker.v1.Tracker"

// ErrRequestScopedStore is returned by RegisterGRPC when sessions live in
// HTTP cookies and cannot be reached from gRPC.
var ErrRequestScopedStore = errors.New("gRPC tracker requires a server-side session store")

// TrackerPredictRequest is the wire request of Tracker/Predict.
type TrackerPredictRequest struct {
	SessionID string     `json:"session_id"`
	Features  []float64  `json:"features"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TrackerSessionRequest names the session for Summary and Reset.
type TrackerSessionRequest struct {
	SessionID string `json:"session_id"`
}

// TrackerResetResponse is the wire response of Tracker/Reset.
type TrackerResetResponse struct {
	Message string `json:"message"`
}

// TrackerServer is the server side of the Tracker service.
type TrackerServer interface {
	Predict(ctx context.Context, in *TrackerPredictRequest) (*models.EventOutcome, error)
	Summary(ctx context.Context, in *TrackerSessionRequest) (*models.Summary, error)
	Reset(ctx context.Context, in *TrackerSessionRequest) (*TrackerResetResponse, error)
}

type trackerServer struct {
	svc *Service
}

func (t *trackerServer) Predict(ctx context.Context, in *TrackerPredictRequest) (*models.EventOutcome, error) {
	if err := checkSessionID(in.SessionID); err != nil {
		return nil, err
	}
	if len(in.Features) == 0 {
		return nil, status.Error(codes.InvalidArgument, missingFeatures)
	}
	outcome, err := t.svc.predict(ctx, in.SessionID, in.Features, in.Timestamp)
	if err != nil {
		return nil, grpcError(err)
	}
	return &outcome, nil
}

func (t *trackerServer) Summary(ctx context.Context, in *TrackerSessionRequest) (*models.Summary, error) {
	if err := checkSessionID(in.SessionID); err != nil {
		return nil, err
	}
	summary, err := t.svc.summary(ctx, in.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &summary, nil
}

func (t *trackerServer) Reset(ctx context.Context, in *TrackerSessionRequest) (*TrackerResetResponse, error) {
	if err := checkSessionID(in.SessionID); err != nil {
		return nil, err
	}
	if err := t.svc.reset(ctx, in.SessionID); err != nil {
		return nil, grpcError(err)
	}
	return &TrackerResetResponse{Message: resetMessage}, nil
}

func checkSessionID(id string) error {
	if id == "" || !validSessionID(id) {
		return status.Error(codes.InvalidArgument, "session_id is required and must be printable ASCII")
	}
	return nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, classifier.ErrDimension), errors.Is(err, tracker.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, tracker.ErrOutOfOrder):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, classifier.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// RegisterGRPC exposes the Tracker service on server.
func (s *Service) RegisterGRPC(server grpc.ServiceRegistrar) error {
	if _, ok := s.store.(requestScopedStore); ok {
		return ErrRequestScopedStore
	}
	impl := &trackerServer{svc: s}
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: TrackerServiceName,
		HandlerType: (*TrackerServer)(nil),
		Methods: []grpc.MethodDesc{
			rpc.UnaryMethod(TrackerServiceName, "Predict", impl.Predict),
			rpc.UnaryMethod(TrackerServiceName, "Summary", impl.Summary),
			rpc.UnaryMethod(TrackerServiceName, "Reset", impl.Reset),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "gait/tracker/v1/tracker.proto",
	}, impl)
	return nil
}

// TrackerClient calls the Tracker service.
type TrackerClient struct {
	conn grpc.ClientConnInterface
}

// NewTrackerClient wraps an established connection.
func NewTrackerClient(conn grpc.ClientConnInterface) *TrackerClient {
	return &TrackerClient{conn: conn}
}

// Predict records one feature vector in sessionID.
func (c *TrackerClient) Predict(ctx context.Context, in *TrackerPredictRequest) (*models.EventOutcome, error) {
	out := &models.EventOutcome{}
	if err := c.conn.Invoke(ctx, "/"+TrackerServiceName+"/Predict", in, out, rpc.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary reports the session totals.
func (c *TrackerClient) Summary(ctx context.Context, sessionID string) (*models.Summary, error) {
	out := &models.Summary{}
	if err := c.conn.Invoke(ctx, "/"+TrackerServiceName+"/Summary", &TrackerSessionRequest{SessionID: sessionID}, out, rpc.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset restarts the session.
func (c *TrackerClient) Reset(ctx context.Context, sessionID string) (*TrackerResetResponse, error) {
	out := &TrackerResetResponse{}
	if err := c.conn.Invoke(ctx, "/"+TrackerServiceName+"/Reset", &TrackerSessionRequest{SessionID: sessionID}, out, rpc.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}
