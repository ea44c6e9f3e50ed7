package classifier

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/DTPriya20/click-gait/internal/rpc"
	"github.com/DTPriya20/click-gait/pkg/models"
)

const (
	serviceName    = "gait.classifier.v1.Classifier"
	methodClassify = "/" + serviceName + "/Classify"
)

// ClassifyRequest is the wire request of the Classify RPC.
type ClassifyRequest struct {
	Features []float64 `json:"features"`
}

// ClassifyResponse is the wire response of the Classify RPC.
type ClassifyResponse struct {
	Category      int       `json:"category"`
	Probabilities []float64 `json:"probabilities"`
}

// Remote calls a classifier served over gRPC.
type Remote struct {
	conn *grpc.ClientConn
}

// NewRemote wraps an established connection.
func NewRemote(conn *grpc.ClientConn) *Remote {
	return &Remote{conn: conn}
}

// Classify implements Classifier.
func (r *Remote) Classify(ctx context.Context, features []float64) (models.ClassificationResult, error) {
	out := &ClassifyResponse{}
	if err := r.conn.Invoke(ctx, methodClassify, &ClassifyRequest{Features: features}, out, rpc.CallOption()); err != nil {
		switch status.Code(err) {
		case codes.InvalidArgument:
			return models.ClassificationResult{}, fmt.Errorf("%w: %s", ErrDimension, status.Convert(err).Message())
		case codes.Unavailable, codes.DeadlineExceeded:
			return models.ClassificationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			return models.ClassificationResult{}, fmt.Errorf("remote classify: %w", err)
		}
	}
	return models.ClassificationResult{Category: out.Category, Probabilities: out.Probabilities}, nil
}

// RegisterServer exposes impl as the Classify RPC on server.
func RegisterServer(server grpc.ServiceRegistrar, impl Classifier) {
	classify := func(ctx context.Context, in *ClassifyRequest) (*ClassifyResponse, error) {
		res, err := impl.Classify(ctx, in.Features)
		if err != nil {
			switch {
			case errors.Is(err, ErrDimension):
				return nil, status.Error(codes.InvalidArgument, err.Error())
			case errors.Is(err, ErrUnavailable):
				return nil, status.Error(codes.Unavailable, err.Error())
			default:
				return nil, status.Error(codes.Internal, err.Error())
			}
		}
		return &ClassifyResponse{Category: res.Category, Probabilities: res.Probabilities}, nil
	}

	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*Classifier)(nil),
		Methods: []grpc.MethodDesc{
			rpc.UnaryMethod(serviceName, "Classify", classify),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "gait/classifier/v1/classifier.proto",
	}, impl)
}
