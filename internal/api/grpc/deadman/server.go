package deadman

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/arbiter"
)

// Service abstracts the check-in entry point the transport depends on.
type Service interface {
	CheckIn(ctx context.Context, request domain.CheckInRequest) (domain.Status, error)
	Status() domain.Status
}

// Server implements SwitchServiceServer on top of a Service.
type Server struct {
	// service accepts check-ins and answers status queries.
	service Service
}

// NewServer wires the provided service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// CheckIn records a check-in from the source named in the request.
func (s *Server) CheckIn(ctx context.Context, source *wrapperspb.StringValue) (*structpb.Struct, error) {
	if source == nil || strings.TrimSpace(source.GetValue()) == "" {
		return nil, status.Error(codes.InvalidArgument, "source is required")
	}

	result, err := s.service.CheckIn(ctx, domain.CheckInRequest{
		Source:    source.GetValue(),
		Timestamp: time.Now(),
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyTriggered):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, arbiter.ErrEmptySource):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, arbiter.ErrStopped):
		return nil, status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		logger.ErrorKV(ctx, "Check-in failed", "source", source.GetValue(), "error", err)

		return nil, status.Error(codes.Internal, "unable to check in")
	}

	return statusResponse(result)
}

// GetStatus returns the current switch status.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return statusResponse(s.service.Status())
}

// statusResponse converts a status or fails with Internal.
func statusResponse(st domain.Status) (*structpb.Struct, error) {
	response, err := StatusToStruct(st)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return response, nil
}
