// Package grpcserver exposes the risk assessment over gRPC. Messages are
// google.protobuf.Struct values carrying the same fields as the JSON API.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/patient"
	"github.com/example/cardio-risk/internal/usecase"
)

const (
	ServiceName      = "cardiorisk.v1.RiskAssessor"
	AssessFullMethod = "/" + ServiceName + "/Assess"
)

// Assessor is the use case behaviour served over gRPC.
type Assessor interface {
	Assess(ctx context.Context, in patient.Input) (*usecase.Assessment, error)
}

// RiskAssessorServer is the server API for the RiskAssessor service.
type RiskAssessorServer interface {
	Assess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskAssessorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Assess", Handler: assessHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardiorisk/v1/risk_assessor.proto",
}

func assessHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RiskAssessorServer).Assess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AssessFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RiskAssessorServer).Assess(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements RiskAssessorServer on top of the prediction use case.
type Server struct {
	uc     Assessor
	logger *zap.Logger
}

// NewServer builds the gRPC service implementation.
func NewServer(uc Assessor, logger *zap.Logger) *Server {
	return &Server{uc: uc, logger: logger.Named("grpc_server")}
}

// New returns a grpc.Server with the RiskAssessor service registered and
// request logging installed.
func New(uc Assessor, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(LoggingInterceptor(logger)))
	s := grpc.NewServer(opts...)
	Register(s, NewServer(uc, logger))
	return s
}

// Register adds the RiskAssessor service to s.
func Register(s grpc.ServiceRegistrar, srv RiskAssessorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Assess validates the request fields, runs the assessment, and encodes the
// result.
func (s *Server) Assess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := decodeInput(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	assessment, err := s.uc.Assess(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	resp, err := encodeAssessment(assessment)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func decodeInput(req *structpb.Struct) (patient.Input, error) {
	fields := req.GetFields()

	age, err := intField(fields, "age", patient.Bounds.Age)
	if err != nil {
		return patient.Input{}, err
	}
	bp, err := intField(fields, "resting_blood_pressure", patient.Bounds.RestingBloodPressure)
	if err != nil {
		return patient.Input{}, err
	}
	chol, err := intField(fields, "cholesterol", patient.Bounds.Cholesterol)
	if err != nil {
		return patient.Input{}, err
	}
	sex, err := patient.ParseSex(fields["sex"].GetStringValue())
	if err != nil {
		return patient.Input{}, err
	}
	cp, err := patient.ParseChestPainType(fields["chest_pain_type"].GetStringValue())
	if err != nil {
		return patient.Input{}, err
	}
	return patient.Input{Age: age, Sex: sex, ChestPain: cp, RestingBloodPressure: bp, Cholesterol: chol}, nil
}

func intField(fields map[string]*structpb.Value, name string, bounds patient.Range) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	n := int(f)
	if !bounds.Contains(n) {
		return 0, fmt.Errorf("%s must be within [%d, %d]", name, bounds.Min, bounds.Max)
	}
	return n, nil
}

func encodeAssessment(a *usecase.Assessment) (*structpb.Struct, error) {
	record := make(map[string]interface{}, patient.NumFeatures)
	for _, f := range a.Record.Fields() {
		record[f.Name] = f.Value
	}
	return structpb.NewStruct(map[string]interface{}{
		"request_id":      a.RequestID,
		"record":          record,
		"predicted_class": a.Prediction.Class,
		"label":           a.Prediction.Label(),
		"risk_label":      a.Prediction.RiskLabel(),
		"probabilities": map[string]interface{}{
			"healthy": a.Prediction.Probabilities[model.ClassHealthy],
			"disease": a.Prediction.Probabilities[model.ClassDisease],
		},
		"cached":     a.Cached,
		"created_at": a.CreatedAt.Format(time.RFC3339Nano),
	})
}

// LoggingInterceptor logs every unary call with its status code and latency.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logger.Named("grpc")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("grpc call", fields...)
		}
		return resp, err
	}
}
