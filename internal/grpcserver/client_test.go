package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/cardio-risk/internal/logging"
)

// riskAssessorClient calls the service the way a remote caller would, over
// the registered method name with structpb messages.
type riskAssessorClient struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func dialRiskAssessor(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*riskAssessorClient, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcserver.dial_risk_assessor", "", err)
		logger.Error("failed to dial risk assessor", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &riskAssessorClient{conn: conn, logger: logger}, conn, nil
}

func (c *riskAssessorClient) Assess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, AssessFullMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcserver.assess", "", err)
		c.logger.Error("risk assessor call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	return resp, nil
}
