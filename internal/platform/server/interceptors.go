package server

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/orgchart/internal/adapters/grpc/handler"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader はリクエスト ID を運ぶメタデータキーです。
const RequestIDHeader = "x-request-id"

// requestIDFromIncoming はメタデータのリクエスト ID を返し、無ければ新しく採番します。
func requestIDFromIncoming(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}

// observabilityInterceptor はリクエスト単位のロガーをコンテキストに格納し、アクセスログとメトリクスを記録します。
func observabilityInterceptor(base zerolog.Logger, metrics *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		requestID := requestIDFromIncoming(ctx)
		logger := base.With().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Logger()
		ctx = logger.WithContext(ctx)
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			logger.Debug().Err(err).Msg("set request id header")
		}

		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		metrics.observe(info.FullMethod, code.String(), elapsed)
		if reason, ok := handler.ErrorReason(err); ok {
			metrics.reject(reason)
		}

		var event *zerolog.Event
		switch code {
		case codes.OK:
			event = logger.Info()
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
			event = logger.Error().Err(err)
		default:
			event = logger.Warn().Err(err)
		}
		event.Str("code", code.String()).Dur("elapsed", elapsed).Msg("grpc request")

		return resp, err
	}
}

// recoveryInterceptor はハンドラ内の panic を Internal エラーに変換します。
func recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(ctx).Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return next(ctx, req)
	}
}
