package metrics

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor records request count, duration and failures for
// every unary call. exporter and logger may be nil.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		method := info.FullMethod

		collector.RecordRequest(method)
		if exporter != nil {
			exporter.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		elapsed := time.Since(start)
		collector.RecordDuration(method, elapsed.Seconds())
		if exporter != nil {
			exporter.RecordDuration(method, elapsed.Seconds())
		}

		if err != nil {
			code := status.Code(err)
			collector.RecordError(method)
			if exporter != nil {
				exporter.RecordError(method, code)
			}
			if logger != nil && isServerFault(code) {
				logger.Error("request failed", "method", method, "code", code.String(), "error", err, "duration", elapsed)
			}
		} else if logger != nil {
			logger.Debug("request served", "method", method, "duration", elapsed)
		}

		return resp, err
	}
}

func isServerFault(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss, codes.DeadlineExceeded:
		return true
	}
	return false
}
