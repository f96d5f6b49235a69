package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "response", nil
}

func TestUnaryServerInterceptor_RecordsRequest(t *testing.T) {
	collector := NewCollector()
	interceptor := UnaryServerInterceptor(collector, nil, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/permcondition.v1.ConditionService/Evaluate"}

	for i := 0; i < 5; i++ {
		resp, err := interceptor(context.Background(), "request", info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "response", resp)
	}

	apiMetrics := collector.GetAPIMetrics()
	assert.Equal(t, uint64(5), apiMetrics.RequestCounts[info.FullMethod])
	assert.Contains(t, apiMetrics.TotalDurationSeconds, info.FullMethod)
	assert.NotContains(t, apiMetrics.ErrorCounts, info.FullMethod)
}

func TestUnaryServerInterceptor_RecordsError(t *testing.T) {
	collector := NewCollector()
	exporter := NewPrometheusExporter(collector, prometheus.NewRegistry())
	interceptor := UnaryServerInterceptor(collector, exporter, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/permcondition.v1.ConditionService/GetCondition"}

	expectedErr := status.Error(codes.NotFound, "condition not found")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, expectedErr
	}

	_, err := interceptor(context.Background(), "request", info, handler)
	assert.Equal(t, expectedErr, err)

	assert.Equal(t, uint64(1), collector.GetAPIMetrics().ErrorCounts[info.FullMethod])
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.grpcErrors.WithLabelValues(info.FullMethod, "NotFound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.grpcRequests.WithLabelValues(info.FullMethod)))
}

func TestUnaryServerInterceptor_PlainErrorIsUnknown(t *testing.T) {
	collector := NewCollector()
	exporter := NewPrometheusExporter(collector, prometheus.NewRegistry())
	interceptor := UnaryServerInterceptor(collector, exporter, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Fail"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.grpcErrors.WithLabelValues(info.FullMethod, "Unknown")))
}

func TestIsServerFault(t *testing.T) {
	assert.True(t, isServerFault(codes.Internal))
	assert.True(t, isServerFault(codes.Unavailable))
	assert.False(t, isServerFault(codes.NotFound))
	assert.False(t, isServerFault(codes.InvalidArgument))
}
