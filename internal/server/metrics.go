package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/codes"
)

const (
	methodLabel = "method"
	codeLabel   = "code"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadstash_grpc_requests_total",
		Help: "The number of handled gRPC requests.",
	}, []string{
		methodLabel,
		codeLabel,
	})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "quadstash_grpc_request_latency",
		Help: "The time to handle a gRPC request.",
	}, []string{
		methodLabel,
	})
)

func instrumentRequest(method string, code codes.Code, start time.Time) {
	requests.With(prometheus.Labels{
		methodLabel: method,
		codeLabel:   code.String(),
	}).Inc()

	requestLatency.With(prometheus.Labels{
		methodLabel: method,
	}).Observe(time.Since(start).Seconds())
}
