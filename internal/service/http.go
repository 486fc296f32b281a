package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HTTPHandler serves /metrics, /healthz and /readyz. Both probes follow
// the overall status of healthServer.
func HTTPHandler(healthServer *health.Server) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", probe(healthServer, "OK", "Service Unavailable"))
	mux.HandleFunc("/readyz", probe(healthServer, "Ready", "Not Ready"))

	return mux
}

func probe(healthServer *health.Server, ok, fail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
		if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(fail))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ok))
	}
}
