package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "auth_events_total", Help: "Session store operations by kind and outcome."},
		[]string{"op", "outcome"},
	)
	PostsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "posts_created_total", Help: "Number of posts created."},
	)
	PostsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "posts_deleted_total", Help: "Number of posts deleted."},
	)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "modernplatform", Name: "uploads_total", Help: "Upload attempts by source and outcome."},
		[]string{"source", "outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AuthEvents)
	reg.MustRegister(PostsCreated)
	reg.MustRegister(PostsDeleted)
	reg.MustRegister(Uploads)
}
