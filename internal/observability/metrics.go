package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "league_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "league_active_connections",
			Help: "Number of active connections",
		},
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_database_operations_total",
			Help: "Number of database operations",
		},
		[]string{"operation", "status"},
	)

	// OTPRequests tracks code requests by outcome
	OTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_otp_requests_total",
			Help: "Number of OTP code requests by outcome",
		},
		[]string{"outcome"},
	)

	// OTPVerifications tracks verification attempts by outcome
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_otp_verifications_total",
			Help: "Number of OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SMSDeliveries tracks gateway calls
	SMSDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_otp_sms_deliveries_total",
			Help: "Number of SMS deliveries by provider and status",
		},
		[]string{"provider", "status"},
	)

	// OTPCleanupDeleted tracks records removed by the expiry sweep
	OTPCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "league_otp_cleanup_deleted_total",
			Help: "Number of expired OTP records removed by the cleanup sweep",
		},
	)
)
