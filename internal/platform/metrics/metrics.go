package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersRegistered        prometheus.Counter
	LoginAttempts          *prometheus.CounterVec
	VerificationsSubmitted prometheus.Counter
	VerificationsReviewed  *prometheus.CounterVec
	ChainTransactions      *prometheus.CounterVec
	StorageUploads         prometheus.Counter
	StorageUploadBytes     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_users_registered_total",
			Help: "Total number of users registered in the system",
		}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_login_attempts_total",
			Help: "Signature login attempts by outcome",
		}, []string{"outcome"}),
		VerificationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_verifications_submitted_total",
			Help: "Total number of verification requests submitted",
		}),
		VerificationsReviewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_verifications_reviewed_total",
			Help: "Verification reviews by decision",
		}, []string{"decision"}),
		ChainTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_chain_transactions_total",
			Help: "Registry contract transactions by kind and outcome",
		}, []string{"kind", "outcome"}),
		StorageUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_storage_uploads_total",
			Help: "Total number of documents pinned to storage",
		}),
		StorageUploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_storage_upload_bytes_total",
			Help: "Total bytes of documents pinned to storage",
		}),
	}
}
