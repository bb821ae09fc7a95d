package reconciliation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/claimsnet/claims/internal/platform/auth"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/metrics"
)

// ScopeFunc prepares a context bound to a tenant's data. release is called
// once the refresh is done.
type ScopeFunc func(ctx context.Context, tenant string) (scoped context.Context, release func(), err error)

// PoolScope scopes refreshes with a tenant connection taken from pool.
func PoolScope(pool *pgxpool.Pool) ScopeFunc {
	return func(ctx context.Context, tenant string) (context.Context, func(), error) {
		return db.TenantContext(ctx, pool, tenant)
	}
}

// Refresher periodically recomputes the dashboard of one tenant and
// publishes its headline figures as Prometheus gauges. It only reads.
type Refresher struct {
	svc       *Service
	scope     ScopeFunc
	tenant    string
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
	running   atomic.Bool
}

func NewRefresher(svc *Service, scope ScopeFunc, tenant string, interval time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{
		svc:       svc,
		scope:     scope,
		tenant:    tenant,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger.With().Str("component", "reconciliation").Str("tenant", tenant).Logger(),
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the refresh job. The first run happens immediately.
func (r *Refresher) Start() error {
	_, err := r.scheduler.Every(r.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Refresh(ctx); err != nil {
			r.logger.Error().Err(err).Msg("reconciliation refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciliation refresh: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info().Dur("interval", r.interval).Msg("reconciliation refresher started")
	return nil
}

func (r *Refresher) Stop() {
	r.scheduler.Stop()
}

// Refresh computes the all-time dashboard and updates the gauges. Overlapping
// calls are skipped.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug().Msg("refresh already running, skipping")
		return nil
	}
	defer r.running.Store(false)

	scoped, release, err := r.scope(ctx, r.tenant)
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("error").Inc()
		return err
	}
	defer release()
	scoped = auth.WithIdentity(scoped, "reconciliation-job", auth.RoleAuditor)

	start := time.Now()
	d, err := r.svc.Dashboard(scoped, Period{})
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("error").Inc()
		return err
	}

	invoicesOutstanding, _ := d.Invoices.Outstanding.Float64()
	reimbursementsPending, _ := d.Transactions.Pending.Float64()
	metrics.OutstandingAmount.WithLabelValues(r.tenant, "invoices").Set(invoicesOutstanding)
	metrics.OutstandingAmount.WithLabelValues(r.tenant, "reimbursements").Set(reimbursementsPending)
	metrics.OpenDisputes.WithLabelValues(r.tenant).Set(float64(d.Disputes.Pending()))
	metrics.ReconciliationRuns.WithLabelValues("ok").Inc()

	r.logger.Debug().Dur("took", time.Since(start)).
		Str("succeeded", d.Transactions.Succeeded.String()).
		Int("open_disputes", d.Disputes.Pending()).
		Msg("reconciliation refreshed")
	return nil
}
