package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/claimsnet/claims/internal/config"
	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/dispute"
	"github.com/claimsnet/claims/internal/domain/invoice"
	"github.com/claimsnet/claims/internal/domain/ledger"
	"github.com/claimsnet/claims/internal/domain/reconciliation"
	"github.com/claimsnet/claims/internal/domain/reimbursement"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/websocket"
)

// app holds the domain handlers mounted under /api.
type app struct {
	declarations   *declaration.Handler
	reimbursements *reimbursement.Handler
	transactions   *ledger.Handler
	invoices       *invoice.Handler
	disputes       *dispute.Handler
	reconciliation *reconciliation.Handler
	refresher      *reconciliation.Refresher
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, publisher websocket.EventPublisher) *app {
	tx := db.NewTxRunner(pool)

	declSvc := declaration.NewService(declaration.NewRepoPG(pool), tx, cfg.Coverage(), cfg.AmountScale)
	ledgerSvc := ledger.NewService(ledger.NewRepoPG(pool), tx, publisher, cfg.Currency)
	invoiceSvc := invoice.NewService(invoice.NewRepoPG(pool), tx, publisher, cfg.InvoiceDueDays)
	disputeSvc := dispute.NewService(dispute.NewRepoPG(pool), tx, publisher)
	reimbursementSvc := reimbursement.NewService(declSvc, ledgerSvc, tx, publisher)
	reconSvc := reconciliation.NewService(declSvc, ledgerSvc, disputeSvc, invoiceSvc)

	return &app{
		declarations:   declaration.NewHandler(declSvc),
		reimbursements: reimbursement.NewHandler(reimbursementSvc),
		transactions:   ledger.NewHandler(ledgerSvc),
		invoices:       invoice.NewHandler(invoiceSvc),
		disputes:       dispute.NewHandler(disputeSvc),
		reconciliation: reconciliation.NewHandler(reconSvc),
		refresher: reconciliation.NewRefresher(reconSvc, reconciliation.PoolScope(pool),
			cfg.DefaultTenant, cfg.ReconcileInterval, log.Logger),
	}
}

func (a *app) registerRoutes(api *echo.Group) {
	remb := api.Group("/remboursements")
	a.declarations.RegisterRoutes(remb)
	a.reimbursements.RegisterRoutes(remb)
	a.transactions.RegisterRoutes(remb)

	billing := api.Group("/facturation")
	a.invoices.RegisterRoutes(billing)
	a.disputes.RegisterRoutes(billing)

	a.reconciliation.RegisterRoutes(api.Group("/reconciliation"))
}
