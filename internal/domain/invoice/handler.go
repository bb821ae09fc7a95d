package invoice

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimsnet/claims/internal/platform/auth"
	"github.com/claimsnet/claims/pkg/fieldmap"
	"github.com/claimsnet/claims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the invoice endpoints on the /api/facturation group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleFinance, auth.RoleAuditor))
	read.GET("/factures", h.List)
	read.GET("/factures/:id", h.Get)
	read.GET("/factures/:id/paiements", h.ListPayments)

	write := g.Group("", auth.RequireRole(auth.RoleFinance))
	write.POST("/factures", h.Create)
	write.POST("/factures/:id/paiements", h.RecordPayment)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	q := fieldmap.Query(c)
	f := Filter{
		Status:  Status(q.EnumField(fieldmap.Status, fieldmap.InvoiceStatus)),
		PayerID: q.String(fieldmap.PayerID),
		Search:  q.String(fieldmap.Search),
		Page:    pg.Page,
		Limit:   pg.Limit,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"factures":   items,
		"pagination": pagination.NewPagination(pg, total),
	})
}

func (h *Handler) Create(c echo.Context) error {
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	inv, err := FromFields(fields)
	if err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), inv); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":   true,
		"factureId": inv.ID,
		"numero":    inv.Number,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "facture": inv})
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	p, err := PaymentFromFields(fields)
	if err != nil {
		return err
	}
	if actor := auth.UserIDFromContext(c.Request().Context()); actor != "" {
		p.RecordedBy = &actor
	}
	inv, err := h.svc.RecordPayment(c.Request().Context(), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "facture": inv})
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "paiements": payments})
}
