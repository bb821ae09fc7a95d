package declaration

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

// RegisterRoutes mounts the read endpoints on the /api/remboursements group.
// Submission and processing go through the reimbursement workflow.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleClaims, auth.RoleFinance, auth.RoleAuditor))
	read.GET("/declarations", h.List)
	read.GET("/declarations/:id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Status:        Status(fieldmap.Enum(fieldmap.DeclarationStatus, c.QueryParam("status"))),
		BeneficiaryID: c.QueryParam("beneficiaryId"),
		Page:          pg.Page,
		Limit:         pg.Limit,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"declarations": items,
		"pagination":   pagination.NewPagination(pg, total),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "declaration": d})
}
