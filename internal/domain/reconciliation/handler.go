package reconciliation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimsnet/claims/internal/platform/auth"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the reconciliation views on the /api/reconciliation group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleFinance, auth.RoleAuditor))
	read.GET("/dashboard", h.Dashboard)
	read.GET("/declarations/:id", h.Statement)
}

func (h *Handler) Dashboard(c echo.Context) error {
	from, to, err := fieldmap.Query(c).Range(fieldmap.From, fieldmap.To)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), Period{From: from, To: to})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "dashboard": d})
}

func (h *Handler) Statement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.DeclarationStatement(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "statement": st})
}
