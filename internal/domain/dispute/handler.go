package dispute

import (
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the dispute endpoints on the /api/facturation group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleClaims, auth.RoleFinance, auth.RoleAuditor))
	read.GET("/litiges", h.List)
	read.GET("/litiges/:id", h.Get)

	write := g.Group("", auth.RequireRole(auth.RoleClaims))
	write.POST("/litiges", h.Open)
	write.PUT("/litiges/:id", h.Resolve)
	write.POST("/litiges/:id/cloturer", h.Close)
}

func (h *Handler) List(c echo.Context) error {
	q := fieldmap.Query(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	f := Filter{
		Status: Status(q.EnumField(fieldmap.Status, fieldmap.DisputeStatus)),
		Limit:  limit,
	}
	items, stats, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"litiges":      items,
		"statistiques": stats,
	})
}

func (h *Handler) Open(c echo.Context) error {
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	d, err := FromFields(fields)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Open(ctx, d, auth.UserIDFromContext(ctx)); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "litigeId": d.ID})
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
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "litige": d})
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Resolve(ctx, id, ResolutionFromFields(fields), auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "litige": d})
}

func (h *Handler) Close(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	d, err := h.svc.Close(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "litige": d})
}
