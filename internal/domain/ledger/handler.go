package ledger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

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

// RegisterRoutes mounts the ledger read endpoints on the /api/remboursements
// group. Payments are initiated and confirmed through the reimbursement
// workflow.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleFinance, auth.RoleAuditor))
	read.GET("/transactions", h.List)
	read.GET("/transactions/export", h.Export)
	read.GET("/transactions/:id", h.Get)
}

func filterFromQuery(c echo.Context) (Filter, error) {
	q := fieldmap.Query(c)
	from, to, err := q.Range(fieldmap.From, fieldmap.To)
	if err != nil {
		return Filter{}, err
	}
	declID, err := q.UUID(fieldmap.DeclarationID)
	if err != nil {
		return Filter{}, err
	}
	return Filter{
		From:          from,
		To:            to,
		Status:        Status(q.EnumField(fieldmap.Status, fieldmap.TransactionStatus)),
		Type:          Type(q.EnumField(fieldmap.Type, fieldmap.TransactionType)),
		DeclarationID: declID,
	}, nil
}

func (h *Handler) List(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f.Page, f.Limit = pg.Page, pg.Limit

	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": items,
		"pagination":   pagination.NewPagination(pg, total),
	})
}

func (h *Handler) Export(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	enc, err := NormalizeEncoding(fieldmap.Query(c).String(fieldmap.Encoding))
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102"))
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset="+enc)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	// Headers are already sent; the error handler cannot report this to the client.
	if err := h.svc.Export(c.Request().Context(), f, res, enc); err != nil {
		log.Error().Err(err).Str("encoding", enc).Int64("bytes_written", res.Size).
			Msg("transaction export aborted")
		return err
	}
	return nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "transaction": t})
}
