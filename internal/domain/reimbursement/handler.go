package reimbursement

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/platform/auth"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the workflow endpoints on the /api/remboursements group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	claims := g.Group("", auth.RequireRole(auth.RoleClaims))
	claims.POST("/declarations", h.Submit)
	claims.POST("/declarations/:id/traiter", h.Process)

	finance := g.Group("", auth.RequireRole(auth.RoleFinance))
	finance.POST("/paiements/initier", h.InitiatePayment)
	finance.PUT("/paiements/:id/statut", h.ConfirmPayment)
}

func (h *Handler) Submit(c echo.Context) error {
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	d, err := declaration.FromFields(fields)
	if err != nil {
		return err
	}
	if err := h.svc.SubmitDeclaration(c.Request().Context(), d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":       true,
		"declarationId": d.ID,
		"numero":        d.Number,
	})
}

func (h *Handler) Process(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.ProcessDeclaration(ctx, id, fields.String(fieldmap.Action), fields.String(fieldmap.Reason), auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "declaration": d})
}

func (h *Handler) InitiatePayment(c echo.Context) error {
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	declID, err := fields.UUID(fieldmap.DeclarationID)
	if err != nil {
		return err
	}
	amount, _, err := fields.Decimal(fieldmap.Amount)
	if err != nil {
		return err
	}
	req := PaymentRequest{
		Amount:        amount,
		BeneficiaryID: fields.String(fieldmap.BeneficiaryID),
		Currency:      fields.String(fieldmap.Currency),
	}
	if declID != nil {
		req.DeclarationID = *declID
	}
	if fields.Has(fieldmap.Method) {
		if req.Method, err = payment.ParseMethod(fields.String(fieldmap.Method)); err != nil {
			return err
		}
	}

	ctx := c.Request().Context()
	t, err := h.svc.InitiatePayment(ctx, req, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "transaction": t})
}

func (h *Handler) ConfirmPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fields, err := fieldmap.Bind(c)
	if err != nil {
		return err
	}
	t, err := h.svc.ConfirmPayment(c.Request().Context(), id,
		fields.String(fieldmap.Status), fields.String(fieldmap.BankReference), fields.String(fieldmap.Reason))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "transaction": t})
}
