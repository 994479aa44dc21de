package settlementhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/settle/internal/platform/httpx"
	"github.com/odyssey-erp/settle/internal/settlement"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
	"github.com/odyssey-erp/settle/internal/settlement/submission"
	"github.com/odyssey-erp/settle/internal/settlement/vendor"
)

// RateResolver resolves a settlement rate for a date.
type RateResolver interface {
	Resolve(ctx context.Context, date time.Time) fxrate.Resolution
}

// Submitter dispatches a payload to the payment endpoint.
type Submitter interface {
	Submit(ctx context.Context, payload settlement.SubmissionPayload, authCode string) (submission.Receipt, error)
}

// Handler serves the settlement JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	sessions  *settlement.SessionStore
	resolver  RateResolver
	balances  vendor.BalanceReader
	submitter Submitter
	validate  *validator.Validate
	now       func() time.Time
}

// NewHandler constructs the settlement handler.
func NewHandler(logger *slog.Logger, sessions *settlement.SessionStore, resolver RateResolver, balances vendor.BalanceReader, submitter Submitter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		sessions:  sessions,
		resolver:  resolver,
		balances:  balances,
		submitter: submitter,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers routes under the settlement prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/preview", h.preview)
	r.Post("/rates/resolve", h.resolveRate)
	r.Get("/suppliers/{supplierID}/prepay", h.prepayBalance)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.openSession)
		r.Get("/{sessionID}", h.getSession)
		r.Patch("/{sessionID}", h.updateSession)
		r.Put("/{sessionID}/orders/{orderID}", h.setOrderConfig)
		r.Post("/{sessionID}/submit", h.submit)
		r.Delete("/{sessionID}", h.closeSession)
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.decode(w, r, &req) {
		return
	}
	batch, err := req.toBatch()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, previewResponse{
		Result:   settlement.Aggregate(batch),
		Decision: settlement.Evaluate(settlement.GateStateFor(batch, req.RateFetching)),
	})
}

func (h *Handler) resolveRate(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), date))
}

func (h *Handler) prepayBalance(w http.ResponseWriter, r *http.Request) {
	supplierID := strings.TrimSpace(chi.URLParam(r, "supplierID"))
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if asOf.IsZero() {
		asOf = h.today()
	}
	bal, err := h.balances.PrepayBalance(r.Context(), supplierID, asOf)
	if err != nil {
		h.respondError(w, "prepay balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if asOf.IsZero() {
		asOf = h.today()
	}
	orders := make([]settlement.Order, 0, len(req.Orders))
	for _, o := range req.Orders {
		orders = append(orders, o.toOrder())
	}
	balances, err := vendor.Balances(r.Context(), h.balances, orders, asOf)
	if err != nil {
		h.respondError(w, "load prepay balances", err)
		return
	}
	sess := h.sessions.Open(orders, balances, req.Currency)
	h.logger.Info("settlement session opened",
		slog.String("session", sess.ID.String()),
		slog.Int("orders", len(orders)))
	httpx.JSON(w, http.StatusCreated, sessionView(sess))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sessionView(sess))
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req updateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.ClearExtraFee {
		sess.SetExtraFee(nil)
	} else if req.ExtraFee != nil {
		sess.SetExtraFee(&settlement.ExtraFee{Amount: req.ExtraFee.Amount, Currency: req.ExtraFee.Currency, Note: req.ExtraFee.Note})
	}
	if req.ActualLump != nil {
		sess.SetActualLump(&settlement.ActualLump{Amount: req.ActualLump.Amount, Currency: req.ActualLump.Currency})
	}

	var (
		gen  uint64
		need bool
	)
	if req.PaymentDate != nil {
		date, err := parseDate(*req.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if g, n := sess.SetPaymentDate(date); n || g > gen {
			gen, need = g, n
		}
	}
	if req.RateSelection != nil {
		if g, n := sess.SetRateSelection(selection(*req.RateSelection)); n || g > gen {
			gen, need = g, n
		}
	}
	if need {
		h.resolveForSession(r.Context(), sess, gen)
	}
	if req.ManualRate != nil {
		if err := sess.SetManualRate(*req.ManualRate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	httpx.JSON(w, http.StatusOK, sessionView(sess))
}

// resolveForSession runs the chain and applies the result only if no newer
// date or selection change happened meanwhile. The chain outlives a cancelled
// request; each provider call is still bounded by the resolver timeout.
func (h *Handler) resolveForSession(ctx context.Context, sess *settlement.Session, gen uint64) {
	batch, _ := sess.Snapshot()
	res := h.resolver.Resolve(context.WithoutCancel(ctx), batch.PaymentDate)
	if !sess.CompleteResolution(gen, res.Rate, res.Source, res.Failed) {
		h.logger.Debug("discarded stale rate resolution",
			slog.String("session", sess.ID.String()),
			slog.Uint64("generation", gen))
	}
}

func (h *Handler) setOrderConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req configDTO
	if !h.decode(w, r, &req) {
		return
	}
	if err := sess.SetConfig(chi.URLParam(r, "orderID"), req.toConfig()); err != nil {
		h.respondError(w, "set order config", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionView(sess))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, decision := sess.Preview()
	if !decision.Allowed {
		httpx.JSON(w, http.StatusUnprocessableEntity, struct {
			httpx.ProblemDetail
			Blockers []settlement.Blocker `json:"blockers"`
		}{
			ProblemDetail: httpx.ProblemDetail{
				Title:  "Batch Not Submittable",
				Status: http.StatusUnprocessableEntity,
				Detail: fmt.Sprintf("%d blocker(s)", len(decision.Blockers)),
			},
			Blockers: decision.Blockers,
		})
		return
	}
	receipt, err := h.submitter.Submit(r.Context(), result.Payload, req.AuthorizationCode)
	if err != nil {
		h.respondError(w, "submit settlement", err)
		return
	}
	h.sessions.Close(sess.ID)
	h.logger.Info("settlement submitted",
		slog.String("session", sess.ID.String()),
		slog.Int("line_items", len(result.Payload.LineItems)),
		slog.Float64("total_cash", result.Summary.TotalCashPayment))
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	h.sessions.Close(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*settlement.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid session id")
		return nil, false
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(w, "load session", err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, settlement.ErrSessionNotFound), errors.Is(err, vendor.ErrSupplierNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, settlement.ErrUnknownOrder), errors.Is(err, submission.ErrAuthorizationRequired):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, submission.ErrSubmitRejected):
		httpx.Problem(w, http.StatusBadGateway, "Submission Rejected", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) today() time.Time {
	y, m, d := h.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sessionView(sess *settlement.Session) sessionResponse {
	_, rate := sess.Snapshot()
	result, decision := sess.Preview()
	return sessionResponse{ID: sess.ID.String(), Rate: rate, Preview: result, Decision: decision}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
