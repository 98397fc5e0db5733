package rest

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"

	"github.com/heartmarshall/circulation-backend/internal/domain"
	"github.com/heartmarshall/circulation-backend/internal/service/lending"
	"github.com/heartmarshall/circulation-backend/internal/service/lending/fine"
)

type lendingService interface {
	RequestLoan(ctx context.Context, borrowerID, itemID uuid.UUID) (domain.LoanRecord, error)
	IssueLoan(ctx context.Context, input lending.IssueLoanInput) (domain.LoanRecord, error)
	Approve(ctx context.Context, loanID uuid.UUID, dueAt *time.Time) (domain.LoanRecord, error)
	Reject(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error)
	MarkCollected(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error)
	ReturnItem(ctx context.Context, loanID uuid.UUID, returnedAt *time.Time) (domain.LoanRecord, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error)
	LoanHistory(ctx context.Context, loanID uuid.UUID) ([]domain.AuditRecord, error)
	LoansByBorrower(ctx context.Context, borrowerID uuid.UUID) iter.Seq2[domain.LoanRecord, error]
	OverdueLoans(ctx context.Context, now time.Time) iter.Seq2[domain.LoanRecord, error]
	Now() time.Time
	DailyFineRate() decimal.Decimal
}

// LoanHandler serves the lending workflow endpoints.
type LoanHandler struct {
	lending lendingService
	log     *slog.Logger
}

// NewLoanHandler creates a LoanHandler.
func NewLoanHandler(lending lendingService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{
		lending: lending,
		log:     logger.With("handler", "loans"),
	}
}

// Request creates a PENDING loan.
// POST /loans {"borrower_id": "...", "item_id": "..."}
func (h *LoanHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req requestLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	loan, err := h.lending.RequestLoan(r.Context(), req.BorrowerID, req.ItemID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

// Issue requests and approves a loan in one step.
// POST /items/:id/issue {"borrower_id": "...", "due_at": "..."}
func (h *LoanHandler) Issue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	itemID, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	var req issueLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	loan, err := h.lending.IssueLoan(r.Context(), lending.IssueLoanInput{
		BorrowerID: req.BorrowerID,
		ItemID:     itemID,
		DueAt:      req.DueAt,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

// Approve reserves a copy for a PENDING loan.
// POST /loans/:id/approve {"due_at": "..."} (body optional)
func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req approveRequest
	h.transition(w, r, ps, &req, func(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
		return h.lending.Approve(ctx, id, req.DueAt)
	})
}

// Reject declines a PENDING loan.
// POST /loans/:id/reject
func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, nil, h.lending.Reject)
}

// Collect records the hand-over of an APPROVED loan.
// POST /loans/:id/collect
func (h *LoanHandler) Collect(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, nil, h.lending.MarkCollected)
}

// Return closes a loan and releases its copy.
// POST /loans/:id/return {"returned_at": "..."} (body optional)
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req returnRequest
	h.transition(w, r, ps, &req, func(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
		return h.lending.ReturnItem(ctx, id, req.ReturnedAt)
	})
}

func (h *LoanHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	body any,
	fn func(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error),
) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if body != nil {
		if err := decodeJSON(w, r, body); err != nil {
			handleError(w, r, h.log, err)
			return
		}
	}
	loan, err := fn(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

// Get returns one loan.
// GET /loans/:id
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	loan, err := h.lending.GetLoan(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

// History returns the audit trail of a loan, newest first.
// GET /loans/:id/history
func (h *LoanHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	records, err := h.lending.LoanHistory(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	resp := make([]AuditResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toAuditResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ByBorrower lists a borrower's loans in request order.
// GET /borrowers/:id/loans
func (h *LoanHandler) ByBorrower(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "id")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	resp := make([]LoanResponse, 0)
	for loan, err := range h.lending.LoansByBorrower(r.Context(), id) {
		if err != nil {
			handleError(w, r, h.log, err)
			return
		}
		resp = append(resp, toLoanResponse(loan))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Overdue lists loans past their due date with the fine accrued so far.
// GET /overdue-loans
func (h *LoanHandler) Overdue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	now := h.lending.Now()
	rate := h.lending.DailyFineRate()

	resp := make([]LoanResponse, 0)
	for loan, err := range h.lending.OverdueLoans(r.Context(), now) {
		if err != nil {
			handleError(w, r, h.log, err)
			return
		}
		lr := toLoanResponse(loan)
		if loan.DueAt != nil {
			accrued := fine.Compute(*loan.DueAt, now, rate)
			lr.AccruedFine = &accrued
		}
		resp = append(resp, lr)
	}
	writeJSON(w, http.StatusOK, resp)
}
