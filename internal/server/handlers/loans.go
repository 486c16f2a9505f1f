package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/maruel/bibliodb/internal/circulation"
	apierrors "github.com/maruel/bibliodb/internal/errors"
	"github.com/maruel/bibliodb/internal/models"
	"github.com/maruel/bibliodb/internal/storage"
)

// LoanRepository is the loan storage used by LoanHandler.
type LoanRepository interface {
	GetLoan(ctx context.Context, id int) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
}

// LoanHandler handles loan HTTP requests.
type LoanHandler struct {
	loans LoanRepository
	svc   *circulation.Service
}

// NewLoanHandler creates a LoanHandler. loans should be strict so that
// updating an unknown id is reported.
func NewLoanHandler(loans LoanRepository, svc *circulation.Service) *LoanHandler {
	return &LoanHandler{loans: loans, svc: svc}
}

// GetLoanRequest is a request to get a populated loan.
type GetLoanRequest struct {
	ID int `path:"id" json:"-"`
}

// UpdateLoanRequest replaces the stored fields of a loan. Relationships are
// derived from the foreign keys and cannot be sent.
type UpdateLoanRequest struct {
	ID         int        `path:"id" json:"-"`
	BookItemID int        `json:"BookItemId"`
	PatronID   int        `json:"PatronId"`
	LoanDate   time.Time  `json:"LoanDate"`
	DueDate    time.Time  `json:"DueDate"`
	ReturnDate *time.Time `json:"ReturnDate"`
}

// LoanActionRequest is a request to return or extend a loan.
type LoanActionRequest struct {
	ID int `path:"id" json:"-"`
}

// ReturnLoanResponse is the outcome of a successful return.
type ReturnLoanResponse struct {
	Status  models.LoanReturnStatus `json:"status"`
	Message string                  `json:"message"`
	Loan    *models.Loan            `json:"loan"`
}

// ExtendLoanResponse is the outcome of a successful extension.
type ExtendLoanResponse struct {
	Status  models.LoanExtensionStatus `json:"status"`
	Message string                     `json:"message"`
	Loan    *models.Loan               `json:"loan"`
}

// GetLoan returns the populated loan.
func (h *LoanHandler) GetLoan(ctx context.Context, req GetLoanRequest) (*models.Loan, error) {
	l, err := h.loans.GetLoan(ctx, req.ID)
	if err != nil {
		return nil, apierrors.Storage(err)
	}
	if l == nil {
		return nil, apierrors.LoanNotFound(req.ID)
	}
	return l, nil
}

// UpdateLoan overwrites the loan and returns it populated.
func (h *LoanHandler) UpdateLoan(ctx context.Context, req UpdateLoanRequest) (*models.Loan, error) {
	switch {
	case req.BookItemID == 0:
		return nil, apierrors.MissingField("BookItemId")
	case req.PatronID == 0:
		return nil, apierrors.MissingField("PatronId")
	case req.LoanDate.IsZero():
		return nil, apierrors.MissingField("LoanDate")
	case req.DueDate.IsZero():
		return nil, apierrors.MissingField("DueDate")
	case req.DueDate.Before(req.LoanDate):
		return nil, apierrors.BadRequest("DueDate is before LoanDate")
	}
	loan := &models.Loan{
		ID:         req.ID,
		BookItemID: req.BookItemID,
		PatronID:   req.PatronID,
		LoanDate:   req.LoanDate,
		DueDate:    req.DueDate,
		ReturnDate: req.ReturnDate,
	}
	if err := h.loans.UpdateLoan(ctx, loan); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apierrors.LoanNotFound(req.ID)
		}
		return nil, apierrors.Storage(err)
	}
	return h.GetLoan(ctx, GetLoanRequest{ID: req.ID})
}

// ReturnLoan marks the loan returned.
func (h *LoanHandler) ReturnLoan(ctx context.Context, req LoanActionRequest) (*ReturnLoanResponse, error) {
	status, err := h.svc.ReturnLoan(ctx, req.ID)
	switch status {
	case models.LoanReturnSuccess:
	case models.LoanReturnLoanNotFound:
		return nil, apierrors.LoanNotFound(req.ID)
	case models.LoanReturnError:
		return nil, apierrors.Storage(err)
	default:
		return nil, apierrors.CirculationRefused(status, status.Description())
	}
	l, err := h.GetLoan(ctx, GetLoanRequest{ID: req.ID})
	if err != nil {
		return nil, err
	}
	return &ReturnLoanResponse{Status: status, Message: status.Description(), Loan: l}, nil
}

// ExtendLoan pushes the due date of the loan.
func (h *LoanHandler) ExtendLoan(ctx context.Context, req LoanActionRequest) (*ExtendLoanResponse, error) {
	status, err := h.svc.ExtendLoan(ctx, req.ID)
	switch status {
	case models.LoanExtensionSuccess:
	case models.LoanExtensionLoanNotFound:
		return nil, apierrors.LoanNotFound(req.ID)
	case models.LoanExtensionError:
		return nil, apierrors.Storage(err)
	default:
		return nil, apierrors.CirculationRefused(status, status.Description())
	}
	l, err := h.GetLoan(ctx, GetLoanRequest{ID: req.ID})
	if err != nil {
		return nil, err
	}
	return &ExtendLoanResponse{Status: status, Message: status.Description(), Loan: l}, nil
}
