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

// PatronRepository is the patron storage used by PatronHandler.
type PatronRepository interface {
	SearchPatrons(ctx context.Context, text string) ([]*models.Patron, error)
	GetPatron(ctx context.Context, id int) (*models.Patron, error)
	UpdatePatron(ctx context.Context, patron *models.Patron) error
}

// PatronHandler handles patron HTTP requests.
type PatronHandler struct {
	patrons PatronRepository
	svc     *circulation.Service
}

// NewPatronHandler creates a PatronHandler.
func NewPatronHandler(patrons PatronRepository, svc *circulation.Service) *PatronHandler {
	return &PatronHandler{patrons: patrons, svc: svc}
}

// SearchPatronsRequest filters patrons by a name substring.
type SearchPatronsRequest struct {
	Query string `query:"q" json:"-"`
}

// SearchPatronsResponse lists the matching patrons ordered by name.
type SearchPatronsResponse struct {
	Patrons []*models.Patron `json:"patrons"`
}

// GetPatronRequest is a request to get a populated patron.
type GetPatronRequest struct {
	ID int `path:"id" json:"-"`
}

// UpdatePatronRequest replaces the stored fields of a patron.
type UpdatePatronRequest struct {
	ID              int       `path:"id" json:"-"`
	Name            string    `json:"Name"`
	ImageName       string    `json:"ImageName"`
	MembershipStart time.Time `json:"MembershipStart"`
	MembershipEnd   time.Time `json:"MembershipEnd"`
}

// RenewMembershipRequest is a request to renew a patron's membership.
type RenewMembershipRequest struct {
	ID int `path:"id" json:"-"`
}

// RenewMembershipResponse is the outcome of a successful renewal.
type RenewMembershipResponse struct {
	Status  models.MembershipRenewalStatus `json:"status"`
	Message string                         `json:"message"`
	Patron  *models.Patron                 `json:"patron"`
}

// SearchPatrons returns the patrons whose name contains the query.
func (h *PatronHandler) SearchPatrons(ctx context.Context, req SearchPatronsRequest) (*SearchPatronsResponse, error) {
	patrons, err := h.patrons.SearchPatrons(ctx, req.Query)
	if err != nil {
		return nil, apierrors.Storage(err)
	}
	if patrons == nil {
		patrons = []*models.Patron{}
	}
	return &SearchPatronsResponse{Patrons: patrons}, nil
}

// GetPatron returns the populated patron.
func (h *PatronHandler) GetPatron(ctx context.Context, req GetPatronRequest) (*models.Patron, error) {
	p, err := h.patrons.GetPatron(ctx, req.ID)
	if err != nil {
		return nil, apierrors.Storage(err)
	}
	if p == nil {
		return nil, apierrors.PatronNotFound(req.ID)
	}
	return p, nil
}

// UpdatePatron overwrites the patron and returns it populated.
func (h *PatronHandler) UpdatePatron(ctx context.Context, req UpdatePatronRequest) (*models.Patron, error) {
	switch {
	case req.Name == "":
		return nil, apierrors.MissingField("Name")
	case req.MembershipStart.IsZero():
		return nil, apierrors.MissingField("MembershipStart")
	case req.MembershipEnd.IsZero():
		return nil, apierrors.MissingField("MembershipEnd")
	case req.MembershipEnd.Before(req.MembershipStart):
		return nil, apierrors.BadRequest("MembershipEnd is before MembershipStart")
	}
	patron := &models.Patron{
		ID:              req.ID,
		Name:            req.Name,
		ImageName:       req.ImageName,
		MembershipStart: req.MembershipStart,
		MembershipEnd:   req.MembershipEnd,
	}
	if err := h.patrons.UpdatePatron(ctx, patron); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apierrors.PatronNotFound(req.ID)
		}
		return nil, apierrors.Storage(err)
	}
	return h.GetPatron(ctx, GetPatronRequest{ID: req.ID})
}

// RenewMembership extends the patron's membership.
func (h *PatronHandler) RenewMembership(ctx context.Context, req RenewMembershipRequest) (*RenewMembershipResponse, error) {
	status, err := h.svc.RenewMembership(ctx, req.ID)
	switch status {
	case models.MembershipRenewalSuccess:
	case models.MembershipRenewalPatronNotFound:
		return nil, apierrors.PatronNotFound(req.ID)
	case models.MembershipRenewalError:
		return nil, apierrors.Storage(err)
	default:
		return nil, apierrors.CirculationRefused(status, status.Description())
	}
	p, err := h.GetPatron(ctx, GetPatronRequest{ID: req.ID})
	if err != nil {
		return nil, err
	}
	return &RenewMembershipResponse{Status: status, Message: status.Description(), Patron: p}, nil
}
