package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/requestdata"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type CirculationHandler struct {
	log                *logger.Logger
	circulationService services.CirculationService
}

func NewCirculationHandler(log *logger.Logger, circulationService services.CirculationService) *CirculationHandler {
	handlerLog := log.With("handler", "CirculationHandler")
	return &CirculationHandler{log: handlerLog, circulationService: circulationService}
}

type checkoutRequest struct {
	BookID   uuid.UUID  `json:"book_id" binding:"required"`
	MemberID *uuid.UUID `json:"member_id"`
}

// Checkout issues a copy. Librarians may check out on behalf of any member;
// member callers are scoped to themselves (self-service, no librarian id on
// the transaction).
func (ch *CirculationHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	memberID, librarianID, err := resolveActor(rd, req.MemberID)
	if err != nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", err)
		return
	}

	result, err := ch.circulationService.Checkout(c.Request.Context(), req.BookID, memberID, librarianID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

type returnRequest struct {
	TransactionID uuid.UUID  `json:"transaction_id" binding:"required"`
	ReturnDate    *time.Time `json:"return_date"`
}

// Return closes a loan. Members may only return their own transactions;
// privileged callers return any.
func (ch *CirculationHandler) Return(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	scope, err := loanScope(rd)
	if err != nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", err)
		return
	}

	result, err := ch.circulationService.Return(c.Request.Context(), req.TransactionID, req.ReturnDate, scope)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

type renewRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
}

func (ch *CirculationHandler) Renew(c *gin.Context) {
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	scope, err := loanScope(rd)
	if err != nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", err)
		return
	}

	result, err := ch.circulationService.Renew(c.Request.Context(), req.TransactionID, scope)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

// ListMine lists the caller's open loans.
func (ch *CirculationHandler) ListMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.MemberID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errMissingMember)
		return
	}

	loans, err := ch.circulationService.ListMemberLoans(c.Request.Context(), rd.MemberID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, loans)
}

// Overdue is the staff report of open loans past their due date.
func (ch *CirculationHandler) Overdue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	overdue, err := ch.circulationService.ListOverdue(c.Request.Context(), limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, overdue)
}

// loanScope decides whose transactions the caller may touch: nil for
// privileged callers (any member's), the caller's own member id otherwise.
func loanScope(rd *requestdata.RequestData) (*uuid.UUID, error) {
	if rd == nil {
		return nil, fmt.Errorf("missing request identity")
	}
	if rd.IsPrivileged() {
		return nil, nil
	}
	if rd.MemberID == uuid.Nil {
		return nil, errMissingMember
	}
	member := rd.MemberID
	return &member, nil
}

// resolveActor decides who the operation is for and who performed it.
func resolveActor(rd *requestdata.RequestData, requested *uuid.UUID) (memberID uuid.UUID, librarianID *uuid.UUID, err error) {
	if rd == nil {
		return uuid.Nil, nil, fmt.Errorf("missing request identity")
	}
	if rd.IsPrivileged() {
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, nil, fmt.Errorf("member_id is required for librarian checkout")
		}
		librarian := rd.ProfileID
		return *requested, &librarian, nil
	}
	if requested != nil && *requested != rd.MemberID {
		return uuid.Nil, nil, fmt.Errorf("members may only act on their own account")
	}
	if rd.MemberID == uuid.Nil {
		return uuid.Nil, nil, fmt.Errorf("caller has no member record")
	}
	return rd.MemberID, nil, nil
}
