package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/requestdata"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type ReservationHandler struct {
	log                *logger.Logger
	reservationService services.ReservationService
}

func NewReservationHandler(log *logger.Logger, reservationService services.ReservationService) *ReservationHandler {
	handlerLog := log.With("handler", "ReservationHandler")
	return &ReservationHandler{log: handlerLog, reservationService: reservationService}
}

type placeHoldRequest struct {
	BookID   uuid.UUID  `json:"book_id" binding:"required"`
	MemberID *uuid.UUID `json:"member_id"`
}

func (rh *ReservationHandler) PlaceHold(c *gin.Context) {
	var req placeHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	memberID, _, err := resolveActor(rd, req.MemberID)
	if err != nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", err)
		return
	}

	result, err := rh.reservationService.PlaceHold(c.Request.Context(), req.BookID, memberID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

func (rh *ReservationHandler) CancelHold(c *gin.Context) {
	holdID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	if err := rh.reservationService.CancelHold(c.Request.Context(), holdID, rd.MemberID, rd.IsPrivileged()); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "cancelled"})
}

func (rh *ReservationHandler) ListMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd.MemberID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errMissingMember)
		return
	}
	holds, err := rh.reservationService.ListMemberHolds(c.Request.Context(), rd.MemberID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, holds)
}
