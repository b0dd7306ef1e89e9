package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/requestdata"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type FineHandler struct {
	log         *logger.Logger
	fineService services.FineService
}

func NewFineHandler(log *logger.Logger, fineService services.FineService) *FineHandler {
	handlerLog := log.With("handler", "FineHandler")
	return &FineHandler{log: handlerLog, fineService: fineService}
}

type settleFineRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

func (fh *FineHandler) Settle(c *gin.Context) {
	fineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}
	var req settleFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	if err := fh.fineService.Settle(c.Request.Context(), fineID, req.Outcome); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": req.Outcome})
}

type assessFineRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
	Amount        float64   `json:"amount" binding:"required"`
	Reason        string    `json:"reason" binding:"required"`
}

func (fh *FineHandler) Assess(c *gin.Context) {
	var req assessFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	fine, err := fh.fineService.Assess(c.Request.Context(), req.TransactionID, req.Amount, req.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, fine)
}

type correctFineRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

// CorrectTransaction restamps the fine recorded on a closed checkout.
func (fh *FineHandler) CorrectTransaction(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}
	var req correctFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	if err := fh.fineService.CorrectTransactionFine(c.Request.Context(), transactionID, *req.Amount); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"fine_amount": *req.Amount})
}

// Preview answers "what would this return cost today" without committing
// anything.
func (fh *FineHandler) Preview(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Query("transaction_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}
	returnDate := time.Now().UTC()
	if raw := c.Query("return_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION", err)
			return
		}
		returnDate = parsed
	}

	amount, err := fh.fineService.Preview(c.Request.Context(), transactionID, returnDate)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"fine_amount": amount})
}

func (fh *FineHandler) ListMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd.MemberID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errMissingMember)
		return
	}
	fines, err := fh.fineService.ListMemberFines(c.Request.Context(), rd.MemberID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, fines)
}
