package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type MemberHandler struct {
	log           *logger.Logger
	memberService services.MemberService
}

func NewMemberHandler(log *logger.Logger, memberService services.MemberService) *MemberHandler {
	handlerLog := log.With("handler", "MemberHandler")
	return &MemberHandler{log: handlerLog, memberService: memberService}
}

func (mh *MemberHandler) Register(c *gin.Context) {
	var input services.RegisterMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	member, err := mh.memberService.Register(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, member)
}

func (mh *MemberHandler) Get(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	member, err := mh.memberService.GetByID(c.Request.Context(), memberID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, member)
}

// Lookup resolves a member by the membership number on their card.
func (mh *MemberHandler) Lookup(c *gin.Context) {
	number := c.Query("number")

	member, err := mh.memberService.GetByMembershipNumber(c.Request.Context(), number)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, member)
}

func (mh *MemberHandler) Suspend(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}
	if err := mh.memberService.Suspend(c.Request.Context(), memberID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "suspended"})
}

func (mh *MemberHandler) Reactivate(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}
	if err := mh.memberService.Reactivate(c.Request.Context(), memberID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "active"})
}
