package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type BookHandler struct {
	log         *logger.Logger
	bookService services.BookService
}

func NewBookHandler(log *logger.Logger, bookService services.BookService) *BookHandler {
	handlerLog := log.With("handler", "BookHandler")
	return &BookHandler{log: handlerLog, bookService: bookService}
}

func (bh *BookHandler) Create(c *gin.Context) {
	var input services.CreateBookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	book, err := bh.bookService.Create(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, book)
}

func (bh *BookHandler) Get(c *gin.Context) {
	bookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	book, err := bh.bookService.GetByID(c.Request.Context(), bookID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, book)
}

func (bh *BookHandler) Delete(c *gin.Context) {
	bookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION", err)
		return
	}

	if err := bh.bookService.Delete(c.Request.Context(), bookID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (bh *BookHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	books, err := bh.bookService.List(c.Request.Context(), limit, offset)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, books)
}
