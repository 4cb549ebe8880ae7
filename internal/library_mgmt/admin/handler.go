package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// ログイン以外は requireAuth + requireAdmin を通す
func RegisterRoutes(r *gin.RouterGroup, svc *Service, requireAuth, requireAdmin gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.POST("/admin/login", h.Login)

	protected := r.Group("/admin", requireAuth, requireAdmin)
	protected.GET("/stats", h.Stats)
	protected.POST("/book", h.CreateBook)
	protected.GET("/books", h.ListBooks)
	protected.PUT("/book/:id", h.UpdateBook)
	protected.DELETE("/book/:id", h.DeleteBook)
}

// POST /admin/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request", "success": false})
		return
	}

	token, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err), "success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "success": true, "token": token})
}

// GET /admin/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// POST /admin/book
func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	book, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Book added successfully", "book": book})
}

// GET /admin/books
func (h *Handler) ListBooks(c *gin.Context) {
	views, err := h.svc.ListBooks(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, views)
}

// PUT /admin/book/:id
func (h *Handler) UpdateBook(c *gin.Context) {
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	book, err := h.svc.UpdateBook(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Book updated successfully", "book": book})
}

// DELETE /admin/book/:id
func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.svc.DeleteBook(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}
