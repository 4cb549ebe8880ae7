package books

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/categories", h.ListCategories)
	r.GET("/books/:category", h.ListByCategory)
	r.GET("/book/:id", h.GetByID)
}

// GET /categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, categories)
}

// GET /books/:category
func (h *Handler) ListByCategory(c *gin.Context) {
	views, err := h.svc.ListByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /book/:id
func (h *Handler) GetByID(c *gin.Context) {
	detail, err := h.svc.GetByULID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, detail)
}
