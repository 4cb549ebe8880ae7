package borrows

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LBMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r *gin.RouterGroup, svc *Service, requireAuth gin.HandlerFunc) {
	h := &Handler{svc: svc}

	// 窓口キオスク運用のため貸出・ウェイトリスト登録は認証不要
	r.POST("/borrow/:bookId", h.Borrow)
	r.GET("/token/:tokenId", h.TokenInfo)
	r.GET("/borrowed", h.ListBorrowed)
	r.POST("/waitlist/:bookId", h.JoinWaitlist)
	r.GET("/waitlist/:bookId", h.GetWaitlist)

	protected := r.Group("", requireAuth)
	protected.GET("/my-borrowed", h.MyBorrowed)
	protected.GET("/my-history", h.MyHistory)
	protected.PUT("/return/:borrowId", h.Return)
}

// POST /borrow/:bookId
func (h *Handler) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	detail, err := h.svc.Borrow(c.Request.Context(), c.Param("bookId"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Book borrowed successfully",
		"borrow":  toBorrowView(detail),
	})
}

// GET /token/:tokenId
func (h *Handler) TokenInfo(c *gin.Context) {
	detail, err := h.svc.TokenInfo(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, toBorrowView(detail))
}

// GET /borrowed
func (h *Handler) ListBorrowed(c *gin.Context) {
	details, err := h.svc.ListBorrowed(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, toBorrowViews(details))
}

// GET /my-borrowed
func (h *Handler) MyBorrowed(c *gin.Context) {
	studentID, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token provided"})
		return
	}

	details, err := h.svc.ListMyBorrowed(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	views := toBorrowViews(details)
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(views), "data": views})
}

// GET /my-history
func (h *Handler) MyHistory(c *gin.Context) {
	studentID, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token provided"})
		return
	}

	details, err := h.svc.ListMyHistory(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}
	c.JSON(http.StatusOK, toBorrowViews(details))
}

// PUT /return/:borrowId
func (h *Handler) Return(c *gin.Context) {
	studentID, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token provided"})
		return
	}

	detail, onTime, err := h.svc.Return(c.Request.Context(), c.Param("borrowId"), studentID)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Book returned successfully",
		"returnedOnTime": onTime,
		"borrow":         toBorrowView(detail),
	})
}

// POST /waitlist/:bookId
func (h *Handler) JoinWaitlist(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	position, err := h.svc.JoinWaitlist(c.Request.Context(), c.Param("bookId"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Added to waitlist successfully",
		"position": position,
	})
}

// GET /waitlist/:bookId
func (h *Handler) GetWaitlist(c *gin.Context) {
	entries, err := h.svc.GetWaitlist(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"message": errMessage(err)})
		return
	}

	views := make([]WaitlistEntryView, 0, len(entries))
	for i := range entries {
		views = append(views, WaitlistEntryView{
			Student: toStudentSummary(&entries[i].Student),
			AddedAt: entries[i].AddedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}
