package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r *gin.RouterGroup, svc *Service, requireAuth gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	protected := r.Group("", requireAuth)
	protected.GET("/auth/profile", h.GetProfile)
	protected.PUT("/auth/profile", h.UpdateProfile)
	protected.POST("/auth/logout", h.Logout)
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	student, token, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		failJSON(c, ToHTTPStatus(err), errMessage(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"student": student,
		"token":   token,
	})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	student, token, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		failJSON(c, ToHTTPStatus(err), errMessage(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"student": student,
		"token":   token,
	})
}

// GET /auth/profile
func (h *Handler) GetProfile(c *gin.Context) {
	studentULID, ok := StudentULID(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "Not authorized, no token provided")
		return
	}

	student, err := h.svc.Profile(c.Request.Context(), studentULID)
	if err != nil {
		failJSON(c, ToHTTPStatus(err), errMessage(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "student": student})
}

// PUT /auth/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	studentULID, ok := StudentULID(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "Not authorized, no token provided")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	student, token, err := h.svc.UpdateProfile(c.Request.Context(), studentULID, req)
	if err != nil {
		failJSON(c, ToHTTPStatus(err), errMessage(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"student": student,
		"token":   token,
	})
}

// POST /auth/logout
// JWTなのでサーバ側の状態はなく、クライアントがトークンを破棄する
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
}

func failJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}
