package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/auth"
)

type signUpRequest struct {
	attendance.Registration
	Role string `json:"role" binding:"required,oneof=student teacher"`
}

// SignUp creates a student or teacher account and logs it in.
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var u *attendance.User
	if req.Role == auth.RoleStudent {
		st, err := h.svc.RegisterStudent(ctx, req.Registration)
		if err != nil {
			writeError(c, err)
			return
		}
		u = st.User
	} else {
		t, err := h.svc.RegisterTeacher(ctx, req.Registration)
		if err != nil {
			writeError(c, err)
			return
		}
		u = t.User
	}

	h.issue(c, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.Users().Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issue(c, http.StatusOK, u)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token. Roles are recomputed from the stored user
// so flag changes apply on the next refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	claims, err := auth.Parse(req.RefreshToken, h.opts.SigningKey, h.opts.Issuer)
	if err != nil || claims.Kind != auth.KindRefresh {
		writeError(c, auth.ErrUnknownRefreshToken)
		return
	}
	subject, err := h.tokens.Lookup(ctx, req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	if subject != claims.Subject {
		writeError(c, auth.ErrUnknownRefreshToken)
		return
	}
	if err := h.tokens.Revoke(ctx, req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}

	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		writeError(c, auth.ErrUnknownRefreshToken)
		return
	}
	u, err := h.svc.User(ctx, uint(id))
	if err != nil {
		writeError(c, auth.ErrUnknownRefreshToken)
		return
	}
	if !u.IsActive {
		writeError(c, attendance.ErrInactiveUser)
		return
	}
	h.issue(c, http.StatusOK, u)
}

func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// issue signs a token pair for u, remembers the refresh token and writes it
// out with the user.
func (h *Handler) issue(c *gin.Context, status int, u *attendance.User) {
	subject := strconv.FormatUint(uint64(u.ID), 10)
	tokens, err := auth.Issue(subject, rolesFor(u), h.opts.Issuer, h.opts.SigningKey, h.opts.AccessTTL, h.opts.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.tokens.Save(c.Request.Context(), tokens.RefreshToken, subject, tokens.RefreshExp); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"user":          newUserView(u),
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func rolesFor(u *attendance.User) []string {
	var roles []string
	if u.IsStudent {
		roles = append(roles, auth.RoleStudent)
	}
	if u.IsTeacher {
		roles = append(roles, auth.RoleTeacher)
	}
	if u.IsSuperuser {
		roles = append(roles, auth.RoleAdmin)
	}
	return roles
}

// DeleteUser removes an account with its profiles and course links.
func (h *Handler) DeleteUser(c *gin.Context) {
	_, id, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
