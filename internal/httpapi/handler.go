// Package httpapi exposes the attendance service over HTTP with gin.
package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/auth"
	"attendancecontrol/internal/urls"
)

// Options configure token issuing.
type Options struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc    *attendance.Service
	tokens auth.TokenStore
	opts   Options
}

func New(svc *attendance.Service, tokens auth.TokenStore, opts Options) *Handler {
	return &Handler{svc: svc, tokens: tokens, opts: opts}
}

// Routes mounts every named route on r.
func (h *Handler) Routes(r gin.IRoutes) {
	authed := auth.UserAuth(h.opts.SigningKey, h.opts.Issuer)
	student := chain(authed, auth.RequireRole(auth.RoleStudent))
	teacher := chain(authed, auth.RequireRole(auth.RoleTeacher))
	admin := chain(authed, auth.RequireRole(auth.RoleAdmin))

	r.POST(urls.Pattern("auth:register"), h.SignUp)
	r.POST(urls.Pattern("auth:login"), h.Login)
	r.POST(urls.Pattern("auth:refresh"), h.Refresh)
	r.POST(urls.Pattern("auth:logout"), h.Logout)

	r.GET(urls.Pattern("student:index"), student(h.StudentCourses)...)
	r.GET(urls.Pattern("student:detail"), student(h.StudentCourse)...)
	r.POST(urls.Pattern("student:leave_course"), student(h.LeaveCourse)...)
	r.POST(urls.Pattern("student:register_course"), student(h.RegisterCourse)...)
	r.GET(urls.Pattern("student:profile"), student(h.StudentProfile)...)
	r.PUT(urls.Pattern("student:profile"), student(h.UpdateStudentProfile)...)

	r.GET(urls.Pattern("teacher:index"), teacher(h.TeacherCourses)...)
	r.POST(urls.Pattern("teacher:create"), teacher(h.CreateCourse)...)
	r.GET(urls.Pattern("teacher:detail"), teacher(h.TeacherCourse)...)
	r.PUT(urls.Pattern("teacher:edit"), teacher(h.UpdateCourse)...)
	r.DELETE(urls.Pattern("teacher:delete"), teacher(h.DeleteCourse)...)
	r.POST(urls.Pattern("teacher:start_session"), teacher(h.StartSession)...)
	r.DELETE(urls.Pattern("teacher:end_session"), teacher(h.EndSession)...)
	r.GET(urls.Pattern("teacher:roster"), teacher(h.Roster)...)
	r.GET(urls.Pattern("teacher:events"), teacher(h.CourseEvents)...)

	r.DELETE(urls.Pattern("admin:delete_user"), admin(h.DeleteUser)...)
}

// chain returns a helper prefixing handlers with the given middleware.
func chain(mw ...gin.HandlerFunc) func(gin.HandlerFunc) []gin.HandlerFunc {
	return func(fn gin.HandlerFunc) []gin.HandlerFunc {
		out := make([]gin.HandlerFunc, 0, len(mw)+1)
		out = append(out, mw...)
		return append(out, fn)
	}
}

// callerID returns the user id carried in the access token subject.
func callerID(c *gin.Context) (uint, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// ids resolves the caller and the :id path parameter, writing an error
// response when either is unusable.
func ids(c *gin.Context) (caller, target uint, ok bool) {
	caller, ok = callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return 0, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, 0, false
	}
	return caller, uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *attendance.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, attendance.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnknownRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInactiveUser),
		errors.Is(err, attendance.ErrNotStudent),
		errors.Is(err, attendance.ErrNotTeacher),
		errors.Is(err, attendance.ErrNotCourseTeacher),
		errors.Is(err, attendance.ErrSessionInactive),
		errors.Is(err, attendance.ErrTokenInvalid),
		errors.Is(err, attendance.ErrTokenExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("httpapi: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
