package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h *Handler) StudentCourses(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	st, err := h.svc.Student(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courseViews(st.Courses, studentCourseView)})
}

func (h *Handler) StudentCourse(c *gin.Context) {
	studentID, courseID, ok := ids(c)
	if !ok {
		return
	}
	course, err := h.svc.StudentCourse(c.Request.Context(), studentID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, studentCourseView(course))
}

// RegisterCourse enrolls the caller using the token embedded in the path.
func (h *Handler) RegisterCourse(c *gin.Context) {
	studentID, courseID, ok := ids(c)
	if !ok {
		return
	}
	token := strings.TrimPrefix(c.Param("token"), "/")
	course, err := h.svc.Enroll(c.Request.Context(), studentID, courseID, token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, studentCourseView(course))
}

func (h *Handler) LeaveCourse(c *gin.Context) {
	studentID, courseID, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), studentID, courseID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) StudentProfile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	st, err := h.svc.Student(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStudentView(st))
}

// UpdateStudentProfile sets or clears the device address.
func (h *Handler) UpdateStudentProfile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	var req struct {
		MAC string `json:"mac"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.svc.SetStudentMAC(ctx, id, req.MAC); err != nil {
		writeError(c, err)
		return
	}
	st, err := h.svc.Student(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStudentView(st))
}
