package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) TeacherCourses(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	courses, err := h.svc.TeacherCourses(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courseViews(courses, teacherCourseView)})
}

func (h *Handler) TeacherCourse(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	course, err := h.svc.TeacherCourse(c.Request.Context(), teacherID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teacherCourseView(course))
}

func (h *Handler) CreateCourse(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	var in attendance.CourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	course, err := h.svc.CreateCourse(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, teacherCourseView(course))
}

func (h *Handler) UpdateCourse(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	var in attendance.CourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	course, err := h.svc.UpdateCourse(c.Request.Context(), teacherID, courseID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teacherCourseView(course))
}

func (h *Handler) DeleteCourse(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCourse(c.Request.Context(), teacherID, courseID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartSession issues a fresh token. The optional valid_time body field
// overrides the default window in minutes.
func (h *Handler) StartSession(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	var req struct {
		ValidTime int `json:"valid_time" binding:"gte=0"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	course, err := h.svc.StartSession(c.Request.Context(), teacherID, courseID, req.ValidTime)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teacherCourseView(course))
}

func (h *Handler) EndSession(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	course, err := h.svc.EndSession(c.Request.Context(), teacherID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teacherCourseView(course))
}

// Roster downloads the enrolled students as an xlsx workbook.
func (h *Handler) Roster(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	course, students, err := h.svc.Roster(c.Request.Context(), teacherID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRoster(&buf, course, students); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.xlsx"`, course.UUID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) CourseEvents(c *gin.Context) {
	teacherID, courseID, ok := ids(c)
	if !ok {
		return
	}
	limit, offset := queryInt(c, "limit", 50), queryInt(c, "offset", 0)
	events, err := h.svc.CourseEvents(c.Request.Context(), teacherID, courseID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
