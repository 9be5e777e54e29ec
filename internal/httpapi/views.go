package httpapi

import (
	"time"

	"attendancecontrol/internal/attendance"
)

type courseView struct {
	ID             uint                 `json:"id"`
	UUID           string               `json:"uuid"`
	Name           string               `json:"name"`
	MinAttendTime  int                  `json:"min_attend_time"`
	Duration       int                  `json:"duration"`
	StartTimes     []attendance.WeekDay `json:"start_times"`
	IsOngoing      bool                 `json:"is_ongoing"`
	IsActive       bool                 `json:"is_active"`
	URL            string               `json:"url"`
	LeaveURL       string               `json:"leave_url,omitempty"`
	EditURL        string               `json:"edit_url,omitempty"`
	DeleteURL      string               `json:"delete_url,omitempty"`
	RegisterURL    string               `json:"register_url,omitempty"`
	Token          string               `json:"token,omitempty"`
	TokenExpiresAt *time.Time           `json:"token_expires_at,omitempty"`
}

func baseCourseView(c *attendance.Course) courseView {
	startTimes := c.StartTimes
	if startTimes == nil {
		startTimes = []attendance.WeekDay{}
	}
	return courseView{
		ID:            c.ID,
		UUID:          c.UUID.String(),
		Name:          c.Name,
		MinAttendTime: c.MinAttendTime,
		Duration:      c.Duration,
		StartTimes:    startTimes,
		IsOngoing:     c.IsOngoing,
		IsActive:      c.IsActive(time.Now()),
	}
}

// studentCourseView hides the session token.
func studentCourseView(c *attendance.Course) courseView {
	v := baseCourseView(c)
	v.URL = c.StudentURL()
	v.LeaveURL = c.StudentLeaveURL()
	return v
}

// teacherCourseView includes the session token and the link students use
// to register with it.
func teacherCourseView(c *attendance.Course) courseView {
	v := baseCourseView(c)
	v.URL = c.TeacherURL()
	v.EditURL = c.TeacherEditURL()
	v.DeleteURL = c.TeacherDeleteURL()
	if c.AccessToken != nil {
		v.Token = c.AccessToken.Token
		v.RegisterURL = c.StudentRegisterURL()
		exp := c.AccessToken.ExpiresAt(0)
		v.TokenExpiresAt = &exp
	}
	return v
}

func courseViews(courses []attendance.Course, view func(*attendance.Course) courseView) []courseView {
	out := make([]courseView, 0, len(courses))
	for i := range courses {
		out = append(out, view(&courses[i]))
	}
	return out
}

type userView struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsStudent   bool       `json:"is_student"`
	IsTeacher   bool       `json:"is_teacher"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func newUserView(u *attendance.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsStudent:   u.IsStudent,
		IsTeacher:   u.IsTeacher,
		IsSuperuser: u.IsSuperuser,
		LastLogin:   u.LastLogin,
	}
}

type studentView struct {
	User      userView `json:"user"`
	StudentNr int      `json:"student_nr"`
	MAC       *string  `json:"mac"`
}

func newStudentView(s *attendance.Student) studentView {
	v := studentView{StudentNr: s.StudentNr, MAC: s.MAC}
	if s.User != nil {
		v.User = newUserView(s.User)
	}
	return v
}
