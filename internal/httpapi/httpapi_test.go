package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/auth"
	"attendancecontrol/internal/queue"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *attendance.Service
	events *queue.InMemory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := attendance.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}

	events := queue.NewInMemory(256)
	svc := attendance.NewService(attendance.NewRepository(db), events, 90)
	h := New(svc, auth.NewMemoryTokenStore(), Options{
		SigningKey: "test-key",
		Issuer:     "test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	r := gin.New()
	h.Routes(r)
	return &testServer{t: t, router: r, svc: svc, events: events}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) expect(w *httptest.ResponseRecorder, status int, out any) {
	s.t.Helper()
	if w.Code != status {
		s.t.Fatalf("status %d, want %d: %s", w.Code, status, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
}

type session struct {
	User         userView `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
}

func (s *testServer) signUp(role, email string) session {
	s.t.Helper()
	var out session
	s.expect(s.do(http.MethodPost, "/v1/auth/register", "", gin.H{
		"role":       role,
		"email":      email,
		"password":   "secret-pass",
		"student_nr": 1001,
	}), http.StatusCreated, &out)
	return out
}

func TestSignUpAndLogin(t *testing.T) {
	s := newTestServer(t)

	st := s.signUp("student", "Ada@Uni.EXAMPLE")
	if st.User.Email != "Ada@uni.example" || !st.User.IsStudent || st.AccessToken == "" {
		t.Fatalf("unexpected sign-up result %+v", st)
	}

	s.expect(s.do(http.MethodPost, "/v1/auth/register", "", gin.H{
		"role": "student", "email": "Ada@uni.example", "password": "x",
	}), http.StatusConflict, nil)

	s.expect(s.do(http.MethodPost, "/v1/auth/register", "", gin.H{
		"role": "janitor", "email": "j@uni.example", "password": "x",
	}), http.StatusBadRequest, nil)

	s.expect(s.do(http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "Ada@uni.example", "password": "wrong",
	}), http.StatusUnauthorized, nil)

	var login session
	s.expect(s.do(http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "Ada@UNI.example", "password": "secret-pass",
	}), http.StatusOK, &login)
	if login.User.LastLogin == nil {
		t.Fatal("login did not stamp last_login")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	s := newTestServer(t)
	tc := s.signUp("teacher", "t@uni.example")

	var next session
	s.expect(s.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tc.RefreshToken}), http.StatusOK, &next)
	if next.AccessToken == "" || next.RefreshToken == tc.RefreshToken {
		t.Fatal("refresh did not rotate tokens")
	}
	s.expect(s.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tc.RefreshToken}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": next.AccessToken}), http.StatusUnauthorized, nil)

	s.expect(s.do(http.MethodPost, "/v1/auth/logout", "", gin.H{"refresh_token": next.RefreshToken}), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": next.RefreshToken}), http.StatusUnauthorized, nil)
}

func TestCourseSessionFlow(t *testing.T) {
	s := newTestServer(t)
	teacher := s.signUp("teacher", "teach@uni.example")
	student := s.signUp("student", "learn@uni.example")

	var course courseView
	s.expect(s.do(http.MethodPost, "/v1/teacher/courses", teacher.AccessToken, gin.H{
		"name":        "Networks",
		"start_times": []gin.H{{"day": "MON", "time": "08:15"}},
	}), http.StatusCreated, &course)
	if course.MinAttendTime != attendance.DefaultMinAttendTime || course.Duration != attendance.DefaultDuration {
		t.Fatalf("defaults not applied: %+v", course)
	}
	if len(course.StartTimes) != 1 || course.StartTimes[0].Time.String() != "08:15:00" {
		t.Fatalf("start times = %+v", course.StartTimes)
	}
	if course.Token != "" || course.IsOngoing {
		t.Fatal("new course must not have a running session")
	}
	base := fmt.Sprintf("/v1/teacher/courses/%d", course.ID)
	if course.URL != base || course.EditURL != base || course.DeleteURL != base {
		t.Fatalf("teacher urls = %+v", course)
	}

	s.expect(s.do(http.MethodGet, base, student.AccessToken, nil), http.StatusForbidden, nil)

	register := fmt.Sprintf("/v1/student/courses/%d/register/", course.ID)
	s.expect(s.do(http.MethodPost, register+"whatever", student.AccessToken, nil), http.StatusForbidden, nil)

	var started courseView
	s.expect(s.do(http.MethodPost, base+"/session", teacher.AccessToken, gin.H{"valid_time": 30}), http.StatusOK, &started)
	if started.Token == "" || !started.IsActive {
		t.Fatalf("session not started: %+v", started)
	}
	if started.RegisterURL != register+started.Token {
		t.Fatalf("register url = %q", started.RegisterURL)
	}
	if started.TokenExpiresAt == nil {
		t.Fatal("missing token expiry")
	}

	s.expect(s.do(http.MethodPost, register+"wrong-token", student.AccessToken, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodPost, register, student.AccessToken, nil), http.StatusForbidden, nil)

	var enrolled courseView
	s.expect(s.do(http.MethodPost, started.RegisterURL, student.AccessToken, nil), http.StatusOK, &enrolled)
	if enrolled.Token != "" || enrolled.RegisterURL != "" {
		t.Fatal("student view leaked the session token")
	}
	if enrolled.LeaveURL != fmt.Sprintf("/v1/student/courses/%d/leave", course.ID) {
		t.Fatalf("leave url = %q", enrolled.LeaveURL)
	}
	// enrolling twice is fine
	s.expect(s.do(http.MethodPost, started.RegisterURL, student.AccessToken, nil), http.StatusOK, nil)

	var list struct {
		Courses []courseView `json:"courses"`
	}
	s.expect(s.do(http.MethodGet, "/v1/student/courses", student.AccessToken, nil), http.StatusOK, &list)
	if len(list.Courses) != 1 || list.Courses[0].ID != course.ID {
		t.Fatalf("student courses = %+v", list.Courses)
	}

	w := s.do(http.MethodGet, base+"/roster.xlsx", teacher.AccessToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("roster: %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	var ended courseView
	s.expect(s.do(http.MethodDelete, base+"/session", teacher.AccessToken, nil), http.StatusOK, &ended)
	if ended.IsOngoing {
		t.Fatal("session still ongoing")
	}
	s.expect(s.do(http.MethodPost, started.RegisterURL, student.AccessToken, nil), http.StatusForbidden, nil)

	leave := fmt.Sprintf("/v1/student/courses/%d/leave", course.ID)
	s.expect(s.do(http.MethodPost, leave, student.AccessToken, nil), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodPost, leave, student.AccessToken, nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodGet, fmt.Sprintf("/v1/student/courses/%d", course.ID), student.AccessToken, nil), http.StatusNotFound, nil)

	kinds := drain(s.events)
	want := []string{
		attendance.EventSessionStarted,
		attendance.EventStudentEnrolled,
		attendance.EventSessionEnded,
		attendance.EventStudentLeft,
	}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
}

func TestTeacherCannotTouchForeignCourse(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp("teacher", "owner@uni.example")
	other := s.signUp("teacher", "other@uni.example")

	var course courseView
	s.expect(s.do(http.MethodPost, "/v1/teacher/courses", owner.AccessToken, gin.H{"name": "Databases"}), http.StatusCreated, &course)
	base := fmt.Sprintf("/v1/teacher/courses/%d", course.ID)

	s.expect(s.do(http.MethodPost, base+"/session", other.AccessToken, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodDelete, base, other.AccessToken, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodGet, "/v1/teacher/courses/999", owner.AccessToken, nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodGet, "/v1/teacher/courses/abc", owner.AccessToken, nil), http.StatusBadRequest, nil)

	s.expect(s.do(http.MethodPut, base, owner.AccessToken, gin.H{
		"name": "Databases", "min_attend_time": 100, "duration": 60,
	}), http.StatusBadRequest, nil)

	var updated courseView
	s.expect(s.do(http.MethodPut, base, owner.AccessToken, gin.H{
		"name": "Databases II", "min_attend_time": 30, "duration": 60,
		"start_times": []gin.H{{"day": "FRI", "time": "10:00"}, {"day": "FRI", "time": "10:00"}},
	}), http.StatusOK, &updated)
	if updated.Name != "Databases II" || len(updated.StartTimes) != 1 {
		t.Fatalf("update = %+v", updated)
	}

	s.expect(s.do(http.MethodDelete, base, owner.AccessToken, nil), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodGet, base, owner.AccessToken, nil), http.StatusNotFound, nil)
}

func TestStudentProfile(t *testing.T) {
	s := newTestServer(t)
	st := s.signUp("student", "mac@uni.example")

	var prof studentView
	s.expect(s.do(http.MethodPut, "/v1/student/profile", st.AccessToken, gin.H{"mac": "00:1b:77:49:54:fd"}), http.StatusOK, &prof)
	if prof.MAC == nil || *prof.MAC != "00-1B-77-49-54-FD" {
		t.Fatalf("mac = %v", prof.MAC)
	}
	s.expect(s.do(http.MethodPut, "/v1/student/profile", st.AccessToken, gin.H{"mac": "not-a-mac"}), http.StatusBadRequest, nil)

	s.expect(s.do(http.MethodGet, "/v1/student/profile", st.AccessToken, nil), http.StatusOK, &prof)
	if prof.StudentNr != 1001 || prof.User.Email != "mac@uni.example" {
		t.Fatalf("profile = %+v", prof)
	}
}

func TestAdminDeletesUser(t *testing.T) {
	s := newTestServer(t)
	st := s.signUp("student", "gone@uni.example")

	if _, err := s.svc.Users().CreateSuperuser(context.Background(), "root@uni.example", "root-pass", attendance.UserFields{}); err != nil {
		t.Fatal(err)
	}
	var admin session
	s.expect(s.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "root@uni.example", "password": "root-pass"}), http.StatusOK, &admin)

	target := fmt.Sprintf("/v1/admin/users/%d", st.User.ID)
	s.expect(s.do(http.MethodDelete, target, st.AccessToken, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodDelete, target, admin.AccessToken, nil), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodDelete, target, admin.AccessToken, nil), http.StatusNotFound, nil)

	s.expect(s.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "gone@uni.example", "password": "secret-pass"}), http.StatusUnauthorized, nil)
}

// drain returns the kinds of every event published so far.
func drain(q *queue.InMemory) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ch, _ := q.Consume(ctx)
	var kinds []string
	for msg := range ch {
		kinds = append(kinds, msg.Type)
	}
	return kinds
}
