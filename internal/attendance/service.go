package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"attendancecontrol/internal/metrics"
	"attendancecontrol/internal/queue"
)

// publishTimeout bounds how long a state change waits on the event queue.
const publishTimeout = 2 * time.Second

// Service coordinates course sessions, enrollment and profile changes.
type Service struct {
	repo           *Repository
	users          *UserManager
	events         Publisher
	validTime      int
	publishTimeout time.Duration
}

// NewService creates a service backed by a repository. events may be nil, in
// which case state changes are not published. validTime is the default token
// window in minutes.
func NewService(repo *Repository, events Publisher, validTime int) *Service {
	if validTime <= 0 {
		validTime = DefaultValidTime
	}
	return &Service{
		repo:           repo,
		users:          NewUserManager(repo),
		events:         events,
		validTime:      validTime,
		publishTimeout: publishTimeout,
	}
}

// Users exposes the user manager sharing this service's repository.
func (s *Service) Users() *UserManager { return s.users }

func (s *Service) publish(ctx context.Context, kind string, courseID uint, userID *uint) {
	if s.events == nil {
		return
	}
	// The change is committed: a stalled queue must not hold the caller and
	// a cancelled request must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	msg, err := EncodeEvent(NewEvent(kind, courseID, userID))
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("attendance: publish %s for course %d failed: %v", kind, courseID, err)
	}
}

// Registration is the input for creating a student or teacher account.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	StudentNr int    `json:"student_nr" validate:"gte=0"`
	MAC       string `json:"mac"`
}

// RegisterStudent creates a user flagged as student together with its
// profile.
func (s *Service) RegisterStudent(ctx context.Context, reg Registration) (*Student, error) {
	if err := validateStruct(reg); err != nil {
		return nil, err
	}
	mac, err := NormalizeMAC(reg.MAC)
	if err != nil {
		return nil, err
	}
	u, err := buildUser(reg.Email, reg.Password, UserFields{FirstName: reg.FirstName, LastName: reg.LastName, IsStudent: true})
	if err != nil {
		return nil, err
	}
	st := &Student{StudentNr: reg.StudentNr, MAC: mac}
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		st.UserID = u.ID
		return tx.CreateStudent(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	st.User = u
	return st, nil
}

// RegisterTeacher creates a user flagged as teacher together with its
// profile.
func (s *Service) RegisterTeacher(ctx context.Context, reg Registration) (*Teacher, error) {
	u, err := buildUser(reg.Email, reg.Password, UserFields{FirstName: reg.FirstName, LastName: reg.LastName, IsTeacher: true})
	if err != nil {
		return nil, err
	}
	t := &Teacher{}
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		t.UserID = u.ID
		return tx.CreateTeacher(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	t.User = u
	return t, nil
}

// User returns the account with the given id.
func (s *Service) User(ctx context.Context, userID uint) (*User, error) {
	return s.repo.UserByID(ctx, userID)
}

// Student returns the student profile of a user.
func (s *Service) Student(ctx context.Context, userID uint) (*Student, error) {
	st, err := s.repo.StudentByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotStudent
	}
	return st, err
}

// Teacher returns the teacher profile of a user.
func (s *Service) Teacher(ctx context.Context, userID uint) (*Teacher, error) {
	t, err := s.repo.TeacherByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotTeacher
	}
	return t, err
}

// SetStudentMAC validates and stores the device address of a student. An
// empty address clears it.
func (s *Service) SetStudentMAC(ctx context.Context, userID uint, raw string) (*string, error) {
	mac, err := NormalizeMAC(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStudentMAC(ctx, userID, mac); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotStudent
		}
		return nil, err
	}
	return mac, nil
}

// DeleteUser removes an account and its profiles.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	return s.repo.DeleteUser(ctx, userID)
}

// ---- teacher side ----

// TeacherCourses lists the courses taught by a teacher.
func (s *Service) TeacherCourses(ctx context.Context, teacherID uint) ([]Course, error) {
	return s.repo.CoursesForTeacher(ctx, teacherID)
}

// TeacherCourse loads a course the teacher teaches.
func (s *Service) TeacherCourse(ctx context.Context, teacherID, courseID uint) (*Course, error) {
	c, err := s.repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.IsCourseTeacher(ctx, teacherID, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCourseTeacher
	}
	return c, nil
}

// CreateCourse creates a course taught by the given teacher.
func (s *Service) CreateCourse(ctx context.Context, teacherID uint, in CourseInput) (*Course, error) {
	if _, err := s.Teacher(ctx, teacherID); err != nil {
		return nil, err
	}
	c := &Course{}
	days, err := in.apply(c)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateCourse(ctx, c, days, teacherID); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCourse replaces the editable attributes and the schedule of a course.
func (s *Service) UpdateCourse(ctx context.Context, teacherID, courseID uint, in CourseInput) (*Course, error) {
	c, err := s.TeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, err
	}
	days, err := in.apply(c)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCourse(ctx, c, days); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCourse removes a course the teacher teaches.
func (s *Service) DeleteCourse(ctx context.Context, teacherID, courseID uint) error {
	if _, err := s.TeacherCourse(ctx, teacherID, courseID); err != nil {
		return err
	}
	if err := s.repo.DeleteCourse(ctx, courseID); err != nil {
		return err
	}
	s.publish(ctx, EventCourseDeleted, courseID, &teacherID)
	return nil
}

// StartSession issues a new access token for the course and marks the
// session ongoing. validTime <= 0 uses the service default.
func (s *Service) StartSession(ctx context.Context, teacherID, courseID uint, validTime int) (*Course, error) {
	c, err := s.TeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, err
	}
	if validTime <= 0 {
		validTime = s.validTime
	}
	if err := s.repo.StartSession(ctx, c, validTime); err != nil {
		return nil, err
	}
	metrics.TokensIssued.Inc()
	s.publish(ctx, EventSessionStarted, courseID, &teacherID)
	return c, nil
}

// EndSession stops the running session of a course.
func (s *Service) EndSession(ctx context.Context, teacherID, courseID uint) (*Course, error) {
	c, err := s.TeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, err
	}
	if !c.IsOngoing {
		return c, nil
	}
	if err := s.repo.SetOngoing(ctx, false, courseID); err != nil {
		return nil, err
	}
	c.IsOngoing = false
	metrics.SessionsClosed.WithLabelValues("manual").Inc()
	s.publish(ctx, EventSessionEnded, courseID, &teacherID)
	return c, nil
}

// Roster returns the course and the students enrolled in it.
func (s *Service) Roster(ctx context.Context, teacherID, courseID uint) (*Course, []Student, error) {
	c, err := s.TeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, nil, err
	}
	students, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	return c, students, nil
}

// CourseEvents lists recorded events of a course the teacher teaches.
func (s *Service) CourseEvents(ctx context.Context, teacherID, courseID uint, limit, offset int) ([]CourseEvent, error) {
	if _, err := s.TeacherCourse(ctx, teacherID, courseID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, courseID, limit, offset)
}

// CloseExpiredSessions ends every ongoing session whose token has expired
// at the given instant and returns how many were closed.
func (s *Service) CloseExpiredSessions(ctx context.Context, at time.Time) (int, error) {
	courses, err := s.repo.OngoingCourses(ctx)
	if err != nil {
		return 0, err
	}
	var ids []uint
	for i := range courses {
		c := &courses[i]
		if c.AccessToken != nil && c.AccessToken.IsTokenExpiredAt(at, 0) {
			ids = append(ids, c.ID)
		}
	}
	if err := s.repo.SetOngoing(ctx, false, ids...); err != nil {
		return 0, err
	}
	for _, id := range ids {
		metrics.SessionsClosed.WithLabelValues("expired").Inc()
		s.publish(ctx, EventSessionExpired, id, nil)
	}
	return len(ids), nil
}

// RecordEvent stores an event consumed from the queue.
func (s *Service) RecordEvent(ctx context.Context, evt CourseEvent) error {
	if err := s.repo.InsertEvent(ctx, &evt); err != nil {
		return err
	}
	metrics.EventsRecorded.WithLabelValues(evt.Kind).Inc()
	return nil
}

// RecordEvents stores every decodable event from messages until the channel
// closes. Undecodable messages and store failures are logged and skipped.
func (s *Service) RecordEvents(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		evt, err := DecodeEvent(msg)
		if err != nil {
			log.Printf("attendance: dropping message: %v", err)
			continue
		}
		if err := s.RecordEvent(ctx, evt); err != nil {
			log.Printf("attendance: record event %s (%s) failed: %v", evt.ID, evt.Kind, err)
			continue
		}
		log.Printf("attendance: event %s: %s on course %d", evt.ID, evt.Kind, evt.CourseID)
	}
}

// ---- student side ----

// StudentCourse loads a course the student is enrolled in.
func (s *Service) StudentCourse(ctx context.Context, studentID, courseID uint) (*Course, error) {
	c, err := s.repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Enroll registers a student for a course using the token of its running
// session. Enrolling twice is not an error.
func (s *Service) Enroll(ctx context.Context, studentID, courseID uint, token string) (*Course, error) {
	if _, err := s.Student(ctx, studentID); err != nil {
		return nil, err
	}
	c, err := s.repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := checkSessionToken(c, token, now()); err != nil {
		metrics.Enrollments.WithLabelValues(enrollResult(err)).Inc()
		return nil, err
	}
	added, err := s.repo.Enroll(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if added {
		metrics.Enrollments.WithLabelValues("ok").Inc()
		s.publish(ctx, EventStudentEnrolled, courseID, &studentID)
	} else {
		metrics.Enrollments.WithLabelValues("already").Inc()
	}
	return c, nil
}

// checkSessionToken decides whether token admits a student into c at the
// given instant.
func checkSessionToken(c *Course, token string, at time.Time) error {
	if !c.IsOngoing || c.AccessToken == nil {
		return ErrSessionInactive
	}
	if !c.AccessToken.IsTokenValid(token) {
		return ErrTokenInvalid
	}
	if c.AccessToken.IsTokenExpiredAt(at, 0) {
		return ErrTokenExpired
	}
	return nil
}

func enrollResult(err error) string {
	switch {
	case errors.Is(err, ErrSessionInactive):
		return "inactive"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		return "expired_token"
	default:
		return "error"
	}
}

// Leave removes a student from a course.
func (s *Service) Leave(ctx context.Context, studentID, courseID uint) error {
	removed, err := s.repo.Unenroll(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	s.publish(ctx, EventStudentLeft, courseID, &studentID)
	return nil
}
