package attendance

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"attendancecontrol/internal/queue"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
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
	if err := AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	return NewRepository(db)
}

// fakeClock pins now to a settable instant for the duration of a test.
type fakeClock struct{ at time.Time }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func useClock(t *testing.T, at time.Time) *fakeClock {
	t.Helper()
	c := &fakeClock{at: at}
	prev := now
	now = func() time.Time { return c.at }
	t.Cleanup(func() { now = prev })
	return c
}

type recorder struct{ kinds []string }

func (r *recorder) Publish(_ context.Context, msg queue.Message) error {
	r.kinds = append(r.kinds, msg.Type)
	return nil
}

type fixture struct {
	svc     *Service
	events  *recorder
	teacher *Teacher
	student *Student
	course  *Course
}

// newFixture creates a teacher owning one course and an unenrolled student.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	events := &recorder{}
	svc := NewService(newTestRepo(t), events, 0)

	teacher, err := svc.RegisterTeacher(ctx, Registration{Email: "teach@uni.example", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	student, err := svc.RegisterStudent(ctx, Registration{Email: "learn@uni.example", Password: "pw", StudentNr: 7})
	if err != nil {
		t.Fatal(err)
	}
	course, err := svc.CreateCourse(ctx, teacher.UserID, CourseInput{
		Name:       "Networks",
		StartTimes: []WeekDayInput{{Day: "MON", Time: "08:15"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{svc: svc, events: events, teacher: teacher, student: student, course: course}
}
