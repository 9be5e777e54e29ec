package attendance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository persists attendance data through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate creates the tables for every model. Production databases are
// migrated with the SQL files in internal/store instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &WeekDay{}, &AccessToken{}, &Course{}, &Student{}, &Teacher{}, &CourseEvent{})
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Transaction runs fn with a repository bound to a single transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// ---- users ----

// CreateUser inserts u, rejecting duplicate emails.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrEmailTaken
	}
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// UserByEmail returns the user with the given, already normalized, email.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByID returns a single user.
func (r *Repository) UserByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("last_login", at).Error
}

// DeleteUser removes a user together with its student and teacher profiles
// and their course links.
func (r *Repository) DeleteUser(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []string{
			"DELETE FROM student_courses WHERE student_id = ?",
			"DELETE FROM teacher_courses WHERE teacher_id = ?",
			"DELETE FROM students WHERE user_id = ?",
			"DELETE FROM teachers WHERE user_id = ?",
		}
		for _, q := range steps {
			if err := tx.Exec(q, id).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ---- profiles ----

// CreateStudent inserts a student profile for an existing user.
func (r *Repository) CreateStudent(ctx context.Context, s *Student) error {
	return r.db.WithContext(ctx).Omit("User", "Courses").Create(s).Error
}

// StudentByUserID loads a student with its user and enrolled courses.
func (r *Repository) StudentByUserID(ctx context.Context, userID uint) (*Student, error) {
	var s Student
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Courses", func(db *gorm.DB) *gorm.DB { return db.Order("courses.id") }).
		Preload("Courses.StartTimes").
		Preload("Courses.AccessToken").
		Where("user_id = ?", userID).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// UpdateStudentMAC stores a normalized hardware address, or clears it.
func (r *Repository) UpdateStudentMAC(ctx context.Context, userID uint, mac *string) error {
	res := r.db.WithContext(ctx).Model(&Student{}).Where("user_id = ?", userID).Update("mac", mac)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTeacher inserts a teacher profile for an existing user.
func (r *Repository) CreateTeacher(ctx context.Context, t *Teacher) error {
	return r.db.WithContext(ctx).Omit("User", "Courses").Create(t).Error
}

// TeacherByUserID loads a teacher with its user.
func (r *Repository) TeacherByUserID(ctx context.Context, userID uint) (*Teacher, error) {
	var t Teacher
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ---- courses ----

// weekDay returns the shared row for a (day, time) slot, creating it on
// first use.
func (r *Repository) weekDay(ctx context.Context, wd WeekDay) (WeekDay, error) {
	out := WeekDay{Day: wd.Day, Time: wd.Time}
	err := r.db.WithContext(ctx).
		Where("day = ? AND start_time = ?", string(wd.Day), wd.Time.String()).
		FirstOrCreate(&out).Error
	return out, err
}

// setStartTimes replaces the schedule of a course.
func (r *Repository) setStartTimes(ctx context.Context, courseID uint, days []WeekDay) ([]WeekDay, error) {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM course_start_times WHERE course_id = ?", courseID).Error; err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(days))
	out := make([]WeekDay, 0, len(days))
	for _, d := range days {
		wd, err := r.weekDay(ctx, d)
		if err != nil {
			return nil, err
		}
		if seen[wd.ID] {
			continue
		}
		seen[wd.ID] = true
		if err := db.Exec("INSERT INTO course_start_times (course_id, week_day_id) VALUES (?, ?)", courseID, wd.ID).Error; err != nil {
			return nil, err
		}
		out = append(out, wd)
	}
	return out, nil
}

// CreateCourse inserts c with its schedule and assigns it to the teacher.
func (r *Repository) CreateCourse(ctx context.Context, c *Course, days []WeekDay, teacherID uint) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		if err := tx.db.WithContext(ctx).Omit("StartTimes", "AccessToken").Create(c).Error; err != nil {
			return err
		}
		saved, err := tx.setStartTimes(ctx, c.ID, days)
		if err != nil {
			return err
		}
		c.StartTimes = saved
		return tx.db.WithContext(ctx).
			Exec("INSERT INTO teacher_courses (teacher_id, course_id) VALUES (?, ?)", teacherID, c.ID).Error
	})
}

// UpdateCourse writes the editable columns of c and replaces its schedule.
func (r *Repository) UpdateCourse(ctx context.Context, c *Course, days []WeekDay) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		err := tx.db.WithContext(ctx).Model(&Course{}).Where("id = ?", c.ID).
			Updates(map[string]any{
				"name":            c.Name,
				"min_attend_time": c.MinAttendTime,
				"duration":        c.Duration,
			}).Error
		if err != nil {
			return err
		}
		saved, err := tx.setStartTimes(ctx, c.ID, days)
		if err != nil {
			return err
		}
		c.StartTimes = saved
		return nil
	})
}

// CourseByID loads a course with its schedule and current token.
func (r *Repository) CourseByID(ctx context.Context, id uint) (*Course, error) {
	var c Course
	if err := r.db.WithContext(ctx).Preload("StartTimes").Preload("AccessToken").First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// DeleteCourse removes a course, its token and every link to it.
func (r *Repository) DeleteCourse(ctx context.Context, id uint) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		db := tx.db.WithContext(ctx)
		var c Course
		if err := db.First(&c, id).Error; err != nil {
			return notFound(err)
		}
		for _, q := range []string{
			"DELETE FROM course_start_times WHERE course_id = ?",
			"DELETE FROM student_courses WHERE course_id = ?",
			"DELETE FROM teacher_courses WHERE course_id = ?",
		} {
			if err := db.Exec(q, id).Error; err != nil {
				return err
			}
		}
		if err := db.Delete(&Course{}, id).Error; err != nil {
			return err
		}
		if c.AccessTokenID != nil {
			return db.Delete(&AccessToken{}, *c.AccessTokenID).Error
		}
		return nil
	})
}

// CoursesForTeacher lists the courses a teacher teaches.
func (r *Repository) CoursesForTeacher(ctx context.Context, teacherID uint) ([]Course, error) {
	var out []Course
	err := r.db.WithContext(ctx).
		Joins("JOIN teacher_courses ON teacher_courses.course_id = courses.id").
		Where("teacher_courses.teacher_id = ?", teacherID).
		Preload("StartTimes").
		Preload("AccessToken").
		Order("courses.id").
		Find(&out).Error
	return out, err
}

// IsCourseTeacher reports whether the teacher teaches the course.
func (r *Repository) IsCourseTeacher(ctx context.Context, teacherID, courseID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("teacher_courses").
		Where("teacher_id = ? AND course_id = ?", teacherID, courseID).
		Count(&n).Error
	return n > 0, err
}

// IsEnrolled reports whether the student attends the course.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("student_courses").
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&n).Error
	return n > 0, err
}

// Enroll links a student to a course. Existing links are left alone.
func (r *Repository) Enroll(ctx context.Context, studentID, courseID uint) (bool, error) {
	enrolled, err := r.IsEnrolled(ctx, studentID, courseID)
	if err != nil || enrolled {
		return false, err
	}
	err = r.db.WithContext(ctx).
		Exec("INSERT INTO student_courses (student_id, course_id) VALUES (?, ?)", studentID, courseID).Error
	return err == nil, err
}

// Unenroll removes a student from a course and reports whether a link existed.
func (r *Repository) Unenroll(ctx context.Context, studentID, courseID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Exec("DELETE FROM student_courses WHERE student_id = ? AND course_id = ?", studentID, courseID)
	return res.RowsAffected > 0, res.Error
}

// Roster lists the students enrolled in a course ordered by student number.
func (r *Repository) Roster(ctx context.Context, courseID uint) ([]Student, error) {
	var out []Student
	err := r.db.WithContext(ctx).
		Joins("JOIN student_courses ON student_courses.student_id = students.user_id").
		Where("student_courses.course_id = ?", courseID).
		Preload("User").
		Order("students.student_nr").
		Find(&out).Error
	return out, err
}

// ---- tokens and sessions ----

// SaveAccessToken inserts a new token or updates an existing one. Only the
// first insert assigns the token string and creation time.
func (r *Repository) SaveAccessToken(ctx context.Context, t *AccessToken) error {
	return r.db.WithContext(ctx).Save(t).Error
}

// StartSession attaches a freshly generated token to the course and marks it
// ongoing. The previous token, if any, is removed.
func (r *Repository) StartSession(ctx context.Context, c *Course, validTime int) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		db := tx.db.WithContext(ctx)
		tok := &AccessToken{ValidTime: validTime}
		if err := db.Create(tok).Error; err != nil {
			return err
		}
		err := db.Model(&Course{}).Where("id = ?", c.ID).
			Updates(map[string]any{"access_token_id": tok.ID, "is_ongoing": true}).Error
		if err != nil {
			return err
		}
		if c.AccessTokenID != nil {
			if err := db.Delete(&AccessToken{}, *c.AccessTokenID).Error; err != nil {
				return err
			}
		}
		c.AccessTokenID = &tok.ID
		c.AccessToken = tok
		c.IsOngoing = true
		return nil
	})
}

// SetOngoing flips the ongoing flag of the given courses.
func (r *Repository) SetOngoing(ctx context.Context, ongoing bool, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&Course{}).Where("id IN ?", ids).Update("is_ongoing", ongoing).Error
}

// OngoingCourses lists every course with a running session.
func (r *Repository) OngoingCourses(ctx context.Context) ([]Course, error) {
	var out []Course
	err := r.db.WithContext(ctx).Preload("AccessToken").Where("is_ongoing = ?", true).Find(&out).Error
	return out, err
}

// ---- events ----

// InsertEvent records an event; replays of the same id are ignored.
func (r *Repository) InsertEvent(ctx context.Context, evt *CourseEvent) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&CourseEvent{}).Where("id = ?", evt.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(evt).Error
}

// MaxEventPage is the largest page ListEvents returns.
const MaxEventPage = 200

// ListEvents returns events of a course, newest first. limit is clamped to
// (0, MaxEventPage] with 50 for non-positive values.
func (r *Repository) ListEvents(ctx context.Context, courseID uint, limit, offset int) ([]CourseEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxEventPage {
		limit = MaxEventPage
	}
	if offset < 0 {
		offset = 0
	}
	var out []CourseEvent
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("occurred_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}
