package attendance

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendancecontrol/internal/urls"
)

const (
	DefaultMinAttendTime = 45
	DefaultDuration      = 90
)

// Course is a class with a weekly schedule. A session is running while
// IsOngoing is set and the current access token has not expired.
type Course struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID    `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Name          string       `gorm:"size:200;not null" json:"name"`
	MinAttendTime int          `gorm:"not null" json:"min_attend_time"`
	Duration      int          `gorm:"not null" json:"duration"`
	StartTimes    []WeekDay    `gorm:"many2many:course_start_times;joinForeignKey:CourseID;joinReferences:WeekDayID" json:"start_times"`
	IsOngoing     bool         `gorm:"not null" json:"is_ongoing"`
	AccessTokenID *uint        `gorm:"uniqueIndex" json:"-"`
	AccessToken   *AccessToken `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// IsActive reports whether students can currently enroll into the session.
func (c *Course) IsActive(at time.Time) bool {
	if !c.IsOngoing {
		return false
	}
	return c.AccessToken == nil || !c.AccessToken.IsTokenExpiredAt(at, 0)
}

// CurrentToken returns the session token string or "" when none exists.
func (c *Course) CurrentToken() string {
	if c.AccessToken == nil {
		return ""
	}
	return c.AccessToken.Token
}

func (c *Course) idArg() string { return strconv.FormatUint(uint64(c.ID), 10) }

func (c *Course) StudentURL() string {
	return urls.MustReverse("student:detail", c.idArg())
}

func (c *Course) StudentLeaveURL() string {
	return urls.MustReverse("student:leave_course", c.idArg())
}

// StudentRegisterURL embeds the current token; the token segment is empty
// when the course has none.
func (c *Course) StudentRegisterURL() string {
	return urls.MustReverse("student:register_course", c.idArg(), c.CurrentToken())
}

func (c *Course) TeacherURL() string {
	return urls.MustReverse("teacher:detail", c.idArg())
}

func (c *Course) TeacherDeleteURL() string {
	return urls.MustReverse("teacher:delete", c.idArg())
}

func (c *Course) TeacherEditURL() string {
	return urls.MustReverse("teacher:edit", c.idArg())
}

func (c Course) String() string {
	return fmt.Sprintf("name: %s, min_attend_time: %d, duration: %d", c.Name, c.MinAttendTime, c.Duration)
}

// CourseInput carries the editable attributes of a course.
type CourseInput struct {
	Name          string         `json:"name" validate:"required,max=200"`
	MinAttendTime int            `json:"min_attend_time" validate:"gte=0"`
	Duration      int            `json:"duration" validate:"gte=0"`
	StartTimes    []WeekDayInput `json:"start_times" validate:"dive"`
}

// apply validates the input and copies it onto c, filling defaults for
// zero durations. It returns the parsed start times.
func (in CourseInput) apply(c *Course) ([]WeekDay, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	days := make([]WeekDay, 0, len(in.StartTimes))
	for _, st := range in.StartTimes {
		wd, err := st.Parse()
		if err != nil {
			return nil, err
		}
		days = append(days, wd)
	}
	c.Name = in.Name
	c.MinAttendTime = in.MinAttendTime
	if c.MinAttendTime == 0 {
		c.MinAttendTime = DefaultMinAttendTime
	}
	c.Duration = in.Duration
	if c.Duration == 0 {
		c.Duration = DefaultDuration
	}
	if c.MinAttendTime > c.Duration {
		return nil, invalid("min_attend_time", "must not exceed duration (%d)", c.Duration)
	}
	return days, nil
}

// BeforeCreate assigns the external identifier.
func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}
