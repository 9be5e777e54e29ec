package attendance

import (
	"fmt"
	"net"
	"strings"
)

// Student extends a user with a matriculation number and the hardware
// address of the device used for attendance.
type Student struct {
	UserID    uint     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	StudentNr int      `gorm:"not null" json:"student_nr"`
	MAC       *string  `gorm:"size:17" json:"mac,omitempty"`
	Courses   []Course `gorm:"many2many:student_courses;foreignKey:UserID;joinForeignKey:StudentID;references:ID;joinReferences:CourseID" json:"courses,omitempty"`
}

func (s Student) String() string {
	mac := "None"
	if s.MAC != nil {
		mac = *s.MAC
	}
	email := ""
	if s.User != nil {
		email = s.User.Email
	}
	return fmt.Sprintf("user: %s, stud.nr %d, mac: %s", email, s.StudentNr, mac)
}

// Teacher extends a user with the courses they teach.
type Teacher struct {
	UserID  uint     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Courses []Course `gorm:"many2many:teacher_courses;foreignKey:UserID;joinForeignKey:TeacherID;references:ID;joinReferences:CourseID" json:"courses,omitempty"`
}

func (t Teacher) String() string {
	if t.User == nil {
		return ""
	}
	return t.User.Email
}

// NormalizeMAC parses a 48-bit hardware address in any common notation and
// returns it as upper-case dash separated octets. An empty string yields nil.
func NormalizeMAC(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	hw, err := net.ParseMAC(raw)
	if err != nil || len(hw) != 6 {
		return nil, invalid("mac", "%q is not a 48-bit hardware address", raw)
	}
	out := strings.ToUpper(strings.ReplaceAll(hw.String(), ":", "-"))
	return &out, nil
}
