package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendancecontrol/internal/queue"
)

// Course event kinds published on the queue.
const (
	EventSessionStarted  = "session.started"
	EventSessionEnded    = "session.ended"
	EventSessionExpired  = "session.expired"
	EventStudentEnrolled = "student.enrolled"
	EventStudentLeft     = "student.left"
	EventCourseDeleted   = "course.deleted"
)

// CourseEvent is an audit record of a course state change.
type CourseEvent struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	CourseID   uint      `gorm:"index;not null" json:"course_id"`
	Kind       string    `gorm:"size:32;not null" json:"kind"`
	UserID     *uint     `json:"user_id,omitempty"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher accepts queue messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind string, courseID uint, userID *uint) CourseEvent {
	return CourseEvent{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		Kind:       kind,
		UserID:     userID,
		OccurredAt: now().UTC(),
	}
}

// EncodeEvent wraps an event into a queue message.
func EncodeEvent(evt CourseEvent) (queue.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: evt.Kind, Body: body}, nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(msg queue.Message) (CourseEvent, error) {
	var evt CourseEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return CourseEvent{}, fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	if evt.ID == "" || evt.CourseID == 0 {
		return CourseEvent{}, fmt.Errorf("decode %s event: missing id or course", msg.Type)
	}
	if evt.Kind == "" {
		evt.Kind = msg.Type
	}
	return evt, nil
}
