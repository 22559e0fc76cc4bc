package database

import "time"

// CourseProgress holds the sorted flat indices of completed lessons.
type CourseProgress struct {
	CourseID  string    `gorm:"primaryKey;size:64" json:"course_id"`
	Completed []int     `gorm:"type:text;not null;serializer:json" json:"completed"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CourseNotes holds a course's lesson notes as a JSON object. When
// Encrypted is set, Data is a Fernet token of that JSON.
type CourseNotes struct {
	CourseID  string    `gorm:"primaryKey;size:64" json:"course_id"`
	Data      string    `gorm:"type:text;not null;default:'{}'" json:"-"`
	Encrypted bool      `gorm:"not null;default:false" json:"encrypted"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CourseProgress) TableName() string { return "course_progress" }

func (CourseNotes) TableName() string { return "course_notes" }
