package model

import "time"

// DowntimeEvent is the relational row for one downtime occurrence.
type DowntimeEvent struct {
	ID              string     `gorm:"primaryKey;size:36"`
	Station         string     `gorm:"size:128;not null"`
	Operator        string     `gorm:"size:128;not null;index"`
	Reason          string     `gorm:"size:256;not null"`
	Category        string     `gorm:"size:64;not null"`
	StartTime       time.Time  `gorm:"not null;index"`
	EndTime         *time.Time
	DurationMinutes *float64
}
