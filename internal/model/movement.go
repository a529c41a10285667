package model

import "time"

// OperatorEvent is one sign-in or sign-out transition for an operator.
type OperatorEvent struct {
	ID        int64     `gorm:"autoIncrement;primaryKey"`
	Operator  string    `gorm:"size:128;not null;index"`
	Station   string    `gorm:"size:128;not null"`
	EventTime time.Time `gorm:"not null;index"`
	State     string    `gorm:"size:16;not null"`
}
