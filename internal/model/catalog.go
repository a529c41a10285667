package model

// Operator is one row of the operator badge-ID to display-name table.
type Operator struct {
	OperatorID   string `gorm:"primaryKey;size:64;column:operator_id"`
	OperatorName string `gorm:"size:128;not null;uniqueIndex;column:operator_name"`
}

// DowntimeReason is one row of the reason-to-category table.
type DowntimeReason struct {
	EventName     string `gorm:"primaryKey;size:256;column:event_name"`
	EventCategory string `gorm:"size:64;not null;column:event_category"`
}
