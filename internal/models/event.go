package models

// Event is one audit-trail entry, mapped onto the store's events table.
// The bd CLI appends events for every mutation; the dashboard only ever
// reads them forward from a cursor and appends its own on accepted
// transitions.
type Event struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	IssueID   string `gorm:"column:issue_id;index" json:"issue_id"`
	EventType string `gorm:"column:event_type" json:"event_type"`
	Actor     string `gorm:"column:actor" json:"actor"`
	OldValue  string `gorm:"column:old_value" json:"old_value,omitempty"`
	NewValue  string `gorm:"column:new_value" json:"new_value,omitempty"`
	Comment   string `gorm:"column:comment" json:"comment,omitempty"`
	CreatedAt string `gorm:"column:created_at;index" json:"created_at"`
}

// TableName maps Event onto the store's events table.
func (Event) TableName() string { return "events" }

// Event types written by the dashboard.
const (
	EventStatusChanged = "status_changed"
	EventRepaired      = "repaired"
)
