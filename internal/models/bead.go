// Package models defines GORM mappings onto the beads store tables.
//
// The store schema is owned by the external bd CLI; these models map the
// subset of columns the dashboard reads and writes. Timestamps are kept as
// strings end-to-end because the store persists them as TEXT and the
// validation layer needs to see exactly what was written, including a
// missing timezone offset.
package models

// Bead is one work item, mapped onto the store's issues table.
type Bead struct {
	ID          string `gorm:"primaryKey;column:id" json:"id"`
	Title       string `gorm:"column:title" json:"title"`
	Description string `gorm:"column:description" json:"description,omitempty"`
	Status      string `gorm:"column:status;index" json:"status"`
	Priority    int    `gorm:"column:priority;default:2" json:"priority"`
	IssueType   string `gorm:"column:issue_type;default:task" json:"issue_type"`
	Assignee    string `gorm:"column:assignee" json:"assignee,omitempty"`
	Notes       string `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt   string `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   string `gorm:"column:updated_at" json:"updated_at"`
	ClosedAt    string `gorm:"column:closed_at" json:"closed_at,omitempty"`
}

// TableName maps Bead onto the store's issues table.
func (Bead) TableName() string { return "issues" }
