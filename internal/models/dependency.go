package models

// Dependency is one directed edge in the store's dependencies table.
// For type "blocks" the edge points blocked → blocker; for "parent-child"
// it points child → parent (epic). Edges are append-only; removal is a
// soft delete performed by the bd CLI.
type Dependency struct {
	IssueID     string `gorm:"primaryKey;column:issue_id" json:"issue_id"`
	DependsOnID string `gorm:"primaryKey;column:depends_on_id" json:"depends_on_id"`
	Type        string `gorm:"column:type;default:blocks" json:"type"`
	CreatedAt   string `gorm:"column:created_at" json:"created_at"`
}

// TableName maps Dependency onto the store's dependencies table.
func (Dependency) TableName() string { return "dependencies" }

// Dependency edge types the dashboard understands.
const (
	DepBlocks      = "blocks"
	DepParentChild = "parent-child"
)
