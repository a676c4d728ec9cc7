package models

// Metadata is the store's internal key/value table. The dashboard uses it
// for the data_version counter on backends where SQLite's PRAGMA
// data_version is not available (Dolt/MySQL mode).
type Metadata struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

// TableName maps Metadata onto the store's metadata table.
func (Metadata) TableName() string { return "metadata" }

// MetaDataVersion is the metadata key holding the change counter on
// non-SQLite backends.
const MetaDataVersion = "data_version"
