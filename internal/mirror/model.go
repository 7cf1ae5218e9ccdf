package mirror

// ListDocument mirrors one per-list store into the document database: the
// full encoded snapshot plus denormalized headline fields so external
// queries never need to decode the blob.
type ListDocument struct {
	ListID           string  `gorm:"column:list_id;primaryKey;size:190;not null"`
	SnapshotJSON     string  `gorm:"column:snapshot_json;type:text;not null"`
	Name             string  `gorm:"column:name;size:320;not null;default:''"`
	Budget           float64 `gorm:"column:budget;not null;default:0"`
	Status           string  `gorm:"column:status;size:32;not null;default:'regular'"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (ListDocument) TableName() string {
	return "list_documents"
}
