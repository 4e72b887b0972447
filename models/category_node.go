package models

// CategoryNode is a node of a category tree. ParentID is 0 for top level nodes
// (not NULL, so that the unique index covers them too).
type CategoryNode struct {
	ID              uint64 `gorm:"primaryKey" json:"id"`
	CreatedAt       int64  `json:"created_at"`
	TreeID          string `gorm:"type:varchar(100);not null;index:uniq_tree_parent_label,unique,priority:1" json:"tree_id"`
	ParentID        uint64 `gorm:"not null;default:0;index:uniq_tree_parent_label,unique,priority:2" json:"parent_id"`
	NormalizedLabel string `gorm:"type:varchar(300);not null;index:uniq_tree_parent_label,unique,priority:3" json:"-"`
	Label           string `gorm:"type:varchar(300);not null" json:"label"`
}
