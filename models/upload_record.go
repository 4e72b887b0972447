package models

// UploadRecord binds a stored media to the contributor who dropped it.
// Anonymous contributors own records through their SessionID, authenticated ones through UserID.
type UploadRecord struct {
	ID        uint64  `gorm:"primaryKey" json:"id"`
	CreatedAt int64   `gorm:"index:album_owner_created,priority:3" json:"created"`
	AlbumID   uint64  `gorm:"not null;index:album_owner_created,priority:1" json:"album_id"`
	Album     Album   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	MediaID   uint64  `gorm:"not null;index" json:"media_id"`
	Media     Media   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    *uint64 `gorm:"index" json:"-"`
	SessionID string  `gorm:"type:varchar(100);index:album_owner_created,priority:2" json:"-"`
	UserName  string  `gorm:"type:varchar(300)" json:"user_name"`
	SubLabel  string  `gorm:"type:varchar(300)" json:"subfolder"`
}

// Owner identifies who is asking: a logged in user or an anonymous session
type Owner struct {
	UserID    *uint64
	SessionID string
	// AccountName is the user's name when authenticated
	AccountName string
}

func (o Owner) IsAnonymous() bool {
	return o.UserID == nil
}
