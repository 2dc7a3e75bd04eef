package models

import "time"

// Folder is one logical folder. Path is the absolute directory that mirrors
// it on disk and always ends with a separator; Parent is the Path of the
// containing folder (the drive root for a user's root folder).
type Folder struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;index"`
	Owners    OwnerSet  `json:"owners" gorm:"type:text;not null"`
	Path      string    `json:"path" gorm:"type:text;not null"`
	Parent    string    `json:"parent" gorm:"type:text;not null;index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (f *Folder) OwnedBy(username string) bool {
	return f.Owners.Contains(username)
}
