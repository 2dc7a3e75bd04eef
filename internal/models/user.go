package models

import "time"

type User struct {
	Name         string    `json:"name" gorm:"type:varchar(64);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);index;not null"`
	PasswordHash string    `json:"-" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
