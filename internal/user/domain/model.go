package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// User is a back-office account. Email is stored lower-cased.
type User struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"type:text;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex:ux_users_email"`
	PasswordHash string `gorm:"type:text;not null"`
	Role         string `gorm:"size:32;not null;index"`
	Avatar       string `gorm:"type:text"`
	Department   string `gorm:"size:128"`
	Phone        string `gorm:"size:64"`
	Address      datatypes.JSONType[Address]
	IsActive     bool `gorm:"not null"`
	LastLogin    *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }
