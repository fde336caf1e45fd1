package model

import (
	"time"

	"gorm.io/gorm"
)

// User 下单用户。认证鉴权由上游网关负责，这里只做存在性校验。
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"size:50;not null" json:"name"`
	Email string `gorm:"size:100;uniqueIndex;not null" json:"email"`
}

func (User) TableName() string { return "users" }
