package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 代表拍賣系統中的使用者
// Subject 是身份提供者核發的識別字串，帳號的建立與驗證由外部系統負責。
type User struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	Subject  string    `gorm:"type:text;not null;uniqueIndex:idx_user_subject,where:deleted_at IS NULL;<-:create"`
	Username string    `gorm:"type:varchar(255);not null"`
}
