package models

import (
	"gorm.io/gorm"
)

// User 表示系統中的用戶
type User struct {
	gorm.Model                // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Username    string        `gorm:"uniqueIndex;not null" json:"username"` // 用戶名，必須唯一
	Password    string        `gorm:"not null" json:"-"`                    // 密碼，json 序列化時會被忽略
	Name        string        `gorm:"not null" json:"name"`                 // 顯示名稱
	Email       string        `gorm:"uniqueIndex;not null" json:"email"`
	Role        UserRole      `gorm:"not null;default:user" json:"role"` // 用戶角色
	Permissions PermissionSet `gorm:"serializer:json" json:"permissions"` // 用戶持有的權限列表
}

// UserRole 定義用戶角色的類型
type UserRole string

const (
	RoleSuperadmin UserRole = "superadmin" // 跳過所有權限檢查
	RoleAdmin      UserRole = "admin"
	RoleUser       UserRole = "user"
)

// DefaultPermissions 回傳角色註冊時預設取得的權限
func DefaultPermissions(role UserRole) PermissionSet {
	switch role {
	case RoleSuperadmin:
		// superadmin 不依賴權限列表
		return nil
	default:
		return PermissionSet{PermMessageCreate}
	}
}
