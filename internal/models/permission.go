package models

// Permission 定義單一權限的類型
type Permission string

const (
	// PermMessageCreate 允許在對話中發送新消息
	PermMessageCreate Permission = "message:create"
)

// PermissionSet 是用戶持有的權限集合，以 JSON 陣列形式存儲在用戶資料列上
type PermissionSet []Permission

// Has 檢查集合中是否包含指定權限
func (s PermissionSet) Has(p Permission) bool {
	for _, have := range s {
		if have == p {
			return true
		}
	}
	return false
}

// Allowed 是權限閘的唯一判斷點：superadmin 角色一律放行，
// 其他角色必須在權限集合中持有所需權限
func Allowed(role UserRole, permissions PermissionSet, required Permission) bool {
	if role == RoleSuperadmin {
		return true
	}
	return permissions.Has(required)
}
