package model

import (
	"encoding/json"

	"GoTM1Monitor/internal/textutil"
)

// UserType TM1用户类型
type UserType string

const (
	UserTypeUser            UserType = "User"
	UserTypeAdmin           UserType = "Admin"
	UserTypeSecurityAdmin   UserType = "SecurityAdmin"
	UserTypeDataAdmin       UserType = "DataAdmin"
	UserTypeOperationsAdmin UserType = "OperationsAdmin"
)

// 内置管理组
const (
	GroupAdmin           = "ADMIN"
	GroupSecurityAdmin   = "SecurityAdmin"
	GroupDataAdmin       = "DataAdmin"
	GroupOperationsAdmin = "OperationsAdmin"
)

// UserTypeFromGroups 根据所属组推导用户类型
func UserTypeFromGroups(groups []string) UserType {
	switch {
	case textutil.ContainsName(groups, GroupAdmin):
		return UserTypeAdmin
	case textutil.ContainsName(groups, GroupSecurityAdmin):
		return UserTypeSecurityAdmin
	case textutil.ContainsName(groups, GroupDataAdmin):
		return UserTypeDataAdmin
	case textutil.ContainsName(groups, GroupOperationsAdmin):
		return UserTypeOperationsAdmin
	default:
		return UserTypeUser
	}
}

// User 服务器返回的用户快照
type User struct {
	Name         string   `json:"Name" yaml:"name"`
	FriendlyName string   `json:"FriendlyName,omitempty" yaml:"friendly_name,omitempty"`
	Type         UserType `json:"Type,omitempty" yaml:"type,omitempty"`
	Enabled      *bool    `json:"Enabled,omitempty" yaml:"enabled,omitempty"`
	IsActive     bool     `json:"IsActive,omitempty" yaml:"is_active,omitempty"`
	Groups       []string `json:"Groups,omitempty" yaml:"groups,omitempty"`
}

type groupRef struct {
	Name string `json:"Name"`
}

type userWire struct {
	Name         string     `json:"Name"`
	FriendlyName string     `json:"FriendlyName"`
	Type         UserType   `json:"Type"`
	Enabled      *bool      `json:"Enabled"`
	IsActive     bool       `json:"IsActive"`
	Groups       []groupRef `json:"Groups"`
}

// UnmarshalJSON 解析服务器格式，Groups为展开后的对象数组
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	u.Name = w.Name
	u.FriendlyName = w.FriendlyName
	u.Enabled = w.Enabled
	u.IsActive = w.IsActive
	u.Groups = make([]string, 0, len(w.Groups))
	for _, g := range w.Groups {
		u.Groups = append(u.Groups, g.Name)
	}

	u.Type = w.Type
	if u.Type == "" {
		u.Type = UserTypeFromGroups(u.Groups)
	}
	return nil
}

// MarshalJSON 输出与服务器一致的格式
func (u User) MarshalJSON() ([]byte, error) {
	w := userWire{
		Name:         u.Name,
		FriendlyName: u.FriendlyName,
		Type:         u.Type,
		Enabled:      u.Enabled,
		IsActive:     u.IsActive,
		Groups:       make([]groupRef, 0, len(u.Groups)),
	}
	for _, g := range u.Groups {
		w.Groups = append(w.Groups, groupRef{Name: g})
	}
	return json.Marshal(w)
}

// IsAdmin 是否为完全管理员
func (u *User) IsAdmin() bool {
	return u.Type == UserTypeAdmin || textutil.ContainsName(u.Groups, GroupAdmin)
}

// IsDataAdmin 是否具有数据管理权限
func (u *User) IsDataAdmin() bool {
	return u.IsAdmin() || u.Type == UserTypeDataAdmin || textutil.ContainsName(u.Groups, GroupDataAdmin)
}

// IsSecurityAdmin 是否具有安全管理权限
func (u *User) IsSecurityAdmin() bool {
	return u.IsAdmin() || u.Type == UserTypeSecurityAdmin || textutil.ContainsName(u.Groups, GroupSecurityAdmin)
}

// IsOpsAdmin 是否具有运维管理权限
func (u *User) IsOpsAdmin() bool {
	return u.IsAdmin() || u.Type == UserTypeOperationsAdmin || textutil.ContainsName(u.Groups, GroupOperationsAdmin)
}
