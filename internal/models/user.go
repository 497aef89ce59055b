package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleSupervisor = "supervisor"
	RoleTechnician = "technician"
	RoleWorker     = "worker"
)

type User struct {
	gorm.Model
	Username  string     `gorm:"uniqueIndex;not null" json:"username"`
	FullName  string     `gorm:"" json:"full_name"`
	Email     string     `gorm:"" json:"email,omitempty"`
	Role      string     `gorm:"not null;default:worker;index" json:"role"`
	Active    bool       `gorm:"not null" json:"active"`
	APITokens []APIToken `gorm:"foreignKey:UserID" json:"-"`
}

// CanManage reports whether the user may configure, verify or cancel tasks.
func (u *User) CanManage() bool {
	return u.Role == RoleSupervisor || u.Role == RoleTechnician
}

type ActivityType struct {
	Code    string `gorm:"primaryKey;size:32" json:"code"`
	Name    string `gorm:"not null" json:"name"`
	Harvest bool   `gorm:"not null" json:"harvest"`
}

type Plot struct {
	gorm.Model
	Code   string  `gorm:"uniqueIndex;not null" json:"code"`
	Name   string  `gorm:"not null" json:"name"`
	AreaHa float64 `json:"area_ha"`
}

type Campaign struct {
	gorm.Model
	Name      string     `gorm:"not null" json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Open      bool       `gorm:"not null" json:"open"`
}

type Period struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;index" json:"campaign_id"`
	Name       string `gorm:"not null" json:"name"`
}
