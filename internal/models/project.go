package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project types understood by the generation prompts.
const (
	ProjectTypeObby   = "obby"
	ProjectTypeRacing = "racing"
	ProjectTypeTycoon = "tycoon"
	ProjectTypeCustom = "custom"
)

// Project statuses. Deleted projects are soft-deleted by status.
const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
	ProjectStatusDeleted  = "deleted"
)

// Project is a user's game project. Commands are generated against it.
type Project struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"size:64;not null;index" json:"userId"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description"`
	ProjectType     string     `gorm:"size:50;not null;default:custom" json:"projectType"`
	Status          string     `gorm:"size:50;not null;default:active;index" json:"status"`
	CommandCount    int        `gorm:"not null;default:0" json:"commandCount"`
	AssetCount      int        `gorm:"not null;default:0" json:"assetCount"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Commands []Command `gorm:"foreignKey:ProjectID" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not supply an ID.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
