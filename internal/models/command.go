package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Command classifications returned by the generation service.
const (
	CommandTypeScript  = "script"
	CommandTypeTerrain = "terrain"
	CommandTypeAsset   = "asset"
	CommandTypeSystem  = "system"
)

// Command statuses.
const (
	CommandStatusPending   = "pending"
	CommandStatusCompleted = "completed"
	CommandStatusApplied   = "applied"
	CommandStatusFailed    = "failed"
)

// Command is one generated piece of code for a project.
type Command struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID     string    `gorm:"size:36;not null;index" json:"projectId"`
	UserID        string    `gorm:"size:64;not null;index" json:"userId"`
	Prompt        string    `gorm:"type:text;not null" json:"prompt"`
	GeneratedCode string    `gorm:"type:text;not null" json:"generatedCode"`
	CommandType   string    `gorm:"size:100" json:"commandType"`
	Status        string    `gorm:"size:50;not null;default:pending" json:"status"`
	Metadata      string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a UUID when the caller did not supply an ID.
func (c *Command) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsCommandType reports whether t is one of the known classifications.
func IsCommandType(t string) bool {
	switch t {
	case CommandTypeScript, CommandTypeTerrain, CommandTypeAsset, CommandTypeSystem:
		return true
	}
	return false
}
