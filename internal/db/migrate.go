package db

import (
	"fmt"

	"github.com/zulandar/hideout/internal/config"
	"github.com/zulandar/hideout/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Command{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedProjects upserts fixture Project rows from configuration.
func SeedProjects(db *gorm.DB, seeds []config.ProjectSeed) error {
	for _, ps := range seeds {
		project := models.Project{
			ID:          ps.ID,
			UserID:      ps.UserID,
			Name:        ps.Name,
			Description: ps.Description,
			ProjectType: ps.ProjectType,
			Status:      models.ProjectStatusActive,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "name", "description", "project_type", "status"}),
		}).Create(&project)
		if result.Error != nil {
			return fmt.Errorf("db: seed project %q: %w", ps.ID, result.Error)
		}
	}
	return nil
}
