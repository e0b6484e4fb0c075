// Package store is the gorm-backed Project Store: projects and the
// commands generated for them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/hideout/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// NewCommand holds the fields a caller supplies when recording a command.
type NewCommand struct {
	ProjectID     string
	UserID        string
	Prompt        string
	GeneratedCode string
	CommandType   string
	Status        string
	Metadata      string
}

// Store reads and writes projects and commands.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store over an already-migrated database.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

// GetProject returns the project with the given ID, or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns a user's active projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ProjectStatusActive).
		Order("updated_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("store: list projects for %s: %w", userID, err)
	}
	return projects, nil
}

// CreateProject inserts a project. ID, type and status are defaulted when empty.
func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	if p.UserID == "" {
		return fmt.Errorf("store: create project: user id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("store: create project: name is required")
	}
	if p.ProjectType == "" {
		p.ProjectType = models.ProjectTypeCustom
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusActive
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("store: create project: %w", err)
	}
	return nil
}

// CreateCommand records a generated command and bumps the owning project's
// command count and last-generated timestamp in the same transaction. The
// increment is the only serialization point between concurrent generations
// for one project.
func (s *Store) CreateCommand(ctx context.Context, in NewCommand) (*models.Command, error) {
	if in.ProjectID == "" {
		return nil, fmt.Errorf("store: create command: project id is required")
	}
	status := in.Status
	if status == "" {
		status = models.CommandStatusPending
	}

	cmd := &models.Command{
		ProjectID:     in.ProjectID,
		UserID:        in.UserID,
		Prompt:        in.Prompt,
		GeneratedCode: in.GeneratedCode,
		CommandType:   in.CommandType,
		Status:        status,
		Metadata:      in.Metadata,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cmd).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		now := s.now()
		result := tx.Model(&models.Project{}).
			Where("id = ?", in.ProjectID).
			Updates(map[string]interface{}{
				"command_count":     gorm.Expr("command_count + ?", 1),
				"last_generated_at": now,
				"updated_at":        now,
			})
		if result.Error != nil {
			return fmt.Errorf("bump project: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("project %s: %w", in.ProjectID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: create command: %w", err)
	}
	return cmd, nil
}

// ListCommands returns a project's commands, newest first. A limit of zero
// or less returns all of them.
func (s *Store) ListCommands(ctx context.Context, projectID string, limit int) ([]models.Command, error) {
	q := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var cmds []models.Command
	if err := q.Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("store: list commands for %s: %w", projectID, err)
	}
	return cmds, nil
}
