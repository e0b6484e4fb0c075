package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/hideout/internal/bridge"
	"github.com/zulandar/hideout/internal/models"
)

const (
	defaultCommandLimit = 50
	maxCommandLimit     = 500
	maxBatchPrompts     = 20
)

type handlers struct {
	svc     *bridge.Service
	catalog Catalog
	now     func() time.Time
}

type generateBody struct {
	Prompt string `json:"prompt"`
}

type createCommandBody struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId"`
}

type createProjectBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectType string `json:"projectType"`
}

type batchBody struct {
	Prompts []string `json:"prompts"`
}

type batchResult struct {
	Prompt    string `json:"prompt"`
	CommandID string `json:"commandId"`
	Code      string `json:"code"`
}

// statusFor maps a bridge error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, bridge.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	failWith(c, err, gin.H{})
}

// failWith is fail with extra fields in the response body.
func failWith(c *gin.Context, err error, body gin.H) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	body["message"] = bridge.ErrorText(err)
	c.JSON(status, body)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"time":        h.now().UTC().Format(time.RFC3339),
		"connections": h.svc.Registry().Len(),
	})
}

// generate handles a dashboard generate request and pushes the result to
// the project's plugin when one is connected.
func (h *handlers) generate(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": bridge.ErrorText(bridge.ErrEmptyPrompt)})
		return
	}
	user, projectID := currentUser(c), c.Param("id")
	if !h.authorize(c, user, projectID) {
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": bridge.ErrorText(bridge.ErrEmptyPrompt)})
		return
	}
	cmd, err := h.svc.Generate(c.Request.Context(), bridge.Request{
		UserID:    user,
		ProjectID: projectID,
		Prompt:    body.Prompt,
		Origin:    bridge.OriginDashboard,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cmd)
}

// createCommand is the plugin's HTTP fallback for generation.
func (h *handlers) createCommand(c *gin.Context) {
	var body createCommandBody
	if err := c.ShouldBindJSON(&body); err != nil ||
		strings.TrimSpace(body.Prompt) == "" || strings.TrimSpace(body.ProjectID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Project ID and prompt are required"})
		return
	}
	cmd, err := h.svc.Generate(c.Request.Context(), bridge.Request{
		ProjectID: body.ProjectID,
		Prompt:    body.Prompt,
		Origin:    bridge.OriginPluginHTTP,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"generatedCode": cmd.GeneratedCode,
		"commandType":   cmd.CommandType,
		"commandId":     cmd.ID,
	})
}

// batchGenerate runs several dashboard generations in order and stops at
// the first failure. A failure response still lists the commands already
// saved.
func (h *handlers) batchGenerate(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Prompts are required"})
		return
	}
	user, projectID := currentUser(c), c.Param("id")
	if !h.authorize(c, user, projectID) {
		return
	}
	if len(body.Prompts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Prompts are required"})
		return
	}
	if len(body.Prompts) > maxBatchPrompts {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Too many prompts (max " + strconv.Itoa(maxBatchPrompts) + ")"})
		return
	}
	for _, p := range body.Prompts {
		if strings.TrimSpace(p) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": bridge.ErrorText(bridge.ErrEmptyPrompt)})
			return
		}
	}

	results := make([]batchResult, 0, len(body.Prompts))
	for _, p := range body.Prompts {
		cmd, err := h.svc.Generate(c.Request.Context(), bridge.Request{
			UserID:    user,
			ProjectID: projectID,
			Prompt:    p,
			Origin:    bridge.OriginDashboard,
		})
		if err != nil {
			failWith(c, err, gin.H{"results": results, "totalGenerated": len(results)})
			return
		}
		results = append(results, batchResult{Prompt: cmd.Prompt, CommandID: cmd.ID, Code: cmd.GeneratedCode})
	}
	c.JSON(http.StatusCreated, gin.H{"results": results, "totalGenerated": len(results)})
}

// createProject creates a project owned by the caller.
func (h *handlers) createProject(c *gin.Context) {
	var body createProjectBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Project name is required"})
		return
	}
	switch body.ProjectType {
	case "", models.ProjectTypeObby, models.ProjectTypeRacing, models.ProjectTypeTycoon, models.ProjectTypeCustom:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unknown project type"})
		return
	}
	p := &models.Project{
		UserID:      currentUser(c),
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		ProjectType: body.ProjectType,
	}
	if err := h.catalog.CreateProject(c.Request.Context(), p); err != nil {
		log.Printf("api: create project for %s: %v", p.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// projectCommands lists a project's commands for its owner.
func (h *handlers) projectCommands(c *gin.Context) {
	projectID := c.Param("id")
	if !h.authorize(c, currentUser(c), projectID) {
		return
	}
	h.listCommands(c, projectID)
}

// authorize writes the error response and returns false unless user owns
// the project.
func (h *handlers) authorize(c *gin.Context, user, projectID string) bool {
	project, err := h.svc.Project(c.Request.Context(), projectID)
	if err != nil {
		fail(c, err)
		return false
	}
	if project.UserID != user {
		fail(c, bridge.ErrForbidden)
		return false
	}
	return true
}

func (h *handlers) pluginStatus(c *gin.Context) {
	userID, projectID := c.Query("userId"), c.Query("projectId")
	if userID == "" || projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing projectId or userId"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": h.svc.Registry().IsConnected(userID, projectID)})
}

func (h *handlers) pluginProjects(c *gin.Context) {
	projects, err := h.catalog.ListProjects(c.Request.Context(), c.Param("userId"))
	if err != nil {
		log.Printf("api: list projects for %s: %v", c.Param("userId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch projects"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *handlers) pluginCommands(c *gin.Context) {
	h.listCommands(c, c.Param("projectId"))
}

func (h *handlers) listCommands(c *gin.Context, projectID string) {
	limit := defaultCommandLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxCommandLimit)
	}
	commands, err := h.catalog.ListCommands(c.Request.Context(), projectID, limit)
	if err != nil {
		log.Printf("api: list commands for %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch commands"})
		return
	}
	c.JSON(http.StatusOK, commands)
}
