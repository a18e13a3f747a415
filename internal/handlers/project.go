package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// ListTypes returns the active project types
// GET /api/projects/types
func (h *ProjectHandler) ListTypes(c *gin.Context) {
	types, err := h.projectService.ListTypes()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"project_types": types})
}

// Submit takes a public project request, creating the account if needed
// POST /api/projects/submit
func (h *ProjectHandler) Submit(c *gin.Context) {
	var req services.SubmitProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.projectService.Submit(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	msg := "Project submitted successfully"
	if res.AccountCreated {
		msg += ". An account has been created and login details sent to your email."
	}
	response.Created(c, gin.H{
		"message":         msg,
		"project":         res.Project,
		"account_created": res.AccountCreated,
	})
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if !bindQuery(c, &req) {
		return
	}

	projects, meta, err := h.projectService.List(actorFrom(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, projects, meta)
}

// GetByID returns a project with milestones and files
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"project": project})
}

// UpdateStatus (admin)
// PUT /api/projects/:id/status
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProjectStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.UpdateStatus(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Project status updated successfully", "project": project})
}

// Stats (admin)
// GET /api/projects/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	stats, err := h.projectService.Stats()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"stats": stats})
}

// ListMilestones
// GET /api/projects/:id/milestones
func (h *ProjectHandler) ListMilestones(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	milestones, err := h.projectService.Milestones(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"milestones": milestones})
}

// AddMilestone (admin)
// POST /api/projects/:id/milestones
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.CreateMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}

	milestone, err := h.projectService.AddMilestone(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Milestone created successfully", "milestone": milestone})
}

// CompleteMilestone (admin)
// PUT /api/projects/:id/milestones/:mid/complete
func (h *ProjectHandler) CompleteMilestone(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	mid, ok := paramUUID(c, "mid")
	if !ok {
		return
	}

	milestone, progress, err := h.projectService.CompleteMilestone(actorFrom(c), id, mid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":          "Milestone marked as completed",
		"milestone":        milestone,
		"project_progress": progress,
	})
}

// ListFiles
// GET /api/projects/:id/files
func (h *ProjectHandler) ListFiles(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	files, err := h.projectService.Files(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"files": files})
}

// UploadFile stores a multipart file under the project folder
// POST /api/projects/:id/files
func (h *ProjectHandler) UploadFile(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "No file provided")
		return
	}

	file, err := h.projectService.UploadFile(c.Request.Context(), actorFrom(c), id, &services.UploadProjectFileRequest{
		File:        fh,
		Description: c.PostForm("description"),
		IsPublic:    formBool(c, "is_public"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "File uploaded successfully", "file": file})
}

// DeleteFile (admin or uploader)
// DELETE /api/projects/:id/files/:fid
func (h *ProjectHandler) DeleteFile(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	fid, ok := paramUUID(c, "fid")
	if !ok {
		return
	}

	if err := h.projectService.DeleteFile(c.Request.Context(), actorFrom(c), id, fid); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "File deleted successfully")
}
