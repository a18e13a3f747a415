package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContractHandler struct {
	contractService *services.ContractService
}

func NewContractHandler(contractService *services.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// List returns paginated contracts; clients see their own
// GET /api/contracts
func (h *ContractHandler) List(c *gin.Context) {
	var req services.ContractListRequest
	if !bindQuery(c, &req) {
		return
	}

	contracts, meta, err := h.contractService.List(actorFrom(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, contracts, meta)
}

// GetByID
// GET /api/contracts/:id
func (h *ContractHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contractService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"contract": contract})
}

// Create (admin)
// POST /api/contracts
func (h *ContractHandler) Create(c *gin.Context) {
	var req services.CreateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contractService.Create(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Contract created successfully", "contract": contract})
}

// Send (admin)
// PUT /api/contracts/:id/send
func (h *ContractHandler) Send(c *gin.Context) {
	h.transition(c, "Contract sent to client successfully", h.contractService.Send)
}

// Sign takes the multipart signature image from the contract's client
// POST /api/contracts/:id/sign
func (h *ContractHandler) Sign(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	// A missing image is reported by the service after the state checks.
	fh, _ := c.FormFile("signature")

	contract, err := h.contractService.Sign(c.Request.Context(), actorFrom(c), id, &services.SignRequest{Signature: fh})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Contract signed successfully", "contract": contract})
}

// Activate (admin)
// PUT /api/contracts/:id/activate
func (h *ContractHandler) Activate(c *gin.Context) {
	h.transition(c, "Contract activated successfully", h.contractService.Activate)
}

// Complete (admin)
// PUT /api/contracts/:id/complete
func (h *ContractHandler) Complete(c *gin.Context) {
	h.transition(c, "Contract completed successfully", h.contractService.Complete)
}

// Cancel (admin)
// PUT /api/contracts/:id/cancel
func (h *ContractHandler) Cancel(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.CancelContractRequest
	_ = c.ShouldBindJSON(&req)

	contract, err := h.contractService.Cancel(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Contract cancelled successfully", "contract": contract})
}

// Download returns the full contract document
// GET /api/contracts/:id/download
func (h *ContractHandler) Download(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contractService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+contract.ContractNumber+`.json"`)
	response.OK(c, gin.H{"contract": contract})
}

// Stats (admin)
// GET /api/contracts/stats
func (h *ContractHandler) Stats(c *gin.Context) {
	stats, err := h.contractService.Stats()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"stats": stats})
}

func (h *ContractHandler) transition(c *gin.Context, msg string, fn func(services.Actor, uuid.UUID) (*models.Contract, error)) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	contract, err := fn(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": msg, "contract": contract})
}
