package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContractService drives the contract lifecycle:
// draft -> sent -> signed -> active -> completed, with cancel from any
// non-terminal state.
type ContractService struct {
	db     *gorm.DB
	files  *FileService
	rules  *BusinessRules
	notify *NotificationService
	mailer *Mailer
}

func NewContractService(db *gorm.DB, files *FileService, rules *BusinessRules, notify *NotificationService, mailer *Mailer) *ContractService {
	return &ContractService{db: db, files: files, rules: rules, notify: notify, mailer: mailer}
}

type CreateContractRequest struct {
	ProjectID          uuid.UUID `json:"project_id" binding:"required"`
	Title              string    `json:"title" binding:"required"`
	Content            string    `json:"content" binding:"required"`
	Amount             float64   `json:"amount" binding:"required,gt=0"`
	Currency           string    `json:"currency" binding:"omitempty,len=3"`
	TermsAndConditions string    `json:"terms_and_conditions"`
}

func (s *ContractService) Create(actor Actor, req *CreateContractRequest) (*models.Contract, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		return nil, notFound(err, "Project not found")
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.rules.Currency()
	}
	now := time.Now()
	expiry := s.rules.ContractExpiryDate(now)

	var contract models.Contract
	err := retryOnDuplicate(3, func() error {
		contract = models.Contract{
			ProjectID:          project.ID,
			ClientID:           project.ClientID,
			ContractNumber:     utils.ContractNumber(now),
			Title:              req.Title,
			Content:            req.Content,
			Amount:             utils.Round2(req.Amount),
			Currency:           currency,
			Status:             models.ContractDraft,
			CreatedDate:        now,
			ExpiryDate:         &expiry,
			TermsAndConditions: req.TermsAndConditions,
			CreatedBy:          actor.userRef(),
		}
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&contract).Error; err != nil {
				return err
			}
			return logActivity(tx, actor, "contract.create", "contract", &contract.ID, nil, map[string]interface{}{
				"status":          contract.Status,
				"contract_number": contract.ContractNumber,
				"amount":          contract.Amount,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return &contract, nil
}

type ContractListRequest struct {
	Status    string `form:"status"`
	ProjectID string `form:"project_id"`
}

func (s *ContractService) List(actor Actor, req *ContractListRequest, p pagination.Params) ([]models.Contract, pagination.Meta, error) {
	query := s.db.Model(&models.Contract{})
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ProjectID != "" {
		if id, err := uuid.Parse(req.ProjectID); err == nil {
			query = query.Where("project_id = ?", id)
		}
	}
	return pagination.Paginate[models.Contract](query, p,
		pagination.OrderBy("created_date DESC"), pagination.Preload("Project"))
}

func (s *ContractService) load(id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := s.db.First(&contract, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Contract not found")
	}
	return &contract, nil
}

// Get returns the full contract with project, client and signatures.
func (s *ContractService) Get(actor Actor, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	err := s.db.Preload("Project").Preload("Client").Preload("Signatures.Signer").
		First(&contract, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Contract not found")
	}
	if !actor.IsAdmin() && contract.ClientID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	return &contract, nil
}

// transition moves c from its current status with a conditional update so a
// concurrent transition loses with a conflict.
func (s *ContractService) transition(actor Actor, c *models.Contract, verb string, updates map[string]interface{}, also func(tx *gorm.DB) error) error {
	from := c.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Contract{}).Where("id = ? AND status = ?", c.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("Contract was modified concurrently")
		}
		if also != nil {
			if err := also(tx); err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "contract."+verb, "contract", &c.ID,
			map[string]interface{}{"status": from},
			map[string]interface{}{"status": updates["status"]})
	})
	if err != nil {
		return err
	}
	return s.db.First(c, "id = ?", c.ID).Error
}

func (s *ContractService) Send(actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractDraft {
		return nil, response.NewBadRequest("Contract can only be sent from draft status")
	}
	err = s.transition(actor, contract, "send", map[string]interface{}{
		"status":    models.ContractSent,
		"sent_date": time.Now(),
	}, nil)
	if err != nil {
		return nil, err
	}

	s.notify.Notify(contract.ClientID, NotificationInput{
		Title:      "Contract Ready for Signature",
		Message:    fmt.Sprintf("Contract %s is ready for your signature", contract.ContractNumber),
		Type:       "contract",
		EntityType: "contract",
		EntityID:   &contract.ID,
		ActionURL:  "/dashboard/contracts/" + contract.ID.String(),
	})
	var client models.User
	if err := s.db.First(&client, "id = ?", contract.ClientID).Error; err == nil {
		s.mailer.SendContractSent(&client, contract)
	}
	return contract, nil
}

// SignRequest carries the uploaded signature image.
type SignRequest struct {
	Signature *multipart.FileHeader
}

// Sign checks, in order: existence, ownership, status, expiry, identity
// verification, prior signature and the image itself.
func (s *ContractService) Sign(ctx context.Context, actor Actor, id uuid.UUID, req *SignRequest) (*models.Contract, error) {
	contract, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	if contract.Status != models.ContractSent {
		return nil, response.NewBadRequest("Contract is not available for signing")
	}
	if contract.IsExpired() {
		return nil, response.NewBadRequest("Contract has expired")
	}
	var kyc models.IdentityVerification
	if err := s.db.Where("user_id = ?", actor.UserID).First(&kyc).Error; err != nil || !kyc.IsVerified() {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, response.NewBadRequest("Identity verification required before signing")
	}
	var existing int64
	if err := s.db.Model(&models.ContractSignature{}).
		Where("contract_id = ? AND signer_id = ?", contract.ID, actor.UserID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, response.NewConflict("Contract already signed")
	}
	if req == nil || req.Signature == nil {
		return nil, response.NewBadRequest("Signature image is required")
	}

	stored, err := s.files.Save(ctx, "contracts/"+contract.ID.String()+"/signatures", req.Signature, utils.ImageExtensions)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.transition(actor, contract, "sign", map[string]interface{}{
		"status":      models.ContractSigned,
		"signed_date": now,
	}, func(tx *gorm.DB) error {
		sig := models.ContractSignature{
			ContractID:        contract.ID,
			SignerID:          actor.UserID,
			SignatureImageURL: stored.URL,
			SignedAt:          now,
			IPAddress:         actor.IP,
			UserAgent:         actor.UserAgent,
		}
		if err := tx.Create(&sig).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return response.NewConflict("Contract already signed")
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.files.RemoveRef(ctx, stored.URL)
		return nil, err
	}

	s.notify.NotifyAdmins(NotificationInput{
		Title:      "Contract Signed",
		Message:    fmt.Sprintf("Contract %s has been signed by the client", contract.ContractNumber),
		Type:       "contract_signed",
		EntityType: "contract",
		EntityID:   &contract.ID,
		ActionURL:  "/admin/contracts/" + contract.ID.String(),
	})
	return s.Get(actor, contract.ID)
}

func (s *ContractService) Activate(actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractSigned {
		return nil, response.NewBadRequest("Contract can only be activated from signed status")
	}
	err = s.transition(actor, contract, "activate", map[string]interface{}{
		"status": models.ContractActive,
	}, func(tx *gorm.DB) error {
		return tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", contract.ProjectID, models.ProjectApproved).
			Update("status", models.ProjectInProgress).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(contract.ClientID, NotificationInput{
		Title:      "Contract Activated",
		Message:    fmt.Sprintf("Contract %s is now active and work has started", contract.ContractNumber),
		Type:       "contract",
		EntityType: "contract",
		EntityID:   &contract.ID,
		ActionURL:  "/dashboard/contracts/" + contract.ID.String(),
	})
	return contract, nil
}

func (s *ContractService) Complete(actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractActive {
		return nil, response.NewBadRequest("Contract can only be completed from active status")
	}
	today := utils.Today()
	err = s.transition(actor, contract, "complete", map[string]interface{}{
		"status":          models.ContractCompleted,
		"completion_date": today,
	}, func(tx *gorm.DB) error {
		return tx.Model(&models.Project{}).
			Where("id = ? AND status <> ?", contract.ProjectID, models.ProjectCompleted).
			Updates(map[string]interface{}{
				"status":          models.ProjectCompleted,
				"progress":        100,
				"completion_date": today,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

type CancelContractRequest struct {
	Reason string `json:"reason"`
}

func (s *ContractService) Cancel(actor Actor, id uuid.UUID, req *CancelContractRequest) (*models.Contract, error) {
	contract, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractCompleted || contract.Status == models.ContractCancelled {
		return nil, response.NewBadRequest("Cannot cancel a completed or already cancelled contract")
	}
	reason := "No reason provided"
	if req != nil && strings.TrimSpace(req.Reason) != "" {
		reason = strings.TrimSpace(req.Reason)
	}
	terms := "Cancellation Reason: " + reason
	if contract.TermsAndConditions != "" {
		terms = contract.TermsAndConditions + "\n\nCancellation Reason: " + reason
	}
	err = s.transition(actor, contract, "cancel", map[string]interface{}{
		"status":               models.ContractCancelled,
		"terms_and_conditions": terms,
	}, nil)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(contract.ClientID, NotificationInput{
		Title:      "Contract Cancelled",
		Message:    fmt.Sprintf("Contract %s has been cancelled: %s", contract.ContractNumber, reason),
		Type:       "contract",
		EntityType: "contract",
		EntityID:   &contract.ID,
		ActionURL:  "/dashboard/contracts/" + contract.ID.String(),
	})
	return contract, nil
}

type ContractStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	Expired    int64            `json:"expired"`
	TotalValue float64          `json:"total_value"`
}

func (s *ContractService) Stats() (*ContractStats, error) {
	stats := &ContractStats{ByStatus: map[string]int64{}}
	for _, status := range []string{
		models.ContractDraft, models.ContractSent, models.ContractSigned,
		models.ContractActive, models.ContractCompleted, models.ContractCancelled,
	} {
		var n int64
		if err := s.db.Model(&models.Contract{}).Where("status = ?", status).Count(&n).Error; err != nil {
			return nil, err
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}
	if err := s.db.Model(&models.Contract{}).
		Where("status IN ? AND expiry_date IS NOT NULL AND expiry_date < ?",
			[]string{models.ContractDraft, models.ContractSent}, utils.Today()).
		Count(&stats.Expired).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Contract{}).
		Where("status IN ?", []string{models.ContractSigned, models.ContractActive, models.ContractCompleted}).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalValue).Error; err != nil {
		return nil, err
	}
	stats.TotalValue = utils.Round2(stats.TotalValue)
	return stats, nil
}
