package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultMaxUploadBytes = 16 << 20
	orphanGracePeriod     = time.Hour
)

// StoredFile is the result of a successful upload.
type StoredFile struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Size         int64  `json:"size"`
	Extension    string `json:"extension"`
	MimeType     string `json:"mime_type"`
}

// FileService validates uploads, enforces path based access and keeps the
// store in step with the rows that reference it.
type FileService struct {
	db       *gorm.DB
	store    FileStore
	maxBytes int64
}

func NewFileService(db *gorm.DB, store FileStore, maxUploadMB int64) *FileService {
	maxBytes := int64(DefaultMaxUploadBytes)
	if maxUploadMB > 0 {
		maxBytes = maxUploadMB << 20
	}
	return &FileService{db: db, store: store, maxBytes: maxBytes}
}

func (s *FileService) Store() FileStore { return s.store }

// Save validates fh and writes it under folder with a random name.
// allowed restricts extensions further; nil means the general upload list.
func (s *FileService) Save(ctx context.Context, folder string, fh *multipart.FileHeader, allowed map[string]bool) (*StoredFile, error) {
	if fh == nil {
		return nil, response.NewBadRequest("No file provided")
	}
	if fh.Filename == "" {
		return nil, response.NewBadRequest("No file selected")
	}
	if allowed == nil {
		allowed = utils.AllowedExtensions
	}
	ext := utils.FileExtension(fh.Filename)
	if !allowed[ext] {
		return nil, response.NewBadRequest("File type not allowed")
	}
	if fh.Size > s.maxBytes {
		return nil, response.NewBadRequest(fmt.Sprintf("File too large. Maximum size is %d MB", s.maxBytes>>20))
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			mimeType = byExt
		}
	}

	storedName := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
	key := folder + "/" + storedName
	if err := s.store.Put(ctx, key, src, fh.Size, mimeType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return &StoredFile{
		Key:          key,
		URL:          s.store.URL(key),
		OriginalName: utils.SanitizeFilename(fh.Filename),
		StoredName:   storedName,
		Size:         fh.Size,
		Extension:    ext,
		MimeType:     mimeType,
	}, nil
}

// Upload handles the general upload endpoint.
func (s *FileService) Upload(ctx context.Context, actor Actor, folder string, fh *multipart.FileHeader) (*StoredFile, error) {
	if folder == "" {
		folder = "general"
	}
	clean, ok := utils.SanitizeFolder(folder)
	if !ok {
		return nil, response.NewBadRequest("Invalid folder")
	}
	if err := s.checkAccess(actor, clean+"/", true); err != nil {
		return nil, err
	}
	return s.Save(ctx, clean, fh, nil)
}

// RemoveRef deletes the object behind a stored reference. Failures are logged.
func (s *FileService) RemoveRef(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	key, ok := s.store.KeyFromURL(ref)
	if !ok {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warnf("[Files] delete %s failed: %v", key, err)
	}
}

// checkAccess applies the prefix rules: projects/<id>/ for the owning client,
// identity/ for the submitting user, everything else readable by anyone and
// writable by admins.
func (s *FileService) checkAccess(actor Actor, key string, write bool) error {
	if actor.IsAdmin() {
		return nil
	}
	parts := strings.SplitN(key, "/", 3)
	switch parts[0] {
	case "projects":
		if len(parts) < 2 {
			return response.NewForbidden("Access denied")
		}
		projectID, err := uuid.Parse(parts[1])
		if err != nil {
			return response.NewForbidden("Access denied")
		}
		_, err = loadProjectFor(s.db, actor, projectID)
		return err
	case "identity":
		if write {
			return response.NewForbidden("Access denied")
		}
		var kyc models.IdentityVerification
		if err := s.db.Where("user_id = ?", actor.UserID).First(&kyc).Error; err != nil {
			return response.NewForbidden("Access denied")
		}
		for _, ref := range kyc.ImageURLs() {
			if k, ok := s.store.KeyFromURL(ref); ok && k == key {
				return nil
			}
		}
		return response.NewForbidden("Access denied")
	case "avatars":
		if write {
			return response.NewForbidden("Access denied")
		}
		return nil
	default:
		if write && parts[0] != "general" {
			return response.NewForbidden("Access denied")
		}
		return nil
	}
}

func (s *FileService) resolve(ctx context.Context, actor Actor, rawPath string, write bool) (string, *ObjectInfo, error) {
	key, err := cleanKey(rawPath)
	if err != nil {
		return "", nil, response.NewBadRequest("Invalid file path")
	}
	if err := s.checkAccess(actor, key, write); err != nil {
		return "", nil, err
	}
	info, err := s.store.Stat(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return "", nil, response.NewNotFound("File not found")
	}
	if err != nil {
		return "", nil, err
	}
	return key, info, nil
}

// Download opens an object the actor may read. The caller closes the reader.
func (s *FileService) Download(ctx context.Context, actor Actor, rawPath string) (io.ReadCloser, *ObjectInfo, error) {
	key, _, err := s.resolve(ctx, actor, rawPath, false)
	if err != nil {
		return nil, nil, err
	}
	rc, info, err := s.store.Open(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil, response.NewNotFound("File not found")
	}
	return rc, info, err
}

type FileInfo struct {
	ObjectInfo
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (s *FileService) Info(ctx context.Context, actor Actor, rawPath string) (*FileInfo, error) {
	key, info, err := s.resolve(ctx, actor, rawPath, false)
	if err != nil {
		return nil, err
	}
	return &FileInfo{ObjectInfo: *info, Filename: key[strings.LastIndex(key, "/")+1:], URL: s.store.URL(key)}, nil
}

// Delete removes an object and, for project files, its row. A client may
// delete inside their own project folder only.
func (s *FileService) Delete(ctx context.Context, actor Actor, rawPath string) error {
	key, _, err := s.resolve(ctx, actor, rawPath, true)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	if strings.HasPrefix(key, "projects/") {
		if err := s.db.Where("file_path = ?", s.store.URL(key)).Delete(&models.ProjectFile{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *FileService) ProjectFiles(actor Actor, projectID uuid.UUID, p pagination.Params) ([]models.ProjectFile, pagination.Meta, error) {
	if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
		return nil, pagination.Meta{}, err
	}
	query := s.db.Model(&models.ProjectFile{}).Where("project_id = ?", projectID)
	return pagination.Paginate[models.ProjectFile](query, p,
		pagination.OrderBy("created_at DESC"), pagination.Preload("Uploader"))
}

// referencedKeys collects every object key still pointed to by a row.
func (s *FileService) referencedKeys() (map[string]bool, error) {
	var refs []string
	collect := func(model interface{}, columns ...string) error {
		for _, col := range columns {
			var vals []string
			if err := s.db.Model(model).Where(col+" <> ?", "").Pluck(col, &vals).Error; err != nil {
				return err
			}
			refs = append(refs, vals...)
		}
		return nil
	}
	if err := collect(&models.ProjectFile{}, "file_path"); err != nil {
		return nil, err
	}
	if err := collect(&models.UserProfile{}, "avatar_url"); err != nil {
		return nil, err
	}
	if err := collect(&models.IdentityVerification{}, "front_id_image_url", "back_id_image_url", "signature_image_url"); err != nil {
		return nil, err
	}
	if err := collect(&models.ContractSignature{}, "signature_image_url"); err != nil {
		return nil, err
	}

	keys := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if key, ok := s.store.KeyFromURL(ref); ok {
			keys[key] = true
		}
	}
	return keys, nil
}

// Cleanup deletes stored objects older than the grace period that no row references.
func (s *FileService) Cleanup(ctx context.Context) (int, error) {
	referenced, err := s.referencedKeys()
	if err != nil {
		return 0, err
	}
	objects, err := s.store.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list objects: %w", err)
	}
	cutoff := time.Now().Add(-orphanGracePeriod)
	cleaned := 0
	for _, obj := range objects {
		if referenced[obj.Key] || obj.ModTime.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			logger.Warnf("[Files] cleanup of %s failed: %v", obj.Key, err)
			continue
		}
		cleaned++
	}
	logger.Infof("[Files] cleanup removed %d orphaned objects", cleaned)
	return cleaned, nil
}

type FileStats struct {
	TotalProjectFiles int64            `json:"total_project_files"`
	TotalFileSize     int64            `json:"total_file_size"`
	FilesByType       map[string]int64 `json:"files_by_type"`
}

func (s *FileService) Stats() (*FileStats, error) {
	stats := &FileStats{FilesByType: map[string]int64{}}
	if err := s.db.Model(&models.ProjectFile{}).Count(&stats.TotalProjectFiles).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ProjectFile{}).Select("COALESCE(SUM(file_size), 0)").Scan(&stats.TotalFileSize).Error; err != nil {
		return nil, err
	}
	var rows []struct {
		FileType string
		Count    int64
	}
	if err := s.db.Model(&models.ProjectFile{}).
		Select("file_type, COUNT(*) AS count").
		Group("file_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.FilesByType[r.FileType] = r.Count
	}
	return stats, nil
}
