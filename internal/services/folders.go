package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/pkg/logger"
	"gorm.io/gorm"
)

const (
	FolderIDLength = 64
	maxIDAttempts  = 16
	idAlphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Mirror is the on-disk side of the folders table.
type Mirror interface {
	Exists(path string) bool
	MakeDir(path string) error
	RemoveAll(path string) error
}

// FolderService is the folder directory: folder rows plus the directories
// that mirror them. Creating or deleting a folder runs the filesystem step
// inside the database transaction, so a row is only committed when the disk
// agrees with it.
type FolderService struct {
	DB     *gorm.DB
	Mirror Mirror

	newID func() (string, error)
}

func NewFolderService(db *gorm.DB, mirror Mirror) *FolderService {
	return &FolderService{DB: db, Mirror: mirror, newID: GenerateID}
}

// GenerateID returns a random FolderIDLength-character alphanumeric token.
func GenerateID() (string, error) {
	alphabetSize := big.NewInt(int64(len(idAlphabet)))
	buf := make([]byte, FolderIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (s *FolderService) unusedID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}

		_, err = s.GetFolder(ctx, id)
		if errors.Is(err, ErrFolderNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}

		logger.Warn("folder_id_collision", map[string]interface{}{
			"attempt": attempt + 1,
		})
	}
	return "", ErrIDSpaceExhausted
}

// AddFolder creates a folder named name, owned by owner, inside basePath.
// The new folder lives at basePath + id + separator.
func (s *FolderService) AddFolder(ctx context.Context, name, owner, basePath string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	basePath = withTrailingSeparator(basePath)

	id, err := s.unusedID(ctx)
	if err != nil {
		return nil, err
	}

	folder := models.Folder{
		ID:     id,
		Name:   name,
		Owners: models.NewOwnerSet(owner),
		Path:   basePath + id + string(filepath.Separator),
		Parent: basePath,
	}

	madeDir := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&folder).Error; err != nil {
			return err
		}
		if err := s.Mirror.MakeDir(folder.Path); err != nil {
			return err
		}
		madeDir = true
		return nil
	})
	if err != nil {
		if madeDir {
			_ = s.Mirror.RemoveAll(folder.Path)
		}
		logger.ErrorWithUser(owner, "folder_create_failed", err, map[string]interface{}{
			"folder_name": name,
			"parent":      basePath,
		})
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}

	logger.InfoWithUser(owner, "folder_created", map[string]interface{}{
		"folder_id":   folder.ID,
		"folder_name": folder.Name,
		"parent":      folder.Parent,
	})
	return &folder, nil
}

// GetFolder looks a folder up by id without checking ownership.
func (s *FolderService) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	var folder models.Folder
	err := s.DB.WithContext(ctx).First(&folder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (s *FolderService) GetFolderByID(ctx context.Context, id, asker string) (*models.Folder, error) {
	return s.firstOwned(ctx, "id = ?", id, asker)
}

// GetFolderByName returns the oldest folder called name that asker owns. A
// user's root folder is named after the user and created at signup, so it
// wins over any later folder with the same name.
func (s *FolderService) GetFolderByName(ctx context.Context, name, asker string) (*models.Folder, error) {
	return s.firstOwned(ctx, "name = ?", name, asker)
}

func (s *FolderService) firstOwned(ctx context.Context, query string, key string, asker string) (*models.Folder, error) {
	var candidates []models.Folder
	if err := s.DB.WithContext(ctx).Where(query, key).Order("created_at ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].OwnedBy(asker) {
			return &candidates[i], nil
		}
	}
	return nil, ErrFolderNotFound
}

// ListChildren returns the folders directly inside parentPath that asker
// owns, ordered by name.
func (s *FolderService) ListChildren(ctx context.Context, parentPath, asker string) ([]models.Folder, error) {
	var rows []models.Folder
	if err := s.DB.WithContext(ctx).
		Where("parent = ?", withTrailingSeparator(parentPath)).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	owned := make([]models.Folder, 0, len(rows))
	for _, row := range rows {
		if row.OwnedBy(asker) {
			owned = append(owned, row)
		}
	}
	return owned, nil
}

// ListShared returns folders asker co-owns but did not create. The creator
// is always the first owner.
func (s *FolderService) ListShared(ctx context.Context, asker string) ([]models.Folder, error) {
	var rows []models.Folder
	if err := s.DB.WithContext(ctx).
		Where("owners LIKE ?", "%"+likeEscape(asker)+"%").
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	shared := make([]models.Folder, 0, len(rows))
	for _, row := range rows {
		if row.OwnedBy(asker) && len(row.Owners) > 0 && row.Owners[0] != asker {
			shared = append(shared, row)
		}
	}
	return shared, nil
}

// DeleteFolder removes a folder, every folder below it and the directory
// tree on disk.
func (s *FolderService) DeleteFolder(ctx context.Context, id string) error {
	folder, err := s.GetFolder(ctx, id)
	if err != nil {
		return err
	}

	var removed int
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := descendantIDs(tx, folder.Path)
		if err != nil {
			return err
		}
		ids = append(ids, folder.ID)

		if err := tx.Where("id IN ?", ids).Delete(&models.Folder{}).Error; err != nil {
			return err
		}
		removed = len(ids)

		return s.Mirror.RemoveAll(folder.Path)
	})
	if err != nil {
		logger.Error("folder_delete_failed", err, map[string]interface{}{
			"folder_id": folder.ID,
			"path":      folder.Path,
		})
		return fmt.Errorf("deleting folder %s: %w", folder.ID, err)
	}

	logger.Info("folder_deleted", map[string]interface{}{
		"folder_id":    folder.ID,
		"folder_name":  folder.Name,
		"rows_removed": removed,
	})
	return nil
}

// descendantIDs finds every folder whose parent lies under path. LIKE only
// narrows the candidates; the prefix test decides, since paths may contain
// LIKE wildcards.
func descendantIDs(tx *gorm.DB, path string) ([]string, error) {
	var candidates []models.Folder
	if err := tx.Select("id", "parent").Where("parent LIKE ?", likePrefix(path)).Find(&candidates).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate.Parent, path) {
			ids = append(ids, candidate.ID)
		}
	}
	return ids, nil
}

func likePrefix(path string) string {
	return likeEscape(path) + "%"
}

// likeEscape turns wildcards into single-character matches; callers recheck
// every candidate.
func likeEscape(value string) string {
	return strings.NewReplacer("%", "_", `\`, "_").Replace(value)
}

func withTrailingSeparator(path string) string {
	sep := string(filepath.Separator)
	if strings.HasSuffix(path, sep) {
		return path
	}
	return path + sep
}
