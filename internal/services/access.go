package services

import (
	"context"
	"errors"

	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/pkg/logger"
)

// RootFolderRef addresses a user's root folder in /<user>/<folder> routes.
const RootFolderRef = "root"

// AccessService resolves folder references from URLs against the folders
// the current user owns.
type AccessService struct {
	Folders   *FolderService
	DriveRoot string
}

func NewAccessService(folders *FolderService, driveRoot string) *AccessService {
	return &AccessService{Folders: folders, DriveRoot: withTrailingSeparator(driveRoot)}
}

// Resolve maps ref to a folder owned by username. The "root" sentinel is
// looked up by name, anything else by id.
func (a *AccessService) Resolve(ctx context.Context, username, ref string) (*models.Folder, error) {
	if ref == RootFolderRef {
		return a.Root(ctx, username)
	}
	return a.Folders.GetFolderByID(ctx, ref, username)
}

func (a *AccessService) Root(ctx context.Context, username string) (*models.Folder, error) {
	return a.Folders.GetFolderByName(ctx, username, username)
}

// EnsureRoot returns the user's root folder, creating it when the user has
// none and recreating its directory when that has gone missing. Signup
// creates roots; this covers roots removed behind the application's back.
func (a *AccessService) EnsureRoot(ctx context.Context, username string) (*models.Folder, error) {
	root, err := a.Root(ctx, username)
	if errors.Is(err, ErrFolderNotFound) {
		return a.Folders.AddFolder(ctx, username, username, a.DriveRoot)
	}
	if err != nil {
		return nil, err
	}

	if !a.Folders.Mirror.Exists(root.Path) {
		logger.WarnWithUser(username, "root_directory_recreated", map[string]interface{}{
			"folder_id": root.ID,
		})
		if err := a.Folders.Mirror.MakeDir(root.Path); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// IsRoot reports whether folder sits directly in the drive root, which only
// signup-created root folders do.
func (a *AccessService) IsRoot(folder *models.Folder) bool {
	return folder != nil && folder.Parent == a.DriveRoot
}

// WebPath is the browsing route for folder. The user's own root uses the
// sentinel; roots of other users they co-own are addressed by id.
func (a *AccessService) WebPath(username string, folder *models.Folder) string {
	if a.IsRoot(folder) && folder.Name == username {
		return "/" + username + "/" + RootFolderRef
	}
	return "/" + username + "/" + folder.ID
}
