package handlers

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/internal/services"
	"github.com/opendrive/server/internal/storage"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
)

type DriveHandler struct {
	Folders  *services.FolderService
	Access   *services.AccessService
	Drive    *storage.LocalDrive
	Replica  storage.Replica
	Sessions *middleware.SessionMiddleware
}

// NewDriveHandler wires the browsing and file routes. replica may be nil.
func NewDriveHandler(
	folders *services.FolderService,
	access *services.AccessService,
	drive *storage.LocalDrive,
	replica storage.Replica,
	sessions *middleware.SessionMiddleware,
) *DriveHandler {
	return &DriveHandler{
		Folders:  folders,
		Access:   access,
		Drive:    drive,
		Replica:  replica,
		Sessions: sessions,
	}
}

type folderEntry struct {
	ID   string
	Name string
	Href string
}

type fileEntry struct {
	Name string
	Size int64
}

// Browse renders one folder and makes it the session's current folder.
func (h *DriveHandler) Browse(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	ref := param(c, "folder")

	if param(c, "user") != session.Username {
		return utils.Redirect(c, rootPath(session.Username))
	}

	ctx := c.UserContext()
	var folder *models.Folder
	var err error
	if ref == services.RootFolderRef {
		folder, err = h.Access.EnsureRoot(ctx, session.Username)
	} else {
		folder, err = h.Access.Resolve(ctx, session.Username, ref)
		if err == nil && !h.Drive.Exists(folder.Path) {
			err = services.ErrFolderNotFound
		}
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Redirect(c, rootPath(session.Username))
		}
	}
	if err != nil {
		return err
	}

	dirs, files, err := storage.ListContents(folder.Path)
	if err != nil {
		return err
	}

	folders, err := h.folderEntries(ctx, session.Username, folder, dirs)
	if err != nil {
		return err
	}

	if err := h.remember(c, session, folder); err != nil {
		return err
	}

	title := folder.Name
	if h.Access.IsRoot(folder) {
		title = "My drive"
	}

	return render(c, fiber.StatusOK, "drive", fiber.Map{
		"Title":     title,
		"FolderRef": ref,
		"IsRoot":    h.Access.IsRoot(folder),
		"Folders":   folders,
		"Files":     h.fileEntries(folder, files),
	})
}

// Shared lists folders other users have added the current user to.
func (h *DriveHandler) Shared(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	shared, err := h.Folders.ListShared(c.UserContext(), session.Username)
	if err != nil {
		return err
	}

	entries := make([]folderEntry, 0, len(shared))
	for _, folder := range shared {
		entries = append(entries, folderEntry{
			ID:   folder.ID,
			Name: folder.Name,
			Href: "/" + session.Username + "/" + folder.ID,
		})
	}

	return render(c, fiber.StatusOK, "drive", fiber.Map{
		"Title":   "Shared with me",
		"Shared":  true,
		"Folders": entries,
	})
}

// Upload stores every file of the multipart "files" field in the current
// folder.
func (h *DriveHandler) Upload(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	ctx := c.UserContext()

	folder, err := h.currentFolder(ctx, c, session)
	if err != nil {
		return err
	}

	webPath := h.Access.WebPath(session.Username, folder)

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Redirect(c, webPath)
	}

	for _, fileHeader := range form.File["files"] {
		if err := h.saveUpload(ctx, session.Username, folder, fileHeader); err != nil {
			return err
		}
	}

	return utils.Redirect(c, webPath)
}

func (h *DriveHandler) saveUpload(ctx context.Context, username string, folder *models.Folder, fileHeader *multipart.FileHeader) error {
	name, err := storage.CleanFileName(fileHeader.Filename)
	if err != nil {
		logger.WarnWithUser(username, "upload_rejected", map[string]interface{}{
			"filename": fileHeader.Filename,
			"reason":   err.Error(),
		})
		return nil
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return err
	}
	path, size, err := h.Drive.SaveFile(folder.Path, name, stream)
	stream.Close()
	if err != nil {
		logger.ErrorWithUser(username, "file_upload_failed", err, map[string]interface{}{
			"folder_id": folder.ID,
			"filename":  name,
		})
		return err
	}

	logger.InfoWithUser(username, "file_uploaded", map[string]interface{}{
		"folder_id": folder.ID,
		"filename":  name,
		"size":      size,
	})

	h.replicate(ctx, path, fileHeader)
	return nil
}

// replicate copies an upload to the replica. Failures are logged by the
// replica and otherwise ignored.
func (h *DriveHandler) replicate(ctx context.Context, path string, fileHeader *multipart.FileHeader) {
	if h.Replica == nil {
		return
	}

	objectName, err := h.Drive.Rel(path)
	if err != nil {
		return
	}

	contentType := fileHeader.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return
	}
	defer stream.Close()

	_ = h.Replica.Upload(ctx, objectName, stream, fileHeader.Size, contentType)
}

// NewFolder creates a subfolder of the current folder.
func (h *DriveHandler) NewFolder(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	ctx := c.UserContext()

	folder, err := h.currentFolder(ctx, c, session)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if err := validation.Validate(name, validation.Required, validation.Length(1, 255)); err != nil {
		logger.WarnWithUser(session.Username, "folder_name_rejected", map[string]interface{}{
			"reason": err.Error(),
		})
		return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
	}

	if _, err := h.Folders.AddFolder(ctx, name, session.Username, folder.Path); err != nil {
		return err
	}
	return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
}

func (h *DriveHandler) Download(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	folder, err := h.Access.Resolve(c.UserContext(), session.Username, param(c, "folder"))
	if errors.Is(err, services.ErrFolderNotFound) {
		return utils.Redirect(c, rootPath(session.Username))
	}
	if err != nil {
		return err
	}

	name := param(c, "file")
	path, err := h.Drive.FilePath(folder.Path, name)
	if err != nil {
		return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
	}

	logger.InfoWithUser(session.Username, "file_downloaded", map[string]interface{}{
		"folder_id": folder.ID,
		"filename":  filepath.Base(path),
	})
	return c.Download(path, filepath.Base(path))
}

// DeleteFile removes one file from a folder the user owns.
func (h *DriveHandler) DeleteFile(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	ctx := c.UserContext()

	folder, err := h.Access.Resolve(ctx, session.Username, param(c, "folder"))
	if errors.Is(err, services.ErrFolderNotFound) {
		return utils.Redirect(c, rootPath(session.Username))
	}
	if err != nil {
		return err
	}

	name := param(c, "file")
	removed, err := h.Drive.RemoveFile(folder.Path, name)
	if errors.Is(err, storage.ErrInvalidName) {
		return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
	}
	if err != nil {
		return err
	}

	if removed {
		logger.InfoWithUser(session.Username, "file_deleted", map[string]interface{}{
			"folder_id": folder.ID,
			"filename":  name,
		})
		if h.Replica != nil {
			if path, pathErr := h.Drive.FilePath(folder.Path, name); pathErr == nil {
				if objectName, relErr := h.Drive.Rel(path); relErr == nil {
					_ = h.Replica.Delete(ctx, objectName)
				}
			}
		}
	}

	return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
}

// DeleteFolder removes a folder with everything below it. Root folders stay.
func (h *DriveHandler) DeleteFolder(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	ctx := c.UserContext()

	folder, err := h.Access.Resolve(ctx, session.Username, param(c, "folder"))
	if errors.Is(err, services.ErrFolderNotFound) {
		return utils.Redirect(c, rootPath(session.Username))
	}
	if err != nil {
		return err
	}

	if h.Access.IsRoot(folder) {
		logger.WarnWithUser(session.Username, "folder_delete_refused", map[string]interface{}{
			"folder_id": folder.ID,
			"reason":    services.ErrRootFolder.Error(),
		})
		return utils.Redirect(c, h.Access.WebPath(session.Username, folder))
	}

	objectPrefix, relErr := h.Drive.Rel(folder.Path)
	if err := h.Folders.DeleteFolder(ctx, folder.ID); err != nil {
		return err
	}
	if h.Replica != nil && relErr == nil {
		_ = h.Replica.DeletePrefix(ctx, objectPrefix+"/")
	}

	// The folder being viewed may have just disappeared.
	current, err := h.currentFolder(ctx, c, session)
	if err != nil {
		return err
	}
	return utils.Redirect(c, h.Access.WebPath(session.Username, current))
}

// currentFolder resolves the folder the session points at. A folder whose row
// or directory is gone falls back to the user's root.
func (h *DriveHandler) currentFolder(ctx context.Context, c *fiber.Ctx, session *middleware.Session) (*models.Folder, error) {
	ref := services.RootFolderRef
	if parts := strings.Split(strings.Trim(session.WebPath, "/"), "/"); len(parts) == 2 && parts[0] == session.Username {
		ref = parts[1]
	}

	folder, err := h.Access.Resolve(ctx, session.Username, ref)
	if err == nil && !h.Drive.Exists(folder.Path) {
		err = services.ErrFolderNotFound
	}
	if errors.Is(err, services.ErrFolderNotFound) {
		folder, err = h.Access.EnsureRoot(ctx, session.Username)
	}
	if err != nil {
		return nil, err
	}

	if folder.Path != session.ResolvedPath {
		if err := h.remember(c, session, folder); err != nil {
			return nil, err
		}
	}
	return folder, nil
}

func (h *DriveHandler) remember(c *fiber.Ctx, session *middleware.Session, folder *models.Folder) error {
	return h.Sessions.Save(c, &middleware.Session{
		Username:     session.Username,
		ResolvedPath: folder.Path,
		WebPath:      h.Access.WebPath(session.Username, folder),
	})
}

// folderEntries labels the directories found on disk with their folder
// names. Directories without an owned folder row are not shown.
func (h *DriveHandler) folderEntries(ctx context.Context, username string, folder *models.Folder, dirs []string) ([]folderEntry, error) {
	children, err := h.Folders.ListChildren(ctx, folder.Path, username)
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		onDisk[dir] = true
	}

	entries := make([]folderEntry, 0, len(children))
	for _, child := range children {
		if !onDisk[child.ID] {
			continue
		}
		entries = append(entries, folderEntry{
			ID:   child.ID,
			Name: child.Name,
			Href: "/" + username + "/" + child.ID,
		})
	}
	return entries, nil
}

func (h *DriveHandler) fileEntries(folder *models.Folder, names []string) []fileEntry {
	sort.Strings(names)
	entries := make([]fileEntry, 0, len(names))
	for _, name := range names {
		entry := fileEntry{Name: name}
		if info, err := os.Stat(filepath.Join(folder.Path, name)); err == nil {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	return entries
}
