package handlers

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/internal/storage"
)

func TestBrowseRoot(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	resp := b.get("/alice/root")
	assertStatus(t, resp, http.StatusOK)
	body := readBody(t, resp)
	if !strings.Contains(body, "My drive") {
		t.Fatalf("expected root title, got %q", body)
	}
	if !strings.Contains(body, "This folder is empty.") {
		t.Fatalf("expected an empty listing, got %q", body)
	}
}

func TestBrowseOtherUsersPathRedirectsToOwnRoot(t *testing.T) {
	env := setupTestEnv(t)
	loggedIn(t, env, "alice")
	bob := loggedIn(t, env, "bob")

	assertRedirect(t, bob.get("/alice/root"), http.StatusFound, "/bob/root")

	aliceRoot := rootFolder(t, env, "alice")
	assertRedirect(t, bob.get("/bob/"+aliceRoot.ID), http.StatusFound, "/bob/root")
	assertRedirect(t, bob.get("/bob/does-not-exist"), http.StatusFound, "/bob/root")
}

func TestUploadAppearsInListing(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	resp := b.upload(map[string]string{
		"notes.txt":       "hello",
		"../../escape.sh": "echo",
	})
	assertRedirect(t, resp, http.StatusSeeOther, "/alice/root")

	root := rootFolder(t, env, "alice")
	assertFileContent(t, filepath.Join(root.Path, "notes.txt"), "hello")
	assertFileContent(t, filepath.Join(root.Path, "escape.sh"), "echo")

	_, files, err := storage.ListContents(root.Path)
	if err != nil {
		t.Fatalf("failed listing root: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected two files in the root, got %v", files)
	}

	body := readBody(t, b.get("/alice/root"))
	if !strings.Contains(body, "notes.txt") {
		t.Fatalf("expected uploaded file in listing, got %q", body)
	}
	if !strings.Contains(body, "5 B") {
		t.Fatalf("expected file size in listing, got %q", body)
	}
}

func TestUploadIsReplicated(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertStatus(t, b.upload(map[string]string{"notes.txt": "hello"}), http.StatusSeeOther)

	root := rootFolder(t, env, "alice")
	objectName := root.ID + "/notes.txt"
	if got := env.replica.uploads[objectName]; got != "hello" {
		t.Fatalf("expected replica object %s with content %q, got %v", objectName, "hello", env.replica.uploads)
	}

	assertStatus(t, b.postForm("/delete/root/notes.txt", nil), http.StatusSeeOther)
	if len(env.replica.deleted) != 1 || env.replica.deleted[0] != objectName {
		t.Fatalf("expected replica delete of %s, got %v", objectName, env.replica.deleted)
	}
}

func TestNewFolder(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	resp := b.postForm("/new", url.Values{"name": {"docs"}})
	assertRedirect(t, resp, http.StatusSeeOther, "/alice/root")

	root := rootFolder(t, env, "alice")
	docs := folderNamed(t, env, "docs")
	if docs.Parent != root.Path {
		t.Fatalf("expected docs under %s, got parent %s", root.Path, docs.Parent)
	}
	if docs.Path != root.Path+docs.ID+string(filepath.Separator) {
		t.Fatalf("unexpected folder path %s", docs.Path)
	}
	if !docs.OwnedBy("alice") {
		t.Fatalf("expected alice to own docs, owners=%v", docs.Owners)
	}

	dirs, _, err := storage.ListContents(root.Path)
	if err != nil {
		t.Fatalf("failed listing root: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != docs.ID {
		t.Fatalf("expected the new directory in the root listing, got %v", dirs)
	}

	body := readBody(t, b.get("/alice/root"))
	if !strings.Contains(body, `href="/alice/`+docs.ID+`"`) || !strings.Contains(body, ">docs<") {
		t.Fatalf("expected docs link in listing, got %q", body)
	}
}

func TestNewFolderRejectsBlankName(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertRedirect(t, b.postForm("/new", url.Values{"name": {"   "}}), http.StatusSeeOther, "/alice/root")

	var count int64
	env.db.Model(&models.Folder{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected only the root folder, got %d folders", count)
	}
}

func TestBrowsingMovesUploadsAndNewFolders(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertStatus(t, b.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")

	resp := b.get("/alice/" + docs.ID)
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.Contains(body, "Delete this folder") {
		t.Fatalf("expected a delete button for a subfolder, got %q", body)
	}

	assertRedirect(t, b.upload(map[string]string{"report.pdf": "pdf"}), http.StatusSeeOther, "/alice/"+docs.ID)
	assertFileContent(t, filepath.Join(docs.Path, "report.pdf"), "pdf")

	assertRedirect(t, b.postForm("/new", url.Values{"name": {"2024"}}), http.StatusSeeOther, "/alice/"+docs.ID)
	nested := folderNamed(t, env, "2024")
	if nested.Parent != docs.Path {
		t.Fatalf("expected 2024 under docs, got parent %s", nested.Parent)
	}
}

func TestDownload(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")
	assertStatus(t, b.upload(map[string]string{"notes.txt": "hello"}), http.StatusSeeOther)

	resp := b.get("/download/root/notes.txt")
	assertStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "attachment") || !strings.Contains(got, "notes.txt") {
		t.Fatalf("expected attachment disposition, got %q", got)
	}
	if body := readBody(t, resp); body != "hello" {
		t.Fatalf("expected file content %q, got %q", "hello", body)
	}

	assertRedirect(t, b.get("/download/root/missing.txt"), http.StatusFound, "/alice/root")
	assertRedirect(t, b.get("/download/nope/notes.txt"), http.StatusFound, "/alice/root")
}

func TestDownloadFromForeignFolderIsRefused(t *testing.T) {
	env := setupTestEnv(t)
	alice := loggedIn(t, env, "alice")
	assertStatus(t, alice.upload(map[string]string{"secret.txt": "s3cret"}), http.StatusSeeOther)
	aliceRoot := rootFolder(t, env, "alice")

	bob := loggedIn(t, env, "bob")
	assertRedirect(t, bob.get("/download/"+aliceRoot.ID+"/secret.txt"), http.StatusFound, "/bob/root")
}

func TestDeleteFile(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")
	assertStatus(t, b.upload(map[string]string{"notes.txt": "hello"}), http.StatusSeeOther)
	root := rootFolder(t, env, "alice")

	assertRedirect(t, b.postForm("/delete/root/notes.txt", nil), http.StatusSeeOther, "/alice/root")
	if _, err := os.Stat(filepath.Join(root.Path, "notes.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected notes.txt to be removed, stat err=%v", err)
	}

	assertRedirect(t, b.postForm("/delete/root/notes.txt", nil), http.StatusSeeOther, "/alice/root")
}

func TestDeleteFolder(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")
	root := rootFolder(t, env, "alice")

	assertStatus(t, b.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")
	assertStatus(t, b.get("/alice/"+docs.ID), http.StatusOK)
	assertStatus(t, b.postForm("/new", url.Values{"name": {"2024"}}), http.StatusSeeOther)
	nested := folderNamed(t, env, "2024")

	// Deleting the folder being viewed lands back on the root.
	assertRedirect(t, b.postForm("/delete/"+docs.ID, nil), http.StatusSeeOther, "/alice/root")

	for _, id := range []string{docs.ID, nested.ID} {
		if _, err := env.folders.GetFolder(context.Background(), id); err == nil {
			t.Fatalf("expected folder %s to be deleted", id)
		}
	}
	if env.drive.Exists(docs.Path) {
		t.Fatalf("expected directory %s to be removed", docs.Path)
	}

	dirs, _, err := storage.ListContents(root.Path)
	if err != nil {
		t.Fatalf("failed listing root: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected no directories left in the root, got %v", dirs)
	}

	wantPrefix := root.ID + "/" + docs.ID + "/"
	if len(env.replica.prefixes) != 1 || env.replica.prefixes[0] != wantPrefix {
		t.Fatalf("expected replica prefix delete %s, got %v", wantPrefix, env.replica.prefixes)
	}
}

func TestDeleteRootFolderIsRefused(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")
	root := rootFolder(t, env, "alice")

	assertRedirect(t, b.postForm("/delete/root", nil), http.StatusSeeOther, "/alice/root")
	assertRedirect(t, b.postForm("/delete/"+root.ID, nil), http.StatusSeeOther, "/alice/root")

	if !env.drive.Exists(root.Path) {
		t.Fatalf("expected root directory to survive")
	}
	if _, err := env.folders.GetFolder(context.Background(), root.ID); err != nil {
		t.Fatalf("expected root folder row to survive: %v", err)
	}
}

func TestDeleteForeignFolderIsRefused(t *testing.T) {
	env := setupTestEnv(t)
	alice := loggedIn(t, env, "alice")
	assertStatus(t, alice.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")

	bob := loggedIn(t, env, "bob")
	assertRedirect(t, bob.postForm("/delete/"+docs.ID, nil), http.StatusSeeOther, "/bob/root")

	if _, err := env.folders.GetFolder(context.Background(), docs.ID); err != nil {
		t.Fatalf("expected alice's folder to survive: %v", err)
	}
	if !env.drive.Exists(docs.Path) {
		t.Fatalf("expected alice's directory to survive")
	}
}

func TestSharedListsCoOwnedFolders(t *testing.T) {
	env := setupTestEnv(t)
	alice := loggedIn(t, env, "alice")
	assertStatus(t, alice.postForm("/new", url.Values{"name": {"team"}}), http.StatusSeeOther)
	team := folderNamed(t, env, "team")
	team.Owners = team.Owners.Add("bob")
	if err := env.db.Save(team).Error; err != nil {
		t.Fatalf("failed sharing folder: %v", err)
	}

	bob := loggedIn(t, env, "bob")
	resp := bob.get("/shared")
	assertStatus(t, resp, http.StatusOK)
	body := readBody(t, resp)
	if !strings.Contains(body, `href="/bob/`+team.ID+`"`) {
		t.Fatalf("expected shared folder link, got %q", body)
	}

	assertStatus(t, bob.get("/bob/"+team.ID), http.StatusOK)
}

func TestBrowseFolderWithMissingDirectoryFallsBackToRoot(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertStatus(t, b.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")
	assertStatus(t, b.get("/alice/"+docs.ID), http.StatusOK)

	if err := os.RemoveAll(docs.Path); err != nil {
		t.Fatalf("failed removing %s: %v", docs.Path, err)
	}

	assertRedirect(t, b.get("/alice/"+docs.ID), http.StatusFound, "/alice/root")
}

func TestUploadIntoVanishedFolderLandsInRoot(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertStatus(t, b.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")
	assertStatus(t, b.get("/alice/"+docs.ID), http.StatusOK)

	if err := os.RemoveAll(docs.Path); err != nil {
		t.Fatalf("failed removing %s: %v", docs.Path, err)
	}

	assertRedirect(t, b.upload(map[string]string{"notes.txt": "hello"}), http.StatusSeeOther, "/alice/root")
	assertFileContent(t, filepath.Join(rootFolder(t, env, "alice").Path, "notes.txt"), "hello")
}

func TestMissingRootDirectoryIsRecreated(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")
	root := rootFolder(t, env, "alice")

	if err := os.RemoveAll(root.Path); err != nil {
		t.Fatalf("failed removing %s: %v", root.Path, err)
	}

	resp := b.get("/alice/root")
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.Contains(body, "This folder is empty.") {
		t.Fatalf("expected an empty root listing, got %q", body)
	}
	if !env.drive.Exists(root.Path) {
		t.Fatalf("expected root directory %s to be recreated", root.Path)
	}
	if got := rootFolder(t, env, "alice"); got.ID != root.ID {
		t.Fatalf("expected the root row to be reused, got %s want %s", got.ID, root.ID)
	}

	if err := os.RemoveAll(root.Path); err != nil {
		t.Fatalf("failed removing %s: %v", root.Path, err)
	}
	assertRedirect(t, b.upload(map[string]string{"notes.txt": "hello"}), http.StatusSeeOther, "/alice/root")
	assertFileContent(t, filepath.Join(root.Path, "notes.txt"), "hello")
}

func TestRedirectsFollowTheResolvedFolder(t *testing.T) {
	env := setupTestEnv(t)
	b := loggedIn(t, env, "alice")

	assertStatus(t, b.postForm("/new", url.Values{"name": {"docs"}}), http.StatusSeeOther)
	docs := folderNamed(t, env, "docs")
	assertStatus(t, b.get("/alice/"+docs.ID), http.StatusOK)
	assertStatus(t, b.upload(map[string]string{"report.pdf": "pdf"}), http.StatusSeeOther)
	assertStatus(t, b.postForm("/new", url.Values{"name": {"2024"}}), http.StatusSeeOther)
	nested := folderNamed(t, env, "2024")

	// Viewing the root while acting on docs sends the user to docs.
	assertStatus(t, b.get("/alice/root"), http.StatusOK)
	assertRedirect(t, b.postForm("/delete/"+docs.ID+"/report.pdf", nil), http.StatusSeeOther, "/alice/"+docs.ID)
	assertRedirect(t, b.postForm("/delete/"+docs.ID+"/%20", nil), http.StatusSeeOther, "/alice/"+docs.ID)

	// Deleting a folder other than the one viewed stays on the viewed one.
	assertStatus(t, b.get("/alice/"+docs.ID), http.StatusOK)
	assertRedirect(t, b.postForm("/delete/"+nested.ID, nil), http.StatusSeeOther, "/alice/"+docs.ID)

	assertRedirect(t, b.postForm("/new", url.Values{"name": {" "}}), http.StatusSeeOther, "/alice/"+docs.ID)
}
