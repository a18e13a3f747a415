package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"gorm.io/gorm"
)

func TestFileSave_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	small := NewFileService(env.db, env.files.Store(), 1)

	_, err := env.files.Save(ctx, "general", nil, nil)
	assertStatus(t, err, 400)

	_, err = env.files.Save(ctx, "general", fileHeader(t, "virus.exe", []byte("MZ")), nil)
	assertStatus(t, err, 400)

	big := fileHeader(t, "big.pdf", make([]byte, 1<<20+1))
	_, err = small.Save(ctx, "general", big, nil)
	assertStatus(t, err, 400)

	stored, err := env.files.Save(ctx, "general", fileHeader(t, "Report Final.PDF", []byte("%PDF")), nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if stored.Extension != "pdf" || !strings.HasPrefix(stored.Key, "general/") || stored.StoredName == "Report Final.PDF" {
		t.Errorf("unexpected stored file: %+v", stored)
	}
	if stored.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q, expected application/pdf", stored.MimeType)
	}
}

func TestFileAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	owner := env.createUser(t, "owner@example.com", models.RoleClient)
	other := env.createUser(t, "other@example.com", models.RoleClient)
	project := env.createProject(t, owner, models.ProjectInProgress)

	file, err := env.projects.UploadFile(ctx, actorFor(owner), project.ID, &UploadProjectFileRequest{
		File: fileHeader(t, "brief.txt", []byte("hello")),
	})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	key, _ := env.files.Store().KeyFromURL(file.FilePath)

	rc, info, err := env.files.Download(ctx, actorFor(owner), key)
	if err != nil {
		t.Fatalf("owner Download() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hello" || info.Size != 5 {
		t.Errorf("downloaded %q (%d bytes)", body, info.Size)
	}

	_, _, err = env.files.Download(ctx, actorFor(other), key)
	assertStatus(t, err, 403)

	_, _, err = env.files.Download(ctx, actorFor(owner), "projects/../../etc/passwd")
	if err == nil {
		t.Error("paths outside the store must not resolve")
	}

	_, err = env.files.Upload(ctx, actorFor(other), "identity", fileHeader(t, "x.png", pngBytes))
	assertStatus(t, err, 403)

	general, err := env.files.Upload(ctx, actorFor(other), "", fileHeader(t, "notes.txt", []byte("n")))
	if err != nil {
		t.Fatalf("general Upload() error = %v", err)
	}
	if !strings.HasPrefix(general.Key, "general/") {
		t.Errorf("default folder should be general, got %s", general.Key)
	}

	err = env.files.Delete(ctx, actorFor(other), key)
	assertStatus(t, err, 403)

	if err := env.files.Delete(ctx, actorFor(admin), key); err != nil {
		t.Fatalf("admin Delete() error = %v", err)
	}
	var rows int64
	env.db.Model(&models.ProjectFile{}).Where("id = ?", file.ID).Count(&rows)
	if rows != 0 {
		t.Error("deleting a project object should remove its row")
	}
	_, err = env.files.Info(ctx, actorFor(admin), key)
	assertStatus(t, err, 404)
}

func TestFileAccess_IdentityOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com", models.RoleClient)
	other := env.createUser(t, "other@example.com", models.RoleClient)

	kyc, err := env.users.SubmitIdentity(ctx, actorFor(owner), identityDocs(t))
	if err != nil {
		t.Fatalf("SubmitIdentity() error = %v", err)
	}
	key, _ := env.files.Store().KeyFromURL(kyc.FrontIDImageURL)

	if _, err := env.files.Info(ctx, actorFor(owner), key); err != nil {
		t.Errorf("owner Info() error = %v", err)
	}
	_, err = env.files.Info(ctx, actorFor(other), key)
	assertStatus(t, err, 403)
}

func TestFileCleanup_RemovesOnlyOldOrphans(t *testing.T) {
	db := newTestDB(t)
	root := t.TempDir()
	store, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	files := NewFileService(db, store, 0)
	ctx := context.Background()

	put := func(key string, age time.Duration) {
		if err := store.Put(ctx, key, strings.NewReader("x"), 1, "text/plain"); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
		old := time.Now().Add(-age)
		os.Chtimes(filepath.Join(root, filepath.FromSlash(key)), old, old)
	}
	put("avatars/kept.png", 2*time.Hour)
	put("general/orphan.txt", 2*time.Hour)
	put("general/fresh.txt", time.Minute)

	user := models.User{Email: "x@example.com", PasswordHash: "h", FirstName: "x", LastName: "y", IsActive: true}
	if err := db.Transaction(func(tx *gorm.DB) error { return createAccount(tx, &user, "") }); err != nil {
		t.Fatalf("create user: %v", err)
	}
	db.Model(&models.UserProfile{}).Where("user_id = ?", user.ID).Update("avatar_url", store.URL("avatars/kept.png"))

	n, err := files.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned %d, expected 1", n)
	}
	if _, err := store.Stat(ctx, "general/orphan.txt"); err != ErrObjectNotFound {
		t.Error("old orphan should be removed")
	}
	for _, key := range []string{"avatars/kept.png", "general/fresh.txt"} {
		if _, err := store.Stat(ctx, key); err != nil {
			t.Errorf("%s should survive, Stat() error = %v", key, err)
		}
	}
}
