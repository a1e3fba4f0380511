package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/storage"
)

type mockFileRepo struct {
	files     map[string]*models.File
	created   []*models.File
	createErr error
	deleted   []string
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{files: make(map[string]*models.File)}
}

func (m *mockFileRepo) Create(ctx context.Context, file *models.File) error {
	if m.createErr != nil {
		return m.createErr
	}
	if file.ID == "" {
		file.ID = "file-" + file.FileName
	}
	m.created = append(m.created, file)
	m.files[file.ID] = file
	return nil
}

func (m *mockFileRepo) FindByID(ctx context.Context, id string) (*models.File, error) {
	file, ok := m.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return file, nil
}

func (m *mockFileRepo) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	var files []models.File
	for _, f := range m.files {
		if f.FolderID == folderID {
			files = append(files, *f)
		}
	}
	return files, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	delete(m.files, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockFolderRepo struct {
	folders map[string]*models.Folder
}

func newMockFolderRepo() *mockFolderRepo {
	return &mockFolderRepo{folders: make(map[string]*models.Folder)}
}

func (m *mockFolderRepo) FindByID(ctx context.Context, id string) (*models.Folder, error) {
	folder, ok := m.folders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return folder, nil
}

func (m *mockFolderRepo) GetOrCreate(ctx context.Context, orgID string, term models.Term, year int) (*models.Folder, error) {
	for _, f := range m.folders {
		if f.OrganizationID == orgID && f.Term != nil && *f.Term == term && f.Year != nil && *f.Year == year {
			return f, nil
		}
	}
	folder := &models.Folder{
		ID:             "folder-" + string(term),
		OrganizationID: orgID,
		Term:           &term,
		Year:           &year,
		CreatedAt:      time.Now().UTC(),
	}
	m.folders[folder.ID] = folder
	return folder, nil
}

func newFileFixture(t *testing.T) (*FileService, *mockFileRepo, *mockFolderRepo, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("signing-secret", time.Minute)
	files := newMockFileRepo()
	folders := newMockFolderRepo()
	svc := NewFileService(files, folders, store, signer, []string{"pdf", "txt", "md"}, 1<<20, validator.New(), zap.NewNop())
	return svc, files, folders, dir
}

func fall2024Upload() models.UploadFileRequest {
	return models.UploadFileRequest{Term: "Fall", Year: 2024, CourseTag: "CS", CourseID: "101"}
}

func TestFileServiceUploadWritesCoursePath(t *testing.T) {
	svc, files, _, dir := newFileFixture(t)

	file, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "syllabus.pdf", 64, strings.NewReader("syllabus body"))
	require.NoError(t, err)
	assert.Equal(t, "syllabus.pdf", file.FileName)
	require.Len(t, files.created, 1)

	payload, err := os.ReadFile(filepath.Join(dir, "org-1", "Fall_2024", "CS_101", file.ID+"_syllabus.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "syllabus body", string(payload))
}

func TestFileServiceUploadWithoutCourseUsesTermPath(t *testing.T) {
	svc, _, _, dir := newFileFixture(t)

	file, err := svc.Upload(context.Background(), "org-1", "alice", models.UploadFileRequest{Term: "Fall", Year: 2024}, "minutes.txt", 10, strings.NewReader("minutes"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "org-1", "Fall_2024", file.ID+"_minutes.txt"))
	require.NoError(t, err)
}

func TestFileServiceUploadSanitizesFilename(t *testing.T) {
	svc, files, _, dir := newFileFixture(t)

	file, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "../../notes week 1.txt", 10, strings.NewReader("notes"))
	require.NoError(t, err)
	assert.Equal(t, "notes_week_1.txt", file.FileName)
	require.Len(t, files.created, 1)

	_, err = os.Stat(filepath.Join(dir, "org-1", "Fall_2024", "CS_101", file.ID+"_notes_week_1.txt"))
	require.NoError(t, err)
}

func TestFileServiceUploadRejectsBadExtension(t *testing.T) {
	svc, files, _, _ := newFileFixture(t)

	_, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "malware.exe", 10, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.created)
}

func TestFileServiceUploadRejectsInvalidTerm(t *testing.T) {
	svc, _, _, _ := newFileFixture(t)

	_, err := svc.Upload(context.Background(), "org-1", "alice", models.UploadFileRequest{Term: "Autumn", Year: 2024}, "notes.txt", 10, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileServiceUploadRequiresCoursePair(t *testing.T) {
	svc, _, _, _ := newFileFixture(t)

	_, err := svc.Upload(context.Background(), "org-1", "alice", models.UploadFileRequest{Term: "Fall", Year: 2024, CourseTag: "CS"}, "notes.txt", 10, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileServiceUploadParsesClassDate(t *testing.T) {
	svc, files, _, _ := newFileFixture(t)

	req := fall2024Upload()
	req.ClassDate = "9/1/2026"
	file, err := svc.Upload(context.Background(), "org-1", "alice", req, "notes.txt", 10, strings.NewReader("x"))
	require.NoError(t, err)
	require.NotNil(t, file.ClassDate)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), file.ClassDate.UTC())
	require.Len(t, files.created, 1)

	req.ClassDate = "2026-09-01"
	_, err = svc.Upload(context.Background(), "org-1", "alice", req, "other.txt", 10, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// failingStore refuses every write while delegating path resolution to a real
// file store.
type failingStore struct {
	*storage.FileStore
}

func (f *failingStore) SaveStream(relPath string, r io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestFileServiceUploadFailedWriteLeavesNoRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("signing-secret", time.Minute)
	files := newMockFileRepo()
	svc := NewFileService(files, newMockFolderRepo(), &failingStore{FileStore: store}, signer, []string{"pdf", "txt", "md"}, 1<<20, validator.New(), zap.NewNop())

	_, err = svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "notes.txt", 10, strings.NewReader("notes"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.created)
}

func TestFileServiceUploadRemovesOrphanOnInsertFailure(t *testing.T) {
	svc, files, _, dir := newFileFixture(t)
	files.createErr = errors.New("insert failed")

	_, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "notes.txt", 10, strings.NewReader("notes"))
	require.Error(t, err)

	entries, readErr := os.ReadDir(filepath.Join(dir, "org-1", "Fall_2024", "CS_101"))
	if readErr == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(readErr))
	}
}

func TestFileServiceUploadRejectsOversize(t *testing.T) {
	svc, files, _, _ := newFileFixture(t)

	_, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "big.txt", 2<<20, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.created)
}

func TestFileServiceFolderViewGroupsCourses(t *testing.T) {
	svc, files, folders, _ := newFileFixture(t)
	term := models.TermFall
	year := 2024
	folders.folders["folder-1"] = &models.Folder{ID: "folder-1", OrganizationID: "org-1", Term: &term, Year: &year}

	cs, num := "CS", "101"
	math, mathNum := "MATH", "220"
	files.files["f1"] = &models.File{ID: "f1", FileName: "a.txt", OrganizationID: "org-1", FolderID: "folder-1", CourseTag: &cs, CourseID: &num}
	files.files["f2"] = &models.File{ID: "f2", FileName: "b.txt", OrganizationID: "org-1", FolderID: "folder-1", CourseTag: &cs, CourseID: &num}
	files.files["f3"] = &models.File{ID: "f3", FileName: "c.txt", OrganizationID: "org-1", FolderID: "folder-1", CourseTag: &math, CourseID: &mathNum}
	files.files["f4"] = &models.File{ID: "f4", FileName: "loose.txt", OrganizationID: "org-1", FolderID: "folder-1"}

	view, err := svc.FolderView(context.Background(), "org-1", "folder-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS 101", "MATH 220"}, view.CourseFolders)
	require.Len(t, view.Files, 1)
	assert.Equal(t, "loose.txt", view.Files[0].FileName)
}

func TestFileServiceFolderViewWrongOrg(t *testing.T) {
	svc, _, folders, _ := newFileFixture(t)
	term := models.TermFall
	year := 2024
	folders.folders["folder-1"] = &models.Folder{ID: "folder-1", OrganizationID: "org-2", Term: &term, Year: &year}

	_, err := svc.FolderView(context.Background(), "org-1", "folder-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFileServiceDownloadLinkRoundTrip(t *testing.T) {
	svc, _, _, _ := newFileFixture(t)

	uploaded, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "syllabus.pdf", 64, strings.NewReader("syllabus body"))
	require.NoError(t, err)

	link, err := svc.IssueDownloadLink(context.Background(), "org-1", uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaded.ID, link.FileID)
	assert.True(t, link.ExpiresAt.After(time.Now()))

	token := strings.TrimPrefix(link.URL, "/api/v1/downloads/")
	file, handle, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer handle.Close()
	assert.Equal(t, uploaded.ID, file.ID)

	buf := make([]byte, 32)
	n, _ := handle.Read(buf)
	assert.Equal(t, "syllabus body", string(buf[:n]))
}

func TestFileServiceDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _, _ := newFileFixture(t)

	_, _, err := svc.Download(context.Background(), "file-1.99999999999.cGF0aA.deadbeef")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestFileServiceDeleteRemovesRecordAndPayload(t *testing.T) {
	svc, files, _, dir := newFileFixture(t)

	uploaded, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "notes.txt", 10, strings.NewReader("notes"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "org-1", uploaded.ID))
	assert.Contains(t, files.deleted, uploaded.ID)

	_, statErr := os.Stat(filepath.Join(dir, "org-1", "Fall_2024", "CS_101", uploaded.ID+"_notes.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileServiceUploadDuplicateNamesKeepDistinctPayloads(t *testing.T) {
	svc, _, _, dir := newFileFixture(t)

	first, err := svc.Upload(context.Background(), "org-1", "alice", fall2024Upload(), "notes.txt", 10, strings.NewReader("first"))
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "org-1", "bob", fall2024Upload(), "notes.txt", 11, strings.NewReader("second"))
	require.NoError(t, err)

	course := filepath.Join(dir, "org-1", "Fall_2024", "CS_101")
	payload, err := os.ReadFile(filepath.Join(course, first.ID+"_notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(payload))

	// Deleting one upload must not take the other's payload with it.
	require.NoError(t, svc.Delete(context.Background(), "org-1", first.ID))
	payload, err = os.ReadFile(filepath.Join(course, second.ID+"_notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(payload))
}
