package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// FileHandler wires HTTP endpoints to the file service.
type FileHandler struct {
	service *service.FileService
	orgs    *service.OrganizationService
	metrics *service.MetricsService
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc *service.FileService, orgs *service.OrganizationService, metrics *service.MetricsService) *FileHandler {
	return &FileHandler{service: svc, orgs: orgs, metrics: metrics}
}

// Upload godoc
// @Summary Upload a file
// @Description Store a document under the organization's term folder, optionally scoped to a course
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param file formData file true "Document to upload"
// @Param term formData string true "Academic term (Fall, Winter, Spring, Summer)"
// @Param year formData int true "Academic year"
// @Param course_tag formData string false "Course tag, e.g. CS"
// @Param course_id formData string false "Course number, e.g. 101"
// @Param class_date formData string false "Class date, e.g. 9/1/2026"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /organizations/{orgID}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload fields"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file part named 'file' is required"))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	orgID := c.Param("orgID")
	file, err := h.service.Upload(c.Request.Context(), orgID, claims.UserID, req, header.Filename, header.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveUpload(header.Size)
	}
	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.Created(c, file)
}

// FolderView godoc
// @Summary Folder contents
// @Description Files in a term folder plus its derived course folders
// @Tags Files
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param folderID path string true "Folder ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{orgID}/folders/{folderID} [get]
func (h *FileHandler) FolderView(c *gin.Context) {
	view, err := h.service.FolderView(c.Request.Context(), c.Param("orgID"), c.Param("folderID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CourseFiles godoc
// @Summary Course folder contents
// @Description Files in a term folder filtered to one course
// @Tags Files
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param folderID path string true "Folder ID"
// @Param tag path string true "Course tag"
// @Param number path string true "Course number"
// @Success 200 {object} response.Envelope
// @Router /organizations/{orgID}/folders/{folderID}/courses/{tag}/{number} [get]
func (h *FileHandler) CourseFiles(c *gin.Context) {
	files, err := h.service.CourseFiles(c.Request.Context(), c.Param("orgID"), c.Param("folderID"), c.Param("tag"), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// DownloadLink godoc
// @Summary Issue a download link
// @Description Mint a short-lived signed URL for a file
// @Tags Files
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param fileID path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{orgID}/files/{fileID}/download [get]
func (h *FileHandler) DownloadLink(c *gin.Context) {
	link, err := h.service.IssueDownloadLink(c.Request.Context(), c.Param("orgID"), c.Param("fileID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a file
// @Description Stream the file referenced by a signed token
// @Tags Files
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, handle, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer handle.Close() //nolint:errcheck

	c.FileAttachment(handle.Name(), file.FileName)
}

// Delete godoc
// @Summary Delete a file
// @Description Remove a file's metadata and stored payload (uploader or org admin)
// @Tags Files
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param fileID path string true "File ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /organizations/{orgID}/files/{fileID} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	orgID := c.Param("orgID")
	fileID := c.Param("fileID")

	file, err := h.service.GetFile(c.Request.Context(), orgID, fileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	org, err := h.orgs.Get(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if file.AuthorID != claims.UserID && org.AdminID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only the uploader or the organization admin can delete this file"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, fileID); err != nil {
		response.Error(c, err)
		return
	}

	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.NoContent(c)
}
