package bucket

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hastebucket/hastebucket/internal/metrics"
)

// OwnerTokenHeader carries the bucket owner token on delete requests.
const OwnerTokenHeader = "X-Owner-Token"

// RegisterRoutes mounts bucket operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/buckets", handler.createBucket)
	group.GET("/buckets/:bucketID", handler.getBucket)
	group.GET("/buckets/:bucketID/download", handler.downloadBucket)
	group.GET("/buckets/:bucketID/url", handler.downloadURL)
	group.DELETE("/buckets/:bucketID", handler.deleteBucket)
}

type httpHandler struct {
	service *Service
}

// createBucket accepts a multipart form carrying either a "file" part or a
// "text" field, mirroring the two share modes of the upload form.
func (h *httpHandler) createBucket(c *gin.Context) {
	fileHeader, fileErr := c.FormFile("file")
	text := c.PostForm("text")

	switch {
	case fileErr == nil && strings.TrimSpace(text) != "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide either a file or text, not both"})
		return
	case fileErr == nil:
		created, err := h.service.CreateFile(c.Request.Context(), fileHeader)
		if err != nil {
			h.writeCreateError(c, err)
			return
		}
		metrics.BucketCreated(string(KindFile))
		metrics.UploadBytes(fileHeader.Size)
		c.JSON(http.StatusCreated, created)
	case strings.TrimSpace(text) != "":
		created, err := h.service.CreateText(c.Request.Context(), text)
		if err != nil {
			h.writeCreateError(c, err)
			return
		}
		metrics.BucketCreated(string(KindText))
		c.JSON(http.StatusCreated, created)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "file or text field is required"})
	}
}

func (h *httpHandler) writeCreateError(c *gin.Context, err error) {
	switch err {
	case ErrEmptyPayload:
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
	case ErrFileTooLarge:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case ErrIDExhausted:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not allocate a bucket id"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
	}
}

func (h *httpHandler) getBucket(c *gin.Context) {
	view, err := h.service.Read(c.Request.Context(), c.Param("bucketID"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read bucket"})
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) downloadBucket(c *gin.Context) {
	view, reader, err := h.service.Download(c.Request.Context(), c.Param("bucketID"))
	if err != nil {
		switch err {
		case ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		case ErrNotFileBucket:
			c.JSON(http.StatusBadRequest, gin.H{"error": "bucket does not hold a file"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to download file"})
		}
		return
	}
	defer reader.Close()

	c.Header("Content-Type", view.File.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.File.Filename))
	c.Header("Content-Length", fmt.Sprintf("%d", view.File.SizeBytes))

	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}

func (h *httpHandler) downloadURL(c *gin.Context) {
	u, err := h.service.DownloadURL(c.Request.Context(), c.Param("bucketID"))
	if err != nil {
		switch err {
		case ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		case ErrNotFileBucket:
			c.JSON(http.StatusBadRequest, gin.H{"error": "bucket does not hold a file"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to presign download"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        u,
		"expires_in": int(h.service.PresignTTL().Seconds()),
	})
}

func (h *httpHandler) deleteBucket(c *gin.Context) {
	token := c.GetHeader(OwnerTokenHeader)
	if token == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner token required"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("bucketID"), token); err != nil {
		switch err {
		case ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		case ErrForbidden:
			c.JSON(http.StatusForbidden, gin.H{"error": "owner token mismatch"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bucket"})
		}
		return
	}

	metrics.BucketDeleted()
	c.Status(http.StatusNoContent)
}
