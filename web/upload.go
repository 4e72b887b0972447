package web

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"mediadrop/upload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckDuplicateRequest struct {
	Filename        string `form:"filename" json:"filename" binding:"required"`
	FileSize        int64  `form:"file_size" json:"file_size" binding:"required"`
	ContributorName string `form:"contributor_name" json:"contributor_name"`
	SubLabel        string `form:"sub_label" json:"sub_label"`
}

func (h *Handlers) Upload(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, true)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{"multipart form expected"})
		return
	}
	contributor := contributorName(owner, firstValue(form, "contributor_name"))
	if contributor == "" {
		c.JSON(http.StatusBadRequest, Response{"contributor_name is required"})
		return
	}
	headers := append(form.File["file"], form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, Response{"no files"})
		return
	}
	submission := upload.Submission{
		Album:       album,
		Owner:       owner,
		Contributor: contributor,
		SubLabel:    strings.TrimSpace(firstValue(form, "sub_label")),
		Files:       make([]upload.File, 0, len(headers)),
	}
	for _, fh := range headers {
		submission.Files = append(submission.Files, fileFromHeader(fh))
	}
	results := h.Uploads.Submit(c.Request.Context(), submission)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func fileFromHeader(fh *multipart.FileHeader) upload.File {
	return upload.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (h *Handlers) Notify(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	contributor := contributorName(owner, c.PostForm("contributor_name"))
	if contributor == "" {
		c.JSON(http.StatusBadRequest, Response{"contributor_name is required"})
		return
	}
	count, err := h.Uploads.Flush(c.Request.Context(), album, owner, contributor)
	if err != nil {
		h.Log.Warn("batch notification failed", zap.Uint64("album", album.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false, "notified": 0, "error": "notification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notified": count})
}

func (h *Handlers) CheckDuplicate(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	var r CheckDuplicateRequest
	if err := c.ShouldBind(&r); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	contributor := contributorName(owner, r.ContributorName)
	if contributor == "" {
		c.JSON(http.StatusBadRequest, Response{"contributor_name is required"})
		return
	}
	dup, err := h.Uploads.CheckDuplicate(c.Request.Context(), album, contributor, r.SubLabel, r.Filename, r.FileSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	if dup.Exists {
		c.JSON(http.StatusOK, gin.H{"exists": true, "message": "this file was already uploaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": false})
}
