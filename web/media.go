package web

import (
	"errors"
	"net/http"
	"strconv"

	"mediadrop/upload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MediaInfo struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Subfolder string `json:"subfolder"`
	Created   int64  `json:"created"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// MediaList returns the caller's own uploads to the album
func (h *Handlers) MediaList(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	records, err := h.Uploads.Recorder.ListOwned(c.Request.Context(), album.ID, owner)
	if err != nil {
		h.Log.Error("listing media failed", zap.Uint64("album", album.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"cannot list media"})
		return
	}
	result := make([]MediaInfo, 0, len(records))
	for _, r := range records {
		info := MediaInfo{
			ID:        r.MediaID,
			Name:      r.Media.Name,
			MediaType: r.Media.MediaType,
			Size:      r.Media.Size,
			Subfolder: r.SubLabel,
			Created:   r.CreatedAt,
		}
		if r.Media.ThumbSize > 0 {
			info.Thumbnail = upload.ThumbnailURL(album, r.MediaID)
		}
		result = append(result, info)
	}
	c.JSON(http.StatusOK, gin.H{"media": result})
}

func (h *Handlers) MediaDelete(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	mediaID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{"bad media id"})
		return
	}
	err = h.Uploads.DeleteOwned(c.Request.Context(), album, owner, mediaID)
	if errors.Is(err, upload.ErrNotOwned) {
		c.JSON(http.StatusForbidden, Response{"you can only delete your own uploads"})
		return
	}
	if err != nil {
		h.Log.Error("media delete failed", zap.Uint64("media", mediaID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"cannot delete media"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) MediaThumb(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	mediaID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{"bad media id"})
		return
	}
	record, err := h.Uploads.Recorder.FindOwned(c.Request.Context(), album.ID, owner, mediaID)
	if errors.Is(err, upload.ErrNotOwned) {
		c.JSON(http.StatusNotFound, Response{"not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{"something went wrong"})
		return
	}
	if record.Media.ThumbSize == 0 {
		c.JSON(http.StatusNotFound, Response{"no thumbnail"})
		return
	}
	store := h.Uploads.Storages.StorageFrom(record.Media.BucketID)
	if store == nil {
		c.JSON(http.StatusNotFound, Response{"not found"})
		return
	}
	store.Serve(record.Media.ThumbPath, c.Request, c.Writer)
}
