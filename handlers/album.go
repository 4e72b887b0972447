package handlers

import (
	"errors"
	"net/http"

	"mediadrop/albums"
	"mediadrop/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// AlbumRequest holds the editable album settings. Flags left out of a create request are on.
type AlbumRequest struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name" binding:"required"`
	BucketID             uint64 `json:"bucket_id"`
	BasePath             string `json:"base_path" binding:"required"`
	CategoryTree         string `json:"category_tree"`
	ImageType            string `json:"image_type"`
	VideoType            string `json:"video_type"`
	AutoOrganize         *bool  `json:"auto_organize"`
	Active               *bool  `json:"active"`
	UploadsEnabled       *bool  `json:"uploads_enabled"`
	NotificationsEnabled *bool  `json:"notifications_enabled"`
	NotificationEmail    string `json:"notification_email"`
}

func flag(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// apply copies the request onto album. Missing flags keep the album's current values.
func (r *AlbumRequest) apply(album *models.Album) {
	album.Name = r.Name
	album.BucketID = r.BucketID
	album.BasePath = r.BasePath
	album.CategoryTree = r.CategoryTree
	album.ImageType = r.ImageType
	album.VideoType = r.VideoType
	album.AutoOrganize = flag(r.AutoOrganize, album.AutoOrganize)
	album.Active = flag(r.Active, album.Active)
	album.UploadsEnabled = flag(r.UploadsEnabled, album.UploadsEnabled)
	album.NotificationsEnabled = flag(r.NotificationsEnabled, album.NotificationsEnabled)
	album.NotificationEmail = r.NotificationEmail
}

func (a *Admin) AlbumList(c *gin.Context) {
	if isNotModified(c, a.DB.Model(&models.Album{}).Select("max(updated_at)")) {
		return
	}
	result, err := a.Albums.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	if result == nil {
		result = []models.Album{}
	}
	c.JSON(http.StatusOK, result)
}

func (a *Admin) AlbumCreate(c *gin.Context) {
	r := AlbumRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	if r.BucketID != 0 && a.Storages.StorageFrom(r.BucketID) == nil {
		c.JSON(http.StatusBadRequest, Response{"unknown bucket"})
		return
	}
	album := models.Album{Active: true, UploadsEnabled: true}
	r.apply(&album)
	if album.CategoryTree == "" {
		album.CategoryTree = a.DefaultTree
	}
	if err := a.Albums.Create(c.Request.Context(), &album); err != nil {
		a.albumError(c, err)
		return
	}
	c.JSON(http.StatusOK, album)
}

func (a *Admin) AlbumSave(c *gin.Context) {
	r := AlbumRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	if r.ID == 0 {
		c.JSON(http.StatusBadRequest, BadIDResponse)
		return
	}
	if r.BucketID != 0 && a.Storages.StorageFrom(r.BucketID) == nil {
		c.JSON(http.StatusBadRequest, Response{"unknown bucket"})
		return
	}
	album, err := a.Albums.Get(c.Request.Context(), r.ID)
	if err != nil {
		a.albumError(c, err)
		return
	}
	r.apply(album)
	if err = a.Albums.Save(c.Request.Context(), album); err != nil {
		a.albumError(c, err)
		return
	}
	c.JSON(http.StatusOK, album)
}

func (a *Admin) AlbumRotateToken(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	album, err := a.Albums.RotateToken(c.Request.Context(), id)
	if err != nil {
		a.albumError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": album.Token})
}

// albumError maps album service errors. Anything unknown is a validation problem
// unless it came from the database.
func (a *Admin) albumError(c *gin.Context, err error) {
	var validation models.ValidationError
	switch {
	case errors.Is(err, albums.ErrAlbumNotFound):
		c.JSON(http.StatusNotFound, NotFoundResponse)
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, Response{err.Error()})
	default:
		a.Log.Error("album update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, DBError2Response)
	}
}
