package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"mediadrop/albums"
	"mediadrop/auth"
	"mediadrop/models"
	"mediadrop/upload"
	"mediadrop/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Provisioner is the part of the directory provisioner folder creation needs
type Provisioner interface {
	Enabled() bool
	Ensure(ctx context.Context, album *models.Album, contributor, subLabel string) (*uint64, error)
}

// Handlers serves the public, token addressed drop endpoints
type Handlers struct {
	Albums      *albums.Service
	Uploads     *upload.Coordinator
	Provisioner Provisioner
	Log         *zap.Logger
}

type Response struct {
	Error string `json:"error"`
}

func (h *Handlers) Register(r gin.IRouter) {
	r.POST("/albums/:token/upload", h.Upload)
	r.GET("/albums/:token/folders", h.FolderList)
	r.POST("/albums/:token/folders", h.FolderCreate)
	r.POST("/albums/:token/notify", h.Notify)
	r.POST("/albums/:token/check-duplicate", h.CheckDuplicate)
	r.GET("/albums/:token/media", h.MediaList)
	r.DELETE("/albums/:token/media/:id", h.MediaDelete)
	r.GET("/albums/:token/media/:id/thumb", utils.CacheControl(time.Hour), h.MediaThumb)
	r.GET("/robots.txt", DisallowRobots)
}

// loadAlbum resolves the album and the caller. It writes the error response itself
func (h *Handlers) loadAlbum(c *gin.Context, forUpload bool) (*models.Album, models.Owner, bool) {
	var album *models.Album
	var err error
	if forUpload {
		album, err = h.Albums.ForUpload(c.Request.Context(), c.Param("token"))
	} else {
		album, err = h.Albums.ByToken(c.Request.Context(), c.Param("token"))
	}
	switch {
	case errors.Is(err, albums.ErrAlbumNotFound), errors.Is(err, albums.ErrAlbumInactive):
		c.JSON(http.StatusNotFound, Response{"album not found"})
		return nil, models.Owner{}, false
	case errors.Is(err, albums.ErrForbidden):
		c.JSON(http.StatusForbidden, Response{err.Error()})
		return nil, models.Owner{}, false
	case err != nil:
		h.Log.Error("album lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"something went wrong"})
		return nil, models.Owner{}, false
	}
	owner, err := auth.LoadSession(c).Owner()
	if err != nil {
		h.Log.Error("session save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"something went wrong"})
		return nil, models.Owner{}, false
	}
	return album, owner, true
}

// contributorName prefers the account name of logged in users
func contributorName(owner models.Owner, submitted string) string {
	if !owner.IsAnonymous() && owner.AccountName != "" {
		return owner.AccountName
	}
	return strings.TrimSpace(submitted)
}

func DisallowRobots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
}
