package handlers

import (
	"net/http"
	"strconv"

	"mediadrop/albums"
	"mediadrop/auth"
	"mediadrop/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const etagHeader = "ETag"

// Admin serves the configuration API. All of it sits behind the admin token.
type Admin struct {
	DB       *gorm.DB
	Albums   *albums.Service
	Storages *storage.Registry
	Log      *zap.Logger
	// DefaultTree is given to new albums that do not name a category tree
	DefaultTree string
}

func (a *Admin) Register(r *auth.Router) {
	r.GET("/admin/album/list", a.AlbumList)
	r.POST("/admin/album/create", a.AlbumCreate)
	r.PUT("/admin/album/save", a.AlbumSave)
	r.POST("/admin/album/rotate-token", a.AlbumRotateToken)
	r.GET("/admin/mime/list", a.MimeList)
	r.PUT("/admin/mime/save", a.MimeSave)
	r.GET("/admin/bucket/list", a.BucketList)
	r.PUT("/admin/bucket/save", a.BucketSave)
}

// isNotModified answers 304 when the client already has the newest version of the list.
// tx must select a single number that changes whenever the list does.
func isNotModified(c *gin.Context, tx *gorm.DB) bool {
	row := tx.Row()
	lastUpdatedAt := uint64(0)
	if row.Scan(&lastUpdatedAt) != nil {
		return false
	}
	c.Header("cache-control", "private, max-age=1")
	c.Header(etagHeader, strconv.FormatUint(lastUpdatedAt, 10))

	remoteLastUpdatedAt, err := strconv.ParseUint(c.Request.Header.Get("If-None-Match"), 10, 64)
	if err == nil && remoteLastUpdatedAt == lastUpdatedAt {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, BadIDResponse)
		return 0, false
	}
	return id, true
}
