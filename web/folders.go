package web

import (
	"net/http"
	"strings"

	"mediadrop/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Folder struct {
	SafeName string `json:"safe_name"`
	Name     string `json:"name"`
}

type FolderCreateRequest struct {
	ContributorName string `form:"contributor_name" json:"contributor_name"`
	FolderName      string `form:"folder_name" json:"folder_name" binding:"required"`
}

// FolderList reads the contributor's folders from storage. This is not the category tree:
// a renamed category keeps its old folder name here.
func (h *Handlers) FolderList(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, false)
	if !ok {
		return
	}
	contributor := contributorName(owner, c.Query("contributor_name"))
	folders := []Folder{}
	if contributor == "" {
		c.JSON(http.StatusOK, gin.H{"folders": folders})
		return
	}
	store := h.Uploads.StorageFor(album)
	if store == nil {
		c.JSON(http.StatusInternalServerError, Response{"no storage configured"})
		return
	}
	names, err := store.ListDirs(c.Request.Context(), album.ContributorDir(contributor, ""))
	if err != nil {
		h.Log.Error("listing folders failed", zap.Uint64("album", album.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"cannot list folders"})
		return
	}
	for _, name := range names {
		folders = append(folders, Folder{SafeName: name, Name: name})
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h *Handlers) FolderCreate(c *gin.Context) {
	album, owner, ok := h.loadAlbum(c, true)
	if !ok {
		return
	}
	var r FolderCreateRequest
	if err := c.ShouldBind(&r); err != nil || strings.TrimSpace(r.FolderName) == "" {
		c.JSON(http.StatusBadRequest, Response{"folder_name is required"})
		return
	}
	contributor := contributorName(owner, r.ContributorName)
	if contributor == "" {
		c.JSON(http.StatusBadRequest, Response{"contributor_name is required"})
		return
	}
	store := h.Uploads.StorageFor(album)
	if store == nil {
		c.JSON(http.StatusInternalServerError, Response{"no storage configured"})
		return
	}
	folderName := strings.TrimSpace(r.FolderName)
	if err := store.EnsureDir(c.Request.Context(), album.ContributorDir(contributor, folderName)); err != nil {
		h.Log.Error("folder creation failed", zap.Uint64("album", album.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"cannot create folder"})
		return
	}
	response := gin.H{
		"success":          true,
		"folder_name":      folderName,
		"safe_folder_name": utils.SafeName(folderName),
	}
	if h.Provisioner != nil && h.Provisioner.Enabled() {
		nodeID, err := h.Provisioner.Ensure(c.Request.Context(), album, contributor, folderName)
		if err != nil {
			h.Log.Warn("folder category not created", zap.Uint64("album", album.ID), zap.Error(err))
		} else if nodeID != nil {
			response["node_id"] = *nodeID
		}
	}
	c.JSON(http.StatusOK, response)
}
