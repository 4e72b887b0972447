package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"mediadrop/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"
)

func (a *Admin) MimeList(c *gin.Context) {
	result := []models.MimeMapping{}
	if err := a.DB.WithContext(c.Request.Context()).Order("weight, id").Find(&result).Error; err != nil {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MimeSave creates (id 0) or updates one mapping
func (a *Admin) MimeSave(c *gin.Context) {
	mapping := models.MimeMapping{}
	if err := c.ShouldBindWith(&mapping, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	mapping.Pattern = strings.ToLower(strings.TrimSpace(mapping.Pattern))
	mapping.MediaType = strings.TrimSpace(mapping.MediaType)
	if mapping.Pattern == "" || mapping.MediaType == "" {
		c.JSON(http.StatusBadRequest, Response{"pattern and media_type are required"})
		return
	}
	if _, err := path.Match(mapping.Pattern, ""); err != nil {
		c.JSON(http.StatusBadRequest, Response{"bad pattern: " + err.Error()})
		return
	}
	tx := a.DB.WithContext(c.Request.Context())
	if mapping.ID != 0 {
		err := tx.Take(&models.MimeMapping{}, mapping.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, NotFoundResponse)
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, DBError1Response)
			return
		}
	}
	if err := tx.Save(&mapping).Error; err != nil {
		c.JSON(http.StatusInternalServerError, DBError2Response)
		return
	}
	c.JSON(http.StatusOK, mapping)
}
