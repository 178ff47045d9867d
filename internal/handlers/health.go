package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/pkg/response"
)

// Health returns a status payload useful for readiness checks. When a
// database handle is supplied the platform catalog connection is pinged.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(requestContext(c))
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "degraded"})
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
