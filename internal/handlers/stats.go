package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterStatsRoutes registers the faceted statistics endpoint.
//
// GET /stats?user_id&username&room_id&start_date&end_date
func RegisterStatsRoutes(r gin.IRoutes, st EventStore, opts Options) {
	r.GET("/stats", func(c *gin.Context) {
		p := parseFilters(c)

		result, err := st.Aggregate(c.Request.Context(), p)
		if err != nil {
			respondError(c, http.StatusInternalServerError, CodeInternalError,
				"An internal server error occurred", opts.details(err))
			return
		}

		c.JSON(http.StatusOK, result)
	})
}
