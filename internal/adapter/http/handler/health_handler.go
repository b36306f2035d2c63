package handler

import (
	"net/http"
	"sync"

	"storefront-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type dependencyReport struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged in parallel and
// any failure turns the whole report degraded with a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports := make([]dependencyReport, len(checkers))

		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := checker.Ping(c.Request.Context()); err != nil {
					reports[i] = dependencyReport{Status: "unhealthy", Error: err.Error()}
					return
				}
				reports[i] = dependencyReport{Status: "healthy"}
			}()
		}
		wg.Wait()

		status, code := "healthy", http.StatusOK
		deps := make(map[string]dependencyReport, len(checkers))
		for i, checker := range checkers {
			deps[checker.Name()] = reports[i]
			if reports[i].Status != "healthy" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{"status": status, "dependencies": deps})
	}
}
