package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/utils"
)

// Counter is implemented by the services that back the stats endpoint.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsController reports aggregate counts.
type StatsController struct {
	users   Counter
	posts   Counter
	uploads Counter
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(users, posts, uploads Counter) *StatsController {
	return &StatsController{users: users, posts: posts, uploads: uploads}
}

// GetStats returns user, post and upload counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"userCount":   s.count(ctx, s.users, "users"),
		"postCount":   s.count(ctx, s.posts, "posts"),
		"uploadCount": s.count(ctx, s.uploads, "uploads"),
	})
}

// count falls back to 0 instead of failing the whole endpoint.
func (s *StatsController) count(ctx *gin.Context, c Counter, what string) int64 {
	n, err := c.Count(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Warnw("stats count failed", "what", what, "error", err)
		return 0
	}
	return n
}
