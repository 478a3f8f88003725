package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/middleware"
	"github.com/cppla/moments/models"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

const (
	listCachePrefix   = "cache:posts:list:"
	detailCachePrefix = "cache:post:detail:"
	postCacheTTL      = time.Hour
)

// PostController exposes the moments feed.
type PostController struct {
	posts *services.PostService
	users *services.UserService
	cache *utils.Cache
}

// NewPostController creates a PostController. cache may be disabled.
func NewPostController(posts *services.PostService, users *services.UserService, cache *utils.Cache) *PostController {
	return &PostController{posts: posts, users: users, cache: cache}
}

type postRequest struct {
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// CreatePost publishes a post for the authenticated user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}
	var content string
	if req.Content != nil {
		content = *req.Content
	}
	var tags []string
	if req.Tags != nil {
		tags = *req.Tags
	}

	post, err := p.posts.Create(ctx.Request.Context(), identity, content, tags)
	if err != nil {
		respondError(ctx, err, "failed to create post")
		return
	}

	p.cache.InvalidateByPrefix(listCachePrefix)
	utils.SuccessWithMessage(ctx, "post created", gin.H{"postId": post.ID})
}

// ListPosts returns every post newest first, optionally filtered by ?userId= and ?tag=.
func (p *PostController) ListPosts(ctx *gin.Context) {
	var filter store.PostFilter
	if raw := strings.TrimSpace(ctx.Query("userId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			utils.Error(ctx, http.StatusBadRequest, "invalid user id")
			return
		}
		filter.UserID = uint(id)
	}
	filter.Tag = strings.TrimSpace(ctx.Query("tag"))

	p.listPosts(ctx, filter)
}

// ListUserPosts returns the posts of the user in the path.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	userID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, err := p.users.Get(ctx.Request.Context(), userID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, "user not found")
			return
		}
		respondError(ctx, err, "failed to load user")
		return
	}

	p.listPosts(ctx, store.PostFilter{UserID: userID})
}

func (p *PostController) listPosts(ctx *gin.Context, filter store.PostFilter) {
	cacheKey := fmt.Sprintf("%suser=%d:tag=%s", listCachePrefix, filter.UserID, filter.Tag)
	if b, ok := p.cache.GetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	posts, err := p.posts.List(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err, "failed to list posts")
		return
	}

	payload := postList{List: posts, Total: len(posts)}
	p.cacheSuccess(cacheKey, payload)
	utils.Success(ctx, payload)
}

// SearchPosts returns posts whose content or tags contain ?keyword=.
func (p *PostController) SearchPosts(ctx *gin.Context) {
	posts, err := p.posts.Search(ctx.Request.Context(), ctx.Query("keyword"))
	if err != nil {
		respondError(ctx, err, "failed to search posts")
		return
	}
	utils.Success(ctx, postList{List: posts, Total: len(posts)})
}

// ListTags returns every tag with its post count.
func (p *PostController) ListTags(ctx *gin.Context) {
	tags, err := p.posts.Tags(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "failed to list tags")
		return
	}
	utils.Success(ctx, gin.H{"list": tags, "total": len(tags)})
}

// HotTags returns the most used tags, ?limit= of them.
func (p *PostController) HotTags(ctx *gin.Context) {
	limit := services.DefaultHotTags
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	tags, err := p.posts.HotTags(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err, "failed to list hot tags")
		return
	}
	utils.Success(ctx, gin.H{"list": tags})
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "invalid post id")
		return
	}

	cacheKey := detailCacheKey(postID)
	if b, ok := p.cache.GetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	post, err := p.posts.Get(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, err, "failed to load post")
		return
	}

	payload := gin.H{"post": post}
	p.cacheSuccess(cacheKey, payload)
	utils.Success(ctx, payload)
}

// UpdatePost replaces the provided fields of the caller's post. Serves both PUT and PATCH.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	postID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "invalid post id")
		return
	}

	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	post, err := p.posts.Update(ctx.Request.Context(), identity, postID, services.PostUpdate{
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		respondError(ctx, err, "failed to update post")
		return
	}

	p.invalidate(post.ID)
	utils.SuccessWithMessage(ctx, "post updated", gin.H{"postId": post.ID, "post": post})
}

// DeletePost removes the caller's post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	postID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "invalid post id")
		return
	}

	deleted, err := p.posts.Delete(ctx.Request.Context(), identity, postID)
	if err != nil {
		respondError(ctx, err, "failed to delete post")
		return
	}

	p.invalidate(deleted)
	utils.SuccessWithMessage(ctx, "post deleted", gin.H{"postId": deleted})
}

// cacheSuccess stores payload wrapped in the success envelope, ready to be replayed verbatim.
func (p *PostController) cacheSuccess(key string, payload interface{}) {
	p.cache.SetJSON(key, utils.JSONResponse{Code: http.StatusOK, Message: "success", Data: payload}, postCacheTTL)
}

func (p *PostController) invalidate(postID uint) {
	p.cache.Delete(detailCacheKey(postID))
	p.cache.InvalidateByPrefix(listCachePrefix)
}

func detailCacheKey(postID uint) string {
	return detailCachePrefix + strconv.FormatUint(uint64(postID), 10)
}

// postList is the payload shape of list responses.
type postList struct {
	List  []models.Post `json:"list"`
	Total int           `json:"total"`
}
