package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/middleware"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/utils"
)

// UploadController accepts image and video uploads.
type UploadController struct {
	uploads *services.UploadService
}

// NewUploadController creates an UploadController.
func NewUploadController(uploads *services.UploadService) *UploadController {
	return &UploadController{uploads: uploads}
}

// Upload stores the multipart field "file" and returns where it is served from.
func (u *UploadController) Upload(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	// bodies far beyond the ceiling are cut off before multipart parsing
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, 2*u.uploads.MaxBytes())

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(ctx, services.ErrPayloadTooLarge, "")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, "no file uploaded")
		return
	}

	src, err := header.Open()
	if err != nil {
		respondError(ctx, err, "failed to read upload")
		return
	}
	defer src.Close()

	file, err := u.uploads.Save(ctx.Request.Context(), identity, services.UploadInput{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         src,
	})
	if err != nil {
		respondError(ctx, err, "failed to save upload")
		return
	}

	utils.Sugar.Infow("file uploaded", "userId", identity.UserID, "filename", file.Filename, "size", file.Size)
	utils.SuccessWithMessage(ctx, "upload succeeded", gin.H{
		"url":      file.URL,
		"filename": file.Filename,
		"size":     file.Size,
		"mimetype": file.MimeType,
	})
}

// ListMine returns the caller's uploads, newest first.
func (u *UploadController) ListMine(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	files, err := u.uploads.ListByOwner(ctx.Request.Context(), identity.UserID)
	if err != nil {
		respondError(ctx, err, "failed to list uploads")
		return
	}
	utils.Success(ctx, gin.H{"list": files, "total": len(files)})
}
