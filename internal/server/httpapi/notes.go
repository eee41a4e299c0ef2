package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields next to the file part.
const multipartOverhead = 1 << 20

func noteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid note id %q", c.Param("id"))
		return 0, false
	}
	return id, true
}

func (h *handler) listNotes(c *gin.Context) {
	filter := models.NoteFilter{
		CourseCode: c.Query("course_code"),
		Search:     c.Query("search"),
	}
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			badRequest(c, "year must be a number")
			return
		}
		filter.Year = year
	}

	notes, err := h.Notes.List(c.Request.Context(), filter, principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", notes)
}

func (h *handler) getNote(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	note, err := h.Notes.Get(c.Request.Context(), id, principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", note)
}

func (h *handler) downloadNote(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	note, data, err := h.Notes.Download(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", note.FileName))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// uploadNote accepts multipart/form-data with a "file" part and the note
// metadata as form fields.
func (h *handler) uploadNote(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, common.MaxFileSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		if isMaxBytes(err) {
			respondError(c, err)
			return
		}
		badRequest(c, "a file part named \"file\" is required")
		return
	}
	if fh.Size > common.MaxFileSize {
		respondError(c, common.NewError(common.ErrPayloadTooLarge, "file is %d bytes, limit is %d", fh.Size, common.MaxFileSize))
		return
	}

	var meta models.NoteMeta
	if err := c.ShouldBind(&meta); err != nil {
		badRequest(c, "malformed note fields: %v", err)
		return
	}

	content, err := readFormFile(fh)
	if err != nil {
		respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	note, err := h.Notes.Upload(c.Request.Context(), models.UploadInput{
		Meta:        meta,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "note uploaded", note)
}

type presignRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
}

func (h *handler) presignUpload(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "file_name is required")
		return
	}
	p, err := h.Notes.PresignUpload(c.Request.Context(), req.FileName, req.ContentType, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", p)
}

type externalNoteRequest struct {
	models.NoteMeta
	FileName   string `json:"file_name"`
	StorageKey string `json:"file_key"`
}

// registerExternal creates a note for a file the client already uploaded
// through a presigned URL.
func (h *handler) registerExternal(c *gin.Context) {
	var req externalNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request: %v", err)
		return
	}
	if req.StorageKey == "" {
		badRequest(c, "file_key is required")
		return
	}
	note, err := h.Notes.Upload(c.Request.Context(), models.UploadInput{
		Meta:       req.NoteMeta,
		FileName:   req.FileName,
		StorageKey: req.StorageKey,
	}, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "note created", note)
}

func (h *handler) updateNote(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	var upd models.NoteUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "malformed update: %v", err)
		return
	}
	note, err := h.Notes.Update(c.Request.Context(), id, principal(c).UserID, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "note updated", note)
}

func (h *handler) deleteNote(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	if err := h.Notes.Delete(c.Request.Context(), id, principal(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Note deleted successfully", nil)
}

type reactRequest struct {
	IsLike *bool `json:"is_like" form:"is_like" binding:"required"`
}

var reactionMessages = map[models.ReactionAction]string{
	models.ReactionAdded:   "Reaction added",
	models.ReactionRemoved: "Reaction removed",
	models.ReactionUpdated: "Reaction updated",
}

func (h *handler) react(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "is_like must be true or false")
		return
	}
	p := models.Dislike
	if *req.IsLike {
		p = models.Like
	}

	res, err := h.Reactions.React(c.Request.Context(), id, principal(c).UserID, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reactionMessages[res.Action], res)
}
