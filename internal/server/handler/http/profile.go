package http

import (
	"context"
	"io"
	"net/http"

	"github.com/atinyakov/MedKeeper/internal/middleware"
	"github.com/atinyakov/MedKeeper/internal/models"
	"go.uber.org/zap"
)

// ProfileService is the profile management used by ProfileHandler.
type ProfileService interface {
	Me(ctx context.Context, userID int64) (models.User, error)
	Update(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.User, error)
	SetPicture(ctx context.Context, userID int64, filename string, r io.Reader) (string, error)
}

// ProfileHandler serves /api/users/me.
type ProfileHandler struct {
	ProfileService ProfileService
	Log            *zap.Logger
}

// Me handles GET /api/users/me.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.ProfileService.Me(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update handles PUT /api/users/me. Empty fields are left unchanged.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	u, err := h.ProfileService.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), upd)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileUpdated{Message: "Profile updated successfully.", User: u})
}

// UploadPicture handles the multipart POST /api/users/me/profile-picture
// with the image in field "file".
func (h *ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeInvalid(w, "body", "file", "field required")
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ref, err := h.ProfileService.SetPicture(r.Context(), middleware.GetUserIDFromContext(r.Context()), header.Filename, file)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PictureUploaded{Message: "Profile picture updated successfully.", ProfilePicture: ref})
}
