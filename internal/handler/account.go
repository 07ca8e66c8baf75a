package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/validation"
)

type AccountHandler struct {
	authService   *service.AuthService
	userService   *service.UserService
	fileService   *service.FileService
	exportService *service.ExportService
}

func NewAccountHandler(authService *service.AuthService, userService *service.UserService, fileService *service.FileService, exportService *service.ExportService) *AccountHandler {
	return &AccountHandler{
		authService:   authService,
		userService:   userService,
		fileService:   fileService,
		exportService: exportService,
	}
}

func (h *AccountHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode email change")
		return
	}

	err := h.authService.RequestEmailChange(r.Context(), user.ID, in.Email, ctxkeys.Locale(r.Context()))
	if err != nil {
		handleError(w, r, err, "failed to request email change")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification_sent"})
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in passwordChange
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode password change")
		return
	}
	if in.CurrentPassword == "" {
		handleError(w, r, validation.New("current_password", "is required"), "")
		return
	}

	err := h.userService.UpdatePassword(r.Context(), user.ID, in.CurrentPassword, in.NewPassword)
	if err != nil {
		handleError(w, r, err, "failed to update password")
		return
	}

	slog.Info("password changed", "user_id", user.ID)
	noContent(w)
}

// SetPassword adds a password to a passwordless account.
func (h *AccountHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in passwordChange
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode password")
		return
	}

	err := h.userService.SetPassword(r.Context(), user.ID, in.NewPassword)
	if err != nil {
		handleError(w, r, err, "failed to set password")
		return
	}
	noContent(w)
}

func (h *AccountHandler) RemovePassword(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.userService.RemovePassword(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to remove password")
		return
	}
	noContent(w)
}

func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	if !h.fileService.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "file storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		handleError(w, r, validation.New("avatar", "failed to parse upload"), "")
		return
	}

	_, header, err := r.FormFile("avatar")
	if err != nil {
		handleError(w, r, validation.New("avatar", "no file uploaded"), "")
		return
	}

	file, err := h.fileService.UploadAvatar(r.Context(), user.ID, header)
	if err != nil {
		handleError(w, r, err, "failed to upload avatar")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"file":       file,
		"avatar_url": h.fileService.AvatarURL(r.Context(), user.ID),
	})
}

func (h *AccountHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.fileService.DeleteAvatar(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to delete avatar")
		return
	}
	noContent(w)
}

// Export returns the account data, or a download link when storage is configured.
func (h *AccountHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	result, err := h.exportService.Export(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to export account")
		return
	}

	if result.Export != nil {
		w.Header().Set("Content-Disposition", `attachment; filename="thrive-export.json"`)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.userService.DeleteAccount(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to delete account")
		return
	}

	h.authService.ClearJWTCookie(w)
	slog.Info("account deleted", "user_id", user.ID)
	noContent(w)
}
