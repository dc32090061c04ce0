package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"locker/internal/server/database"
	"locker/internal/server/service"
	"locker/internal/server/session"
	"locker/internal/server/storage"
	"locker/internal/server/web"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the locker site.
type Handler struct {
	locker        *service.Locker
	sessions      *session.Manager
	background    *storage.BackgroundStore
	secureCookies bool
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(locker *service.Locker, sessions *session.Manager, background *storage.BackgroundStore, secureCookies bool) *Handler {
	return &Handler{
		locker:        locker,
		sessions:      sessions,
		background:    background,
		secureCookies: secureCookies,
	}
}

type formPage struct {
	Error string
}

type uploadPage struct {
	Error         string
	Result        *service.UploadResult
	MaxFileSizeMB int
	Windows       []int
}

type panelPage struct {
	Records       []*database.Record
	StoredBytes   int64
	MaxFileSizeMB int
	Announcement  string
	HasBackground bool
	Messages      []string
	Errors        []string
}

type uploadResponse struct {
	Success    bool      `json:"success"`
	Code       string    `json:"code"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ExpireTime time.Time `json:"expire_time"`
}

type rotateRequest struct {
	OldCode string `json:"old_code"`
}

// --- Public pages ---

// HandleIndex handles GET /.
// Purges expired uploads and serves the pickup keypad.
func (h *Handler) HandleIndex(c echo.Context) error {
	if _, err := h.locker.SweepExpired(c.Request().Context()); err != nil {
		slog.Error("sweep on index failed", "error", err)
	}
	return c.Render(http.StatusOK, web.PageIndex, web.PageData{Title: "Pickup"})
}

// HandleInitializePage handles GET /initialize.
func (h *Handler) HandleInitializePage(c echo.Context) error {
	if h.locker.IsInitialized() {
		return c.Redirect(http.StatusFound, "/")
	}
	return c.Render(http.StatusOK, web.PageInitialize, web.PageData{Title: "Setup"})
}

// HandleInitialize handles POST /initialize.
func (h *Handler) HandleInitialize(c echo.Context) error {
	err := h.locker.Initialize(c.Request().Context(), c.FormValue("password"))
	switch {
	case err == nil, errors.Is(err, service.ErrAlreadyInitialized):
		return c.Redirect(http.StatusFound, "/")
	case errors.Is(err, service.ErrEmptyPassword):
		return c.Render(http.StatusBadRequest, web.PageInitialize, web.PageData{
			Title: "Setup",
			Data:  formPage{Error: errorMessage(err)},
		})
	default:
		slog.Error("initialization failed", "error", err)
		return c.Render(http.StatusInternalServerError, web.PageInitialize, web.PageData{
			Title: "Setup",
			Data:  formPage{Error: errorMessage(err)},
		})
	}
}

// HandleUploadPage handles GET /upload.
func (h *Handler) HandleUploadPage(c echo.Context) error {
	page, err := h.uploadPage(c)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, web.PageUpload, web.PageData{Title: "Send", Data: page})
}

// HandleUpload handles POST /upload.
// Accepts a multipart form with "file" and "expire_hours". Replies with JSON
// when the client asks for it, otherwise re-renders the upload page.
func (h *Handler) HandleUpload(c echo.Context) error {
	result, err := h.processUpload(c)

	if wantsJSON(c) {
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, uploadResponse{
			Success:    true,
			Code:       result.Code,
			Filename:   result.Filename,
			Size:       result.Size,
			ExpireTime: result.ExpiresAt,
		})
	}

	page, pageErr := h.uploadPage(c)
	if pageErr != nil {
		return pageErr
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		page.Error = errorMessage(err)
	} else {
		page.Result = result
	}
	return c.Render(status, web.PageUpload, web.PageData{Title: "Send", Data: page})
}

func (h *Handler) processUpload(c echo.Context) (*service.UploadResult, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Filename == "" {
		return nil, service.ErrNoFileSelected
	}

	// An unparsable window is left as zero for the service to reject after
	// the size check.
	hours, _ := strconv.Atoi(c.FormValue("expire_hours"))

	src, err := fileHeader.Open()
	if err != nil {
		return nil, service.ErrIOFailure
	}
	defer src.Close()

	return h.locker.Upload(c.Request().Context(), service.UploadRequest{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		Body:        src,
		ExpireHours: hours,
	})
}

func (h *Handler) uploadPage(c echo.Context) (uploadPage, error) {
	settings, err := h.locker.Settings(c.Request().Context())
	if err != nil {
		return uploadPage{}, err
	}
	return uploadPage{
		MaxFileSizeMB: settings.MaxFileSizeMB,
		Windows:       service.ExpiryWindows,
	}, nil
}

// --- Pickup API ---

// HandleVerifyCode handles GET /verify_code?code=.
func (h *Handler) HandleVerifyCode(c echo.Context) error {
	res, err := h.locker.Verify(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		status := http.StatusOK
		if !errors.Is(err, service.ErrCodeNotFound) && !errors.Is(err, service.ErrCodeExpired) {
			slog.Error("verify failed", "error", err)
			status = http.StatusInternalServerError
		}
		return c.JSON(status, echo.Map{
			"exists":  false,
			"message": errorMessage(err),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"exists":   true,
		"filename": res.Filename,
	})
}

// HandleRotateCode handles POST /update_code_and_expiry.
// Swaps the code in the JSON body for a short-lived five-digit one.
func (h *Handler) HandleRotateCode(c echo.Context) error {
	var req rotateRequest
	if err := c.Bind(&req); err != nil || req.OldCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "old_code is required",
		})
	}

	res, err := h.locker.Rotate(c.Request().Context(), req.OldCode)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"new_code":    res.Code,
		"expire_time": res.ExpiresAt,
	})
}

// HandleDownload handles GET /download?new_code=.
// Streams the file as an attachment under its original name.
func (h *Handler) HandleDownload(c echo.Context) error {
	dl, err := h.locker.Open(c.Request().Context(), c.QueryParam("new_code"))
	if err != nil {
		return mapServiceError(c, err)
	}

	f, err := openStored(dl.Path)
	if err != nil {
		return mapServiceError(c, err)
	}
	defer f.Close()

	encoded := escapeFilename(dl.Filename)
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, echo.MIMEOctetStream)
	header.Set(echo.HeaderContentDisposition,
		`attachment; filename="`+encoded+`"; filename*=UTF-8''`+encoded)

	http.ServeContent(c.Response(), c.Request(), dl.Filename, dl.ModTime, f)
	return nil
}

// openStored opens a file handed out by Locker.Open. The file can vanish once
// the lock is released, which is reported as a missing file.
func openStored(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, service.ErrFileMissing
		}
		slog.Error("failed to open stored file", "path", path, "error", err)
		return nil, service.ErrIOFailure
	}
	return f, nil
}

// escapeFilename percent-encodes every byte outside the unreserved set, so
// the result is valid both quoted and as an RFC 5987 filename* value.
func escapeFilename(name string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9',
			ch == '-', ch == '.', ch == '_', ch == '~':
			b.WriteByte(ch)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[ch>>4])
			b.WriteByte(hex[ch&0x0f])
		}
	}
	return b.String()
}

// HandleReadAdminConfig handles GET /read_admin_config.
// The password hash is never exposed.
func (h *Handler) HandleReadAdminConfig(c echo.Context) error {
	settings, err := h.locker.Settings(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"max_file_size":    settings.MaxFileSizeMB,
		"max_upload_bytes": settings.MaxUploadBytes(),
		"announcement":     settings.Announcement,
	})
}

// HandleGetAnnouncement handles GET /get_announcement.
func (h *Handler) HandleGetAnnouncement(c echo.Context) error {
	announcement, err := h.locker.Announcement(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"announcement": announcement})
}

// HandleBackground handles GET /css/all/bg.png.
func (h *Handler) HandleBackground(c echo.Context) error {
	if !h.background.Exists() {
		return echo.NewHTTPError(http.StatusNotFound, "no background image")
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.File(h.background.Path())
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	initialized := h.locker.IsInitialized()
	active := 0

	if initialized {
		stats, err := h.locker.Stats(c.Request().Context())
		if err != nil {
			status = "degraded"
			slog.Error("health check failed", "error", err)
		} else {
			active = stats.ActiveUploads
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":         status,
		"initialized":    initialized,
		"active_uploads": active,
	})
}

// --- Admin ---

// HandleLoginPage handles GET /admin/login.
func (h *Handler) HandleLoginPage(c echo.Context) error {
	if isAdmin(c) {
		return c.Redirect(http.StatusFound, "/admin/panel")
	}
	return c.Render(http.StatusOK, web.PageLogin, web.PageData{Title: "Admin"})
}

// HandleLogin handles POST /admin/login.
func (h *Handler) HandleLogin(c echo.Context) error {
	if err := h.locker.Authenticate(c.Request().Context(), c.FormValue("password")); err != nil {
		status := statusFor(err)
		if !errors.Is(err, service.ErrBadCredentials) {
			slog.Error("login failed", "error", err)
		}
		return c.Render(status, web.PageLogin, web.PageData{
			Title: "Admin",
			Data:  formPage{Error: errorMessage(err)},
		})
	}

	token := h.sessions.Create()
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("admin logged in", "ip", c.RealIP())
	return c.Redirect(http.StatusFound, "/admin/panel")
}

// HandleLogout handles GET /admin/logout.
func (h *Handler) HandleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(session.CookieName); err == nil {
		h.sessions.Revoke(cookie.Value)
	}
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, "/")
}

// HandlePanel handles GET /admin/panel.
func (h *Handler) HandlePanel(c echo.Context) error {
	page, err := h.panelPage(c)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, web.PagePanel, web.PageData{Title: "Admin panel", Data: page})
}

// HandleDeleteFile handles GET /admin/delete_file/:code.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	code := c.Param("code")
	if err := h.locker.DeleteRecord(c.Request().Context(), code); err != nil && !errors.Is(err, service.ErrCodeNotFound) {
		slog.Error("failed to delete upload", "code", code, "error", err)
	}
	return c.Redirect(http.StatusFound, "/admin/panel")
}

// HandleUpdateExpire handles POST /admin/update_expire/:code.
func (h *Handler) HandleUpdateExpire(c echo.Context) error {
	code := c.Param("code")
	hours, err := strconv.Atoi(strings.TrimSpace(c.FormValue("hours")))
	if err != nil {
		return c.Redirect(http.StatusFound, "/admin/panel")
	}

	if err := h.locker.ExtendExpiry(c.Request().Context(), code, hours); err != nil {
		if !errors.Is(err, service.ErrCodeNotFound) && !errors.Is(err, service.ErrInvalidExtension) {
			slog.Error("failed to extend upload", "code", code, "error", err)
		}
	}
	return c.Redirect(http.StatusFound, "/admin/panel")
}

// HandleUpdateSettings handles POST /admin/update_settings.
// Applies every valid part of the form and re-renders the panel with the outcome.
func (h *Handler) HandleUpdateSettings(c echo.Context) error {
	update := service.SettingsUpdate{
		CurrentPassword: c.FormValue("current_password"),
		NewPassword:     c.FormValue("new_password"),
		ConfirmPassword: c.FormValue("confirm_password"),
		MaxFileSizeMB:   c.FormValue("max_file_size"),
		Announcement:    c.FormValue("announcement"),
	}

	if fileHeader, err := c.FormFile("background_image"); err == nil && fileHeader.Filename != "" {
		src, err := fileHeader.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		update.BackgroundName = fileHeader.Filename
		update.Background = src
	}

	outcome, err := h.locker.UpdateSettings(c.Request().Context(), update)
	if err != nil {
		return err
	}

	page, err := h.panelPage(c)
	if err != nil {
		return err
	}
	page.Messages = outcome.Messages
	for _, e := range outcome.Errors {
		page.Errors = append(page.Errors, errorMessage(e))
	}
	return c.Render(http.StatusOK, web.PagePanel, web.PageData{Title: "Admin panel", Data: page})
}

func (h *Handler) panelPage(c echo.Context) (*panelPage, error) {
	ctx := c.Request().Context()

	records, err := h.locker.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := h.locker.Settings(ctx)
	if err != nil {
		return nil, err
	}

	page := &panelPage{
		Records:       records,
		MaxFileSizeMB: settings.MaxFileSizeMB,
		Announcement:  settings.Announcement,
		HasBackground: h.background.Exists(),
	}
	for _, rec := range records {
		page.StoredBytes += rec.Size
	}
	return page, nil
}

// --- Errors ---

// statusFor maps service-layer errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrCodeNotFound), errors.Is(err, service.ErrFileMissing):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoFileSelected),
		errors.Is(err, service.ErrInvalidExpiryWindow),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotInitialized), errors.Is(err, service.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage turns a service-layer error into text for pages and JSON replies.
func errorMessage(err error) string {
	var tooLarge *service.FileTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return tooLarge.Error()
	case errors.Is(err, service.ErrCodeNotFound):
		return "pickup code does not exist"
	case errors.Is(err, service.ErrCodeExpired):
		return "pickup code has expired"
	case errors.Is(err, service.ErrFileMissing):
		return "file no longer exists"
	case errors.Is(err, service.ErrNoFileSelected):
		return "please choose a file to upload"
	case errors.Is(err, service.ErrInvalidExpiryWindow):
		return "please choose a valid expiry window"
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return "the locker is full, try again later"
	case errors.Is(err, service.ErrBadCredentials):
		return "incorrect password"
	case errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrInvalidMaxSize),
		errors.Is(err, service.ErrUnsupportedImageFormat),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrNotInitialized):
		return unwrapAll(err).Error()
	default:
		return "internal server error"
	}
}

// mapServiceError translates service-layer errors into JSON failure replies.
func mapServiceError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"message": errorMessage(err),
	})
}

func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
