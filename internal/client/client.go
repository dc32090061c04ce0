// Package client talks to a locker server over its public HTTP interface.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultServer = "http://localhost:8080"

var (
	ErrNotInitialized = errors.New("server has not been initialized")
	ErrCodeNotFound   = errors.New("pickup code not found or expired")
)

// APIError is a failure reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL. Redirects are not
// followed; the server only redirects when it still needs setup.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type UploadResult struct {
	Success    bool      `json:"success"`
	Code       string    `json:"code"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ExpireTime time.Time `json:"expire_time"`
}

type Info struct {
	MaxFileSizeMB  int    `json:"max_file_size"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	Announcement   string `json:"announcement"`
}

type failure struct {
	Success bool   `json:"success"`
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

// Upload sends body as filename, to be kept for hours.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader, hours int) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("expire_hours", strconv.Itoa(hours)); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, body); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var res UploadResult
	if err := c.doJSON(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Verify returns the original filename behind code.
func (c *Client) Verify(ctx context.Context, code string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/verify_code?code="+url.QueryEscape(code), nil)
	if err != nil {
		return "", err
	}

	var res struct {
		Exists   bool   `json:"exists"`
		Filename string `json:"filename"`
		Message  string `json:"message"`
	}
	if err := c.doJSON(req, &res); err != nil {
		return "", err
	}
	if !res.Exists {
		return "", fmt.Errorf("%w: %s", ErrCodeNotFound, res.Message)
	}
	return res.Filename, nil
}

// Rotate swaps code for a short-lived one-time code.
func (c *Client) Rotate(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(map[string]string{"old_code": code})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update_code_and_expiry", strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var res struct {
		Success bool   `json:"success"`
		NewCode string `json:"new_code"`
	}
	if err := c.doJSON(req, &res); err != nil {
		return "", err
	}
	return res.NewCode, nil
}

// Download streams the file behind code into w and returns its filename.
func (c *Client) Download(ctx context.Context, code string, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download?new_code="+url.QueryEscape(code), nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, decodeFailure(resp)
	}

	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, fmt.Errorf("download interrupted: %w", err)
	}
	return name, n, nil
}

// Pickup runs the browser flow: verify, rotate, download into dir. It
// returns the path written.
func (c *Client) Pickup(ctx context.Context, code, dir string) (string, error) {
	filename, err := c.Verify(ctx, code)
	if err != nil {
		return "", err
	}

	newCode, err := c.Rotate(ctx, code)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".locker-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	served, _, err := c.Download(ctx, newCode, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	if served != "" {
		filename = served
	}

	dest := availablePath(dir, safeName(filename))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Info returns the server's public settings.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/read_admin_config", nil)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := c.doJSON(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return decodeFailure(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusFound && strings.HasSuffix(resp.Header.Get("Location"), "/initialize") {
		return ErrNotInitialized
	}
	return nil
}

func decodeFailure(resp *http.Response) error {
	var f failure
	json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&f)

	apiErr := &APIError{Status: resp.StatusCode, Message: f.Message}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: %w", ErrCodeNotFound, apiErr)
	}
	return apiErr
}

// filenameFromDisposition prefers filename*, which ParseMediaType has
// already decoded. A plain filename is percent-decoded once.
func filenameFromDisposition(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if strings.Contains(strings.ToLower(header), "filename*=") {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "download"
	}
	return name
}

// availablePath appends " (n)" before the extension until the name is free.
func availablePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
