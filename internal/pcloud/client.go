package pcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// codeDirectoryMissing is returned by pCloud when a folder path does not exist.
const codeDirectoryMissing = 2005

// ErrFolderNotFound is returned by ListObjects for a missing folder.
var ErrFolderNotFound = errors.New("pcloud: folder not found")

// APIError is a non-zero result from the pCloud API.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pcloud %s: result %d: %s", e.Method, e.Code, e.Message)
}

// Object is a file in a folder listing.
type Object struct {
	Name string
	Path string
	Size int64
}

// Client is a minimal pCloud JSON API client authenticating with username
// and password on every call.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// New creates a client. baseURL should be like "https://api.pcloud.com"
// (no trailing slash); EU accounts use "https://eapi.pcloud.com".
func New(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

func (c *Client) params(extra url.Values) url.Values {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("username", c.username)
	q.Set("password", c.password)
	return q
}

// call performs an authenticated GET and decodes the response into out,
// which must embed the result envelope fields.
func (c *Client) call(ctx context.Context, method string, q url.Values, out any) error {
	return c.get(ctx, method, c.params(q), out)
}

// get performs a GET with exactly the given query.
func (c *Client) get(ctx context.Context, method string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+q.Encode(), nil)
	if err != nil {
		return redact(method, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return redact(method, err)
	}
	defer resp.Body.Close()
	return decode(method, resp, out)
}

// redact drops the request URL from transport errors; it carries the
// account credentials in its query.
func redact(method string, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("pcloud %s: %w", method, ue.Err)
	}
	return fmt.Errorf("pcloud %s: %w", method, err)
}

func decode(method string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pcloud %s: status=%d body=%s", method, resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("pcloud %s: decode: %w", method, err)
	}
	if env.Result != 0 {
		return &APIError{Method: method, Code: env.Result, Message: env.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// EnsureFolder creates folder (and parents) when missing.
func (c *Client) EnsureFolder(ctx context.Context, folder string) error {
	return c.call(ctx, "createfolderifnotexists", url.Values{"path": {folder}}, nil)
}

// Upload sends localPath into folder under objectName.
func (c *Client) Upload(ctx context.Context, localPath, objectName, folder string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", objectName)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	q := c.params(url.Values{"path": {folder}, "filename": {objectName}, "nopartial": {"1"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploadfile?"+q.Encode(), &body)
	if err != nil {
		return redact("uploadfile", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return redact("uploadfile", err)
	}
	defer resp.Body.Close()
	return decode("uploadfile", resp, nil)
}

// DeleteObject removes the file at objectPath.
func (c *Client) DeleteObject(ctx context.Context, objectPath string) error {
	return c.call(ctx, "deletefile", url.Values{"path": {objectPath}}, nil)
}

// IssuePublicLink returns the public link code for objectPath. An existing
// link is revoked and reissued once.
func (c *Client) IssuePublicLink(ctx context.Context, objectPath string) (model.AudioHandle, error) {
	code, err := c.getFilePublink(ctx, objectPath)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "already") {
		slog.Debug("pcloud: link exists, reissuing", "path", objectPath)
		c.RevokePublicLink(ctx, objectPath)
		code, err = c.getFilePublink(ctx, objectPath)
	}
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("pcloud getfilepublink: empty code")
	}
	return model.AudioHandle(code), nil
}

func (c *Client) getFilePublink(ctx context.Context, objectPath string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	if err := c.call(ctx, "getfilepublink", url.Values{"path": {objectPath}}, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

// RevokePublicLink deletes the public link of objectPath. Best effort:
// failures are logged and swallowed.
func (c *Client) RevokePublicLink(ctx context.Context, objectPath string) {
	if err := c.call(ctx, "deletepublink", url.Values{"path": {objectPath}}, nil); err != nil {
		slog.Debug("pcloud: revoke link", "path", objectPath, "err", err)
	}
}

// ListObjects lists the files (not subfolders) directly under folder.
func (c *Client) ListObjects(ctx context.Context, folder string) ([]Object, error) {
	var out struct {
		Metadata struct {
			Contents []struct {
				Name     string `json:"name"`
				Path     string `json:"path"`
				IsFolder bool   `json:"isfolder"`
				Size     int64  `json:"size"`
			} `json:"contents"`
		} `json:"metadata"`
	}
	err := c.call(ctx, "listfolder", url.Values{"path": {folder}}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeDirectoryMissing {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	objs := make([]Object, 0, len(out.Metadata.Contents))
	for _, it := range out.Metadata.Contents {
		if it.IsFolder {
			continue
		}
		p := it.Path
		if p == "" {
			p = path.Join(folder, it.Name)
		}
		objs = append(objs, Object{Name: it.Name, Path: p, Size: it.Size})
	}
	return objs, nil
}

// ResolveDownloadURL turns a public link code into a direct download URL.
// The URL is short-lived; resolve it per request. Public links need no
// credentials, so none are sent.
func (c *Client) ResolveDownloadURL(ctx context.Context, handle model.AudioHandle) (string, error) {
	var out struct {
		Hosts []string `json:"hosts"`
		Path  string   `json:"path"`
	}
	q := url.Values{"code": {string(handle)}, "forcedownload": {"0"}}
	if err := c.get(ctx, "getpublinkdownload", q, &out); err != nil {
		return "", err
	}
	if len(out.Hosts) == 0 || out.Path == "" {
		return "", errors.New("pcloud getpublinkdownload: no hosts")
	}
	return "https://" + out.Hosts[0] + out.Path, nil
}

// DeleteAll revokes every public link in folder and then deletes every file.
// A missing folder counts as empty. Per-object failures are logged and the
// sweep continues; it returns the number of files deleted.
func (c *Client) DeleteAll(ctx context.Context, folder string) (int, error) {
	objs, err := c.ListObjects(ctx, folder)
	if errors.Is(err, ErrFolderNotFound) {
		slog.Info("pcloud: folder does not exist yet", "folder", folder)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, o := range objs {
		c.RevokePublicLink(ctx, o.Path)
	}
	deleted := 0
	for _, o := range objs {
		if err := c.DeleteObject(ctx, o.Path); err != nil {
			slog.Warn("pcloud: delete failed", "path", o.Path, "err", err)
			continue
		}
		deleted++
	}
	slog.Info("pcloud: folder purged", "folder", folder, "found", len(objs), "deleted", deleted)
	return deleted, nil
}
