package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliergopher/grab/v3"
	log "github.com/sirupsen/logrus"
)

// Options configures the HTTP behavior of a Registry client, carried from
// the installer's configuration surface (§6 Configuration).
type Options struct {
	APIBaseURL                   string
	APIKey                       string
	GameID                       string
	ResponseTimeout              time.Duration
	TLSHandshakeTimeout          time.Duration
	ConnectionPoolMaxIdleTimeout time.Duration
}

// apiClient is the concrete Registry client, talking to a CurseForge v1 API
// over net/http for metadata and grab for binary downloads. It owns the
// HTTP transport for the lifetime of one install (§5: "sole owner of
// network sockets").
type apiClient struct {
	opts       Options
	httpClient *http.Client
	grabClient *grab.Client
}

// NewClient constructs a Registry client. The caller must Close it when the
// install completes or fails.
func NewClient(opts Options) Client {
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = "https://api.curseforge.com/v1"
	}

	transport := &http.Transport{
		TLSHandshakeTimeout: opts.TLSHandshakeTimeout,
		IdleConnTimeout:     opts.ConnectionPoolMaxIdleTimeout,
	}

	return &apiClient{
		opts: opts,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.ResponseTimeout,
		},
		grabClient: grab.NewClient(),
	}
}

func (c *apiClient) doJSON(ctx context.Context, method, urlPath string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.APIBaseURL+urlPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return &HTTPError{StatusCode: resp.StatusCode, Message: "forbidden"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type searchModsResponse struct {
	Data []modDTO `json:"data"`
}

type modDTO struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	ClassID int    `json:"classId"`
	Links   struct {
		WebsiteURL string `json:"websiteUrl"`
	} `json:"links"`
}

func (d modDTO) toMod() Mod {
	return Mod{ID: d.ID, Name: d.Name, Slug: d.Slug, ClassID: d.ClassID, Links: Links{WebsiteURL: d.Links.WebsiteURL}}
}

func (c *apiClient) SearchMod(ctx context.Context, slug string, categoryInfo CategoryInfo) (Mod, error) {
	var resp searchModsResponse
	q := fmt.Sprintf("/mods/search?gameId=%s&slug=%s", c.opts.GameID, slug)
	if err := c.doJSON(ctx, http.MethodGet, q, &resp); err != nil {
		return Mod{}, err
	}
	if len(resp.Data) == 0 {
		return Mod{}, ErrMissing
	}
	return resp.Data[0].toMod(), nil
}

type categoriesResponse struct {
	Data []struct {
		ID   int    `json:"id"`
		Slug string `json:"slug"`
	} `json:"data"`
}

func (c *apiClient) LoadCategoryInfo(ctx context.Context, classSlugs []string, packCategorySlug string) (CategoryInfo, error) {
	var resp categoriesResponse
	q := fmt.Sprintf("/categories?gameId=%s&classOnly=false", c.opts.GameID)
	if err := c.doJSON(ctx, http.MethodGet, q, &resp); err != nil {
		return CategoryInfo{}, err
	}

	wanted := make(map[string]bool, len(classSlugs))
	for _, s := range classSlugs {
		wanted[s] = true
	}

	info := CategoryInfo{ContentClassIDs: make(map[int]Category)}
	for _, entry := range resp.Data {
		if wanted[entry.Slug] {
			info.ContentClassIDs[entry.ID] = Category{ID: entry.ID, Slug: entry.Slug}
		}
	}
	return info, nil
}

func (c *apiClient) ResolveModpackFile(ctx context.Context, mod Mod, fileMatcher string) (File, error) {
	var resp struct {
		Data []fileDTO `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/mods/%d/files", mod.ID), &resp); err != nil {
		return File{}, err
	}

	for _, f := range resp.Data {
		if fileMatcher == "" || strings.Contains(strings.ToLower(f.FileName), strings.ToLower(fileMatcher)) {
			return f.toFile(), nil
		}
	}
	return File{}, ErrMissing
}

type fileDTO struct {
	ID           int      `json:"id"`
	ModID        int      `json:"modId"`
	FileName     string   `json:"fileName"`
	DisplayName  string   `json:"displayName"`
	DownloadURL  string   `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
}

func (d fileDTO) toFile() File {
	return File{
		ID:           d.ID,
		ModID:        d.ModID,
		FileName:     d.FileName,
		DisplayName:  d.DisplayName,
		DownloadURL:  d.DownloadURL,
		GameVersions: d.GameVersions,
	}
}

func (c *apiClient) GetModFileInfo(ctx context.Context, modID, fileID int) (File, error) {
	var resp struct {
		Data fileDTO `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/mods/%d/files/%d", modID, fileID), &resp)
	if err != nil {
		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode == http.StatusNotFound {
			return File{}, ErrMissing
		}
		return File{}, err
	}
	return resp.Data.toFile(), nil
}

func (c *apiClient) GetModInfo(ctx context.Context, projectID int) (Mod, error) {
	var resp struct {
		Data modDTO `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/mods/%d", projectID), &resp); err != nil {
		return Mod{}, err
	}
	return resp.Data.toMod(), nil
}

func (c *apiClient) SlugToID(ctx context.Context, categoryInfo CategoryInfo, slug string) (int, error) {
	mod, err := c.SearchMod(ctx, slug, categoryInfo)
	if err != nil {
		return 0, err
	}
	return mod.ID, nil
}

func (c *apiClient) Download(ctx context.Context, file File, baseDir string, cb StatusCallback) (string, error) {
	if file.DownloadURL == "" {
		return "", ErrMissing
	}

	name := file.FileName
	if name == "" {
		name = path.Base(file.DownloadURL)
	}
	destPath := filepath.Join(baseDir, name)

	if _, err := os.Stat(destPath); err == nil {
		if cb != nil {
			cb(StatusSkipFileExists, file.DownloadURL, destPath)
		}
		return destPath, nil
	}

	if err := c.grabDownload(ctx, file.DownloadURL, destPath); err != nil {
		return "", err
	}
	if cb != nil {
		cb(StatusDownloaded, file.DownloadURL, destPath)
	}
	return destPath, nil
}

func (c *apiClient) DownloadTemp(ctx context.Context, file File, ext string, cb StatusCallback) (string, error) {
	if file.DownloadURL == "" {
		return "", ErrMissing
	}

	tmp, err := os.CreateTemp("", "cfinstaller-*."+strings.TrimPrefix(ext, "."))
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)

	if err := c.grabDownload(ctx, file.DownloadURL, tmpPath); err != nil {
		return "", err
	}
	if cb != nil {
		cb(StatusDownloaded, file.DownloadURL, tmpPath)
	}
	return tmpPath, nil
}

// grabDownload mirrors distantorigin-next-launcher's internal/download
// package: always overwrite, never resume.
func (c *apiClient) grabDownload(ctx context.Context, url, destPath string) error {
	req, err := grab.NewRequest(destPath, url)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := c.grabClient.Do(req)
	if err := resp.Err(); err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	log.Debugf("downloaded %s -> %s", url, destPath)
	return nil
}

func (c *apiClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
