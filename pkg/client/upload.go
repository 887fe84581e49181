package client

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
)

// MediaSpec is the metadata of a new media entry.
type MediaSpec struct {
	// ReferenceID is the caller's own id for the entry. Required.
	ReferenceID string
	MediaType   kaltura.MediaType
	Title       string
	Description string
	Tag         string

	// FlavorParamID selects the flavor the content is stored as. Nil keeps
	// the source flavor.
	FlavorParamID *int
}

// UploadRequest uploads a local file.
type UploadRequest struct {
	MediaSpec
	Path string
}

// URLUploadRequest lets the service fetch the content from a URL.
type URLUploadRequest struct {
	MediaSpec
	URL string
}

var mediaExtensions = map[kaltura.MediaType]string{
	kaltura.MediaTypeAudio: ".mp3",
	kaltura.MediaTypeVideo: ".mp4",
}

func (m MediaSpec) validate() error {
	if m.ReferenceID == "" {
		return fmt.Errorf("%w: reference id must be defined", kaltura.ErrConfiguration)
	}
	if _, ok := mediaExtensions[m.MediaType]; !ok {
		return fmt.Errorf("%w: media type must be audio or video (got %s)", kaltura.ErrConfiguration, m.MediaType)
	}
	return nil
}

// CheckExtension verifies that path carries the file extension of mediaType.
func CheckExtension(path string, mediaType kaltura.MediaType) error {
	want, ok := mediaExtensions[mediaType]
	if !ok {
		return fmt.Errorf("%w: unsupported media type %s", kaltura.ErrConfiguration, mediaType)
	}
	got := strings.ToLower(filepath.Ext(path))
	if got != want {
		return fmt.Errorf("%w: file %q has extension %q, %s requires %q",
			kaltura.ErrConfiguration, path, got, mediaType, want)
	}
	return nil
}

// Upload uploads a file and attaches it to a new entry. It returns the
// entry id. The pipeline is: upload token, file upload, entry, content.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := CheckExtension(req.Path, req.MediaType); err != nil {
		return "", err
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	logger := c.logger.With().Str("reference_id", req.ReferenceID).Str("file", req.Path).Logger()

	token, err := do[kaltura.UploadToken](ctx, c, kaltura.NewCall("uploadToken", "add", map[string]any{
		"uploadToken": map[string]any{"objectType": "KalturaUploadToken"},
	}))
	if err != nil {
		return "", fmt.Errorf("upload %s: add upload token: %w", req.ReferenceID, err)
	}
	logger.Debug().Str("upload_token", token.ID).Msg("Upload token added")

	uploadCall := kaltura.NewCall("uploadToken", "upload", map[string]any{
		"uploadTokenId": token.ID,
		"resume":        false,
		"finalChunk":    true,
		"resumeAt":      -1,
	})
	part := kaltura.FilePart{Field: "fileData", Name: filepath.Base(req.Path), Reader: file}
	if _, err := c.executor.Upload(ctx, uploadCall, part, true); err != nil {
		return "", fmt.Errorf("upload %s: upload file: %w", req.ReferenceID, err)
	}
	logger.Debug().Str("upload_token", token.ID).Msg("File uploaded")

	entryID, err := c.addEntry(ctx, req.MediaSpec)
	if err != nil {
		return "", err
	}

	resource := map[string]any{
		"objectType": "KalturaUploadedFileTokenResource",
		"token":      token.ID,
	}
	if err := c.addContent(ctx, entryID, resource, req.FlavorParamID); err != nil {
		return "", err
	}

	logger.Info().Str("entry_id", entryID).Msg("Media uploaded")
	return entryID, nil
}

// UploadURL creates an entry whose content the service downloads from a URL.
func (c *Client) UploadURL(ctx context.Context, req URLUploadRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid content url %q", kaltura.ErrConfiguration, req.URL)
	}

	entryID, err := c.addEntry(ctx, req.MediaSpec)
	if err != nil {
		return "", err
	}

	resource := map[string]any{
		"objectType":         "KalturaUrlResource",
		"url":                req.URL,
		"forceAsyncDownload": false,
	}
	if err := c.addContent(ctx, entryID, resource, req.FlavorParamID); err != nil {
		return "", err
	}

	c.logger.Info().
		Str("reference_id", req.ReferenceID).
		Str("entry_id", entryID).
		Str("url", req.URL).
		Msg("Media url attached")
	return entryID, nil
}

func (c *Client) addEntry(ctx context.Context, spec MediaSpec) (string, error) {
	entry := map[string]any{
		"objectType":  "KalturaMediaEntry",
		"mediaType":   int(spec.MediaType),
		"name":        spec.Title,
		"description": spec.Description,
		"referenceId": spec.ReferenceID,
	}
	if spec.Tag != "" {
		entry["tags"] = spec.Tag
	}

	added, err := do[kaltura.Entry](ctx, c, kaltura.NewCall(ServiceMedia, "add", map[string]any{"entry": entry}))
	if err != nil {
		return "", fmt.Errorf("upload %s: add entry: %w", spec.ReferenceID, err)
	}
	return added.ID, nil
}

func (c *Client) addContent(ctx context.Context, entryID string, resource map[string]any, flavorParamID *int) error {
	if flavorParamID != nil {
		resource = map[string]any{
			"objectType":    "KalturaAssetParamsResourceContainer",
			"assetParamsId": *flavorParamID,
			"resource":      resource,
		}
	}

	call := kaltura.NewCall(ServiceMedia, "addContent", map[string]any{
		"entryId":  entryID,
		"resource": resource,
	})
	if _, err := c.executor.Do(ctx, call, true); err != nil {
		return fmt.Errorf("attach content to %s: %w", entryID, err)
	}
	return nil
}
