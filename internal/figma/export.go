package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

// safeNodeID rewrites a node id into a filesystem-safe file stem.
func safeNodeID(id string) string {
	return strings.NewReplacer(":", "_", ";", "_").Replace(id)
}

// exportImages requests rendered exports for nodeIDs and writes them under
// outputDir keyed by a filesystem-safe node id. A node whose file already
// exists for this scale and format is served from disk without a download.
func (e *Extractor) exportImages(ctx context.Context, token, fileKey string, nodeIDs []string, outputDir string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	result := make(map[string]string, len(nodeIDs))

	// Nodes already materialized at this scale/format need no API call.
	var missing []string
	for _, id := range nodeIDs {
		path := filepath.Join(outputDir, safeNodeID(id)+"."+e.format)
		if _, err := os.Stat(path); err == nil {
			result[id] = path
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	query := url.Values{
		"ids":    {strings.Join(missing, ",")},
		"scale":  {strconv.Itoa(e.scale)},
		"format": {e.format},
	}
	payload, err := e.client.get(ctx, token, "/images/"+fileKey, query,
		CacheKey(fileKey, "images", strings.Join(missing, ","), e.scale, e.format))
	if err != nil {
		return nil, err
	}

	var resp imagesResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &errs.AppError{
			Kind:    errs.UpstreamError,
			Message: "The design API returned an unreadable image payload.",
			Cause:   err,
		}
	}
	if resp.Err != "" {
		return nil, &errs.AppError{
			Kind:    errs.UpstreamError,
			Message: "Image export failed: " + resp.Err,
		}
	}

	for _, id := range missing {
		imageURL := resp.Images[id]
		if imageURL == "" {
			e.logger.Warn("no export URL for node", "node_id", id)
			continue
		}

		data, err := e.client.Download(ctx, imageURL)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(outputDir, safeNodeID(id)+"."+e.format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write export %s: %w", id, err)
		}
		result[id] = path
	}

	return result, nil
}
