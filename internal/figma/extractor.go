package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

// DefaultMaxDepth bounds the node-tree traversal so pathological documents
// cannot blow up extraction.
const DefaultMaxDepth = 10

// Extractor turns a design-file reference into a normalized token list plus
// locally materialized image exports.
type Extractor struct {
	client   *Client
	maxDepth int
	scale    int
	format   string
	logger   *slog.Logger
}

// NewExtractor returns an Extractor exporting images at the given scale in
// PNG format.
func NewExtractor(client *Client, scale int, logger *slog.Logger) *Extractor {
	return &Extractor{
		client:   client,
		maxDepth: DefaultMaxDepth,
		scale:    scale,
		format:   "png",
		logger:   logger,
	}
}

// ResolveFileKey extracts the file key from a design URL. Both the classic
// /file/<key>/... and the newer /design/<key>/... path shapes are accepted.
func ResolveFileKey(designURL string) (string, error) {
	parsed, err := url.Parse(designURL)
	if err != nil {
		return "", &errs.AppError{
			Kind:    errs.InvalidReference,
			Message: "Invalid design URL.",
			Cause:   err,
		}
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "file" || seg == "design") && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}

	return "", &errs.AppError{
		Kind:    errs.InvalidReference,
		Message: fmt.Sprintf("Could not resolve a file key from URL %q.", designURL),
	}
}

// normalizeNodeID converts the URL form of a node id (1-23) to the API form (1:23).
func normalizeNodeID(id string) string {
	return strings.ReplaceAll(id, "-", ":")
}

// Invalidate drops every cached response for the file the design URL refers
// to, forcing the next extraction to hit the API.
func (e *Extractor) Invalidate(designURL string) error {
	fileKey, err := ResolveFileKey(designURL)
	if err != nil {
		return err
	}
	e.client.InvalidateFile(fileKey)
	return nil
}

// ExtractFromURL runs the full extraction pipeline: resolve the file key,
// fetch the file, walk the node tree, and (when outputDir is non-empty)
// materialize image exports for the processed top-level nodes.
func (e *Extractor) ExtractFromURL(ctx context.Context, designURL, token, nodeID, outputDir string) (*model.DesignExtract, error) {
	fileKey, err := ResolveFileKey(designURL)
	if err != nil {
		return nil, err
	}

	e.logger.Info("fetching design file", "file_key", fileKey)

	payload, err := e.client.get(ctx, token, "/files/"+fileKey, nil,
		CacheKey(fileKey, "files", "", 0, ""))
	if err != nil {
		return nil, err
	}

	var file fileResponse
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, &errs.AppError{
			Kind:    errs.UpstreamError,
			Message: "The design API returned an unreadable file payload.",
			Cause:   err,
		}
	}

	var roots []*node
	var exportIDs []string

	if nodeID != "" {
		id := normalizeNodeID(nodeID)
		target := findNode(&file.Document, id)
		if target == nil {
			return nil, &errs.AppError{
				Kind:    errs.NodeNotFound,
				Message: fmt.Sprintf("Node %q was not found in file %s.", nodeID, fileKey),
			}
		}
		roots = []*node{target}
		exportIDs = []string{id}
	} else {
		for i := range file.Document.Children {
			child := &file.Document.Children[i]
			roots = append(roots, child)
			if child.ID != "" {
				exportIDs = append(exportIDs, child.ID)
			}
		}
	}

	var tokens []model.DesignToken
	for _, root := range roots {
		tokens = append(tokens, e.traverse(root, 0)...)
	}

	exports := map[string]string{}
	if outputDir != "" && len(exportIDs) > 0 {
		e.logger.Info("exporting design images", "count", len(exportIDs))
		exports, err = e.exportImages(ctx, token, fileKey, exportIDs, outputDir)
		if err != nil {
			return nil, err
		}
	}

	return &model.DesignExtract{
		FileKey:      fileKey,
		FileName:     file.Name,
		Tokens:       tokens,
		ImageExports: exports,
		Metadata: model.DesignMetadata{
			Version:      file.Version,
			LastModified: file.LastModified,
		},
	}, nil
}

// findNode searches the tree depth-first for the node with the given id.
func findNode(n *node, id string) *node {
	if n.ID == id {
		return n
	}
	for i := range n.Children {
		if found := findNode(&n.Children[i], id); found != nil {
			return found
		}
	}
	return nil
}

// traverse extracts tokens for n and its descendants, depth-first, bounded by
// the configured max depth.
func (e *Extractor) traverse(n *node, depth int) []model.DesignToken {
	if depth > e.maxDepth {
		return nil
	}

	tokens := []model.DesignToken{extractToken(n)}
	for i := range n.Children {
		tokens = append(tokens, e.traverse(&n.Children[i], depth+1)...)
	}
	return tokens
}

func extractToken(n *node) model.DesignToken {
	token := model.DesignToken{
		NodeID:  n.ID,
		Kind:    n.Type,
		Name:    n.Name,
		Fills:   extractFills(n.Fills),
		Strokes: extractStrokes(n),
		Effects: extractEffects(n.Effects),
		Layout: model.Layout{
			Mode:          n.LayoutMode,
			PaddingLeft:   n.PaddingLeft,
			PaddingRight:  n.PaddingRight,
			PaddingTop:    n.PaddingTop,
			PaddingBottom: n.PaddingBottom,
			ItemSpacing:   n.ItemSpacing,
		},
	}

	if bb := n.AbsoluteBoundingBox; bb != nil {
		token.Bounds = &model.Bounds{X: bb.X, Y: bb.Y, Width: bb.Width, Height: bb.Height}
	}

	if n.Type == "TEXT" && n.Style != nil {
		token.Typography = &model.Typography{
			FontFamily:    n.Style.FontFamily,
			FontSize:      n.Style.FontSize,
			FontWeight:    n.Style.FontWeight,
			LineHeight:    n.Style.LineHeightPx,
			LetterSpacing: n.Style.LetterSpacing,
			TextAlign:     n.Style.TextAlignHorizontal,
			Text:          n.Characters,
		}
	}

	return token
}

func extractFills(paints []paint) []model.Fill {
	var fills []model.Fill
	for _, p := range paints {
		if !paintVisible(p.Visible) {
			continue
		}
		fill := model.Fill{Type: p.Type, Opacity: paintOpacity(p.Opacity)}
		if p.Type == "SOLID" && p.Color != nil {
			fill.ColorHex = rgbaToHex(*p.Color)
		}
		fills = append(fills, fill)
	}
	return fills
}

func extractStrokes(n *node) []model.Stroke {
	var strokes []model.Stroke
	for _, p := range n.Strokes {
		if !paintVisible(p.Visible) {
			continue
		}
		stroke := model.Stroke{
			Type:    p.Type,
			Weight:  n.StrokeWeight,
			Opacity: paintOpacity(p.Opacity),
		}
		if p.Type == "SOLID" && p.Color != nil {
			stroke.ColorHex = rgbaToHex(*p.Color)
		}
		strokes = append(strokes, stroke)
	}
	return strokes
}

func extractEffects(effects []effect) []model.Effect {
	var out []model.Effect
	for _, ef := range effects {
		if !paintVisible(ef.Visible) {
			continue
		}
		extracted := model.Effect{
			Type:    ef.Type,
			Radius:  ef.Radius,
			OffsetX: ef.Offset.X,
			OffsetY: ef.Offset.Y,
		}
		if ef.Color != nil {
			extracted.ColorHex = rgbaToHex(*ef.Color)
		}
		out = append(out, extracted)
	}
	return out
}

func paintVisible(v *bool) bool {
	return v == nil || *v
}

func paintOpacity(o *float64) float64 {
	if o == nil {
		return 1
	}
	return *o
}

// rgbaToHex converts normalized 0-1 channels to a hex string. The alpha
// channel is appended only when the color is not fully opaque.
func rgbaToHex(c rgba) string {
	r := int(math.Round(c.R * 255))
	g := int(math.Round(c.G * 255))
	b := int(math.Round(c.B * 255))

	if c.A < 1 {
		return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, int(math.Round(c.A*255)))
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
