package model

// Bounds is an absolute bounding box in CSS pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fill is one visible paint applied to a design node.
type Fill struct {
	Type     string  `json:"type"`
	ColorHex string  `json:"color,omitempty"`
	Opacity  float64 `json:"opacity"`
}

// Stroke is one visible border paint applied to a design node.
type Stroke struct {
	Type     string  `json:"type"`
	ColorHex string  `json:"color,omitempty"`
	Weight   float64 `json:"weight"`
	Opacity  float64 `json:"opacity"`
}

// Effect is a shadow or blur applied to a design node.
type Effect struct {
	Type     string  `json:"type"`
	Radius   float64 `json:"radius"`
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`
	ColorHex string  `json:"color,omitempty"`
}

// Typography holds text styling; present only for text nodes.
type Typography struct {
	FontFamily    string  `json:"family"`
	FontSize      float64 `json:"size"`
	FontWeight    float64 `json:"weight"`
	LineHeight    float64 `json:"line_height"`
	LetterSpacing float64 `json:"letter_spacing"`
	TextAlign     string  `json:"text_align,omitempty"`
	Text          string  `json:"text,omitempty"`
}

// Layout holds auto-layout metrics of a design node.
type Layout struct {
	Mode          string  `json:"mode,omitempty"`
	PaddingLeft   float64 `json:"padding_left"`
	PaddingRight  float64 `json:"padding_right"`
	PaddingTop    float64 `json:"padding_top"`
	PaddingBottom float64 `json:"padding_bottom"`
	ItemSpacing   float64 `json:"item_spacing"`
}

// DesignToken is the normalized extraction of a single design-document node.
type DesignToken struct {
	NodeID     string      `json:"node_id"`
	Kind       string      `json:"kind"`
	Name       string      `json:"name"`
	Bounds     *Bounds     `json:"bounds,omitempty"`
	Fills      []Fill      `json:"fills,omitempty"`
	Strokes    []Stroke    `json:"strokes,omitempty"`
	Effects    []Effect    `json:"effects,omitempty"`
	Typography *Typography `json:"typography,omitempty"`
	Layout     Layout      `json:"layout"`
}

// DesignMetadata carries file-level versioning info from the design API.
type DesignMetadata struct {
	Version      string `json:"version"`
	LastModified string `json:"last_modified"`
}

// DesignExtract is the complete output of one design-file extraction.
type DesignExtract struct {
	FileKey      string            `json:"file_key"`
	FileName     string            `json:"file_name"`
	Tokens       []DesignToken     `json:"design_tokens"`
	ImageExports map[string]string `json:"image_exports,omitempty"`
	Metadata     DesignMetadata    `json:"metadata"`
}
