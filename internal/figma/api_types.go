package figma

// Wire types for the subset of the design API this tool reads. Field names
// follow the API's camelCase JSON.

type rgba struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

type paint struct {
	Type    string   `json:"type"`
	Visible *bool    `json:"visible,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Color   *rgba    `json:"color,omitempty"`
}

type effect struct {
	Type    string `json:"type"`
	Visible *bool  `json:"visible,omitempty"`
	Radius  float64 `json:"radius"`
	Offset  struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"offset"`
	Color *rgba `json:"color,omitempty"`
}

type textStyle struct {
	FontFamily          string  `json:"fontFamily"`
	FontSize            float64 `json:"fontSize"`
	FontWeight          float64 `json:"fontWeight"`
	LineHeightPx        float64 `json:"lineHeightPx"`
	LetterSpacing       float64 `json:"letterSpacing"`
	TextAlignHorizontal string  `json:"textAlignHorizontal"`
}

type boundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type node struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Type                string       `json:"type"`
	Children            []node       `json:"children,omitempty"`
	AbsoluteBoundingBox *boundingBox `json:"absoluteBoundingBox,omitempty"`
	Fills               []paint      `json:"fills,omitempty"`
	Strokes             []paint      `json:"strokes,omitempty"`
	StrokeWeight        float64      `json:"strokeWeight"`
	Effects             []effect     `json:"effects,omitempty"`
	Style               *textStyle   `json:"style,omitempty"`
	Characters          string       `json:"characters,omitempty"`
	LayoutMode          string       `json:"layoutMode,omitempty"`
	PaddingLeft         float64      `json:"paddingLeft"`
	PaddingRight        float64      `json:"paddingRight"`
	PaddingTop          float64      `json:"paddingTop"`
	PaddingBottom       float64      `json:"paddingBottom"`
	ItemSpacing         float64      `json:"itemSpacing"`
}

type fileResponse struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	LastModified string `json:"lastModified"`
	Document     node   `json:"document"`
}

type imagesResponse struct {
	Err    string            `json:"err,omitempty"`
	Images map[string]string `json:"images"`
}
