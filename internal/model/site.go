package model

// Viewport is the width x height used to render a page.
type Viewport struct {
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BoxEdges holds the four computed values of a CSS box property.
type BoxEdges struct {
	Top    string `json:"top"`
	Right  string `json:"right"`
	Bottom string `json:"bottom"`
	Left   string `json:"left"`
}

// Border holds computed border values.
type Border struct {
	Width  string `json:"width"`
	Style  string `json:"style"`
	Color  string `json:"color"`
	Radius string `json:"radius"`
}

// ComputedStyle is the effective style of one DOM element.
type ComputedStyle struct {
	Color           string   `json:"color"`
	BackgroundColor string   `json:"background_color"`
	FontSize        string   `json:"font_size"`
	FontFamily      string   `json:"font_family"`
	FontWeight      string   `json:"font_weight"`
	LineHeight      string   `json:"line_height"`
	LetterSpacing   string   `json:"letter_spacing"`
	Margin          BoxEdges `json:"margin"`
	Padding         BoxEdges `json:"padding"`
	Border          Border   `json:"border"`
	Display         string   `json:"display"`
	Position        string   `json:"position"`
	FlexDirection   string   `json:"flex_direction"`
	JustifyContent  string   `json:"justify_content"`
	AlignItems      string   `json:"align_items"`
	Gap             string   `json:"gap"`
}

// SiteElement is one DOM element in the captured snapshot tree.
type SiteElement struct {
	Tag      string        `json:"tag"`
	ID       string        `json:"id,omitempty"`
	Classes  []string      `json:"classes,omitempty"`
	Bounds   Bounds        `json:"bounds"`
	Styles   ComputedStyle `json:"computed_style"`
	Text     string        `json:"text,omitempty"`
	Children []SiteElement `json:"children,omitempty"`
}

// FontUsage is one distinct family/size/weight combination and how often it occurs.
type FontUsage struct {
	Family string `json:"family"`
	Size   string `json:"size"`
	Weight string `json:"weight"`
	Count  int    `json:"count"`
}

// ElementRef points at an element using a color, for report drill-down.
type ElementRef struct {
	Selector string  `json:"selector"`
	Name     string  `json:"name,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// ColorUsage maps one resolved color to the elements that use it.
type ColorUsage struct {
	Color    string       `json:"color"`
	Type     string       `json:"type"`
	Elements []ElementRef `json:"elements"`
}

// SiteCapture is the complete output of rendering one URL at one viewport.
type SiteCapture struct {
	URL            string       `json:"url"`
	Title          string       `json:"title,omitempty"`
	Viewport       Viewport     `json:"viewport"`
	ScreenshotPath string       `json:"screenshot_path"`
	DOM            *SiteElement `json:"dom_structure"`
	Colors         []string     `json:"colors"`
	ColorUsages    []ColorUsage `json:"colors_with_elements,omitempty"`
	Fonts          []FontUsage  `json:"fonts"`
}
