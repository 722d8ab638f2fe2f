package mapcss

// LineCap is the shape drawn at line and dash ends.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

// TextPosition selects how a label is laid out.
type TextPosition int

const (
	// TextCenter places wrapped rows around the entity's centroid.
	TextCenter TextPosition = iota
	// TextLine lays glyphs along the way's geometry.
	TextLine
)

// StyleType selects the dialect quirks of the loaded stylesheet.
type StyleType int

const (
	// StyleJosm uses canvas fill-color, doubles casing widths and widens
	// dashes for caps.
	StyleJosm StyleType = iota
	// StyleMapsMe uses canvas background-color and plain rectangular dashes.
	StyleMapsMe
)

// TextStyle is the text-related subset of a style.
type TextStyle struct {
	Text         string
	TextColor    *Color
	TextPosition *TextPosition
	FontSize     *float64
}

// Style is a flat, fully-resolved style for one entity on one layer.
// Optional fields are nil when the cascade did not assign them.
type Style struct {
	Layer  string
	ZIndex float64

	Color            *Color
	FillColor        *Color
	IsForegroundFill bool
	BackgroundColor  *Color
	Opacity          *float64
	FillOpacity      *float64

	Width   *float64
	Dashes  []float64
	LineCap *LineCap

	CasingColor   *Color
	CasingWidth   *float64
	CasingDashes  []float64
	CasingLineCap *LineCap

	IconImage string
	FillImage string
	TextStyle *TextStyle
}
