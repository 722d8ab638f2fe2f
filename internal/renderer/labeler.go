package renderer

import (
	"log/slog"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/draw/fontrast"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

const defaultFontSize = 10.0

// Labeler draws icons and text labels for styled entities into figures.
type Labeler struct {
	icons  *draw.IconCache
	placer *fontrast.TextPlacer
}

// NewLabeler creates a labeler. The text placer may be nil, in which case
// only icons are drawn.
func NewLabeler(iconBasePath string, face fontrast.Face, logger *slog.Logger) *Labeler {
	l := &Labeler{
		icons: draw.NewIconCache(iconBasePath, logger),
	}
	if face != nil {
		l.placer = fontrast.NewTextPlacer(face)
	}
	return l
}

// LabelEntity renders the entity's icon and text into the figure. The icon
// sits on the entity's center; text follows the style's position, shifted
// below the icon when both are present.
func (l *Labeler) LabelEntity(figure *draw.Figure, styled mapcss.StyledTarget, zoom uint8, scale int) {
	target := makeLabelTarget(styled.Target, zoom, scale)
	style := styled.Style

	yOffset := 0.0
	if style.IconImage != "" && target.hasCenter {
		if icon := l.icons.Get(style.IconImage); icon != nil {
			icon.Draw(figure, target.centerX, target.centerY)
			yOffset = float64(icon.Height) / 2
		}
	}

	if style.TextStyle == nil || l.placer == nil {
		return
	}
	ts := style.TextStyle

	fontSize := defaultFontSize
	if ts.FontSize != nil {
		fontSize = *ts.FontSize
	}
	fontSize *= float64(scale)

	position := mapcss.TextCenter
	if ts.TextPosition != nil {
		position = *ts.TextPosition
	}

	color := mapcss.Color{}
	if ts.TextColor != nil {
		color = *ts.TextColor
	}

	l.placer.Place(target, ts.Text, position, fontSize, scale, yOffset, color, figure)
}
