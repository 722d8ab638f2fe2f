package mapcss

import (
	"log/slog"
	"sort"

	"github.com/MeKo-Tech/osmraster/internal/geodata"
)

// baseLayerName is the reserved layer every other named layer inherits
// width information from.
const baseLayerName = "default"

// wildcardLayerName feeds all named layers.
const wildcardLayerName = "*"

// StyledTarget pairs an entity with one of the styles the cascade produced
// for it.
type StyledTarget struct {
	Target StyleTarget
	Style  *Style
}

// Styler evaluates the rule list for entities and zoom levels.
// It is safe for concurrent use.
type Styler struct {
	CanvasFillColor  *Color
	UseCapsForDashes bool

	casingWidthMultiplier float64
	fontSizeMultiplier    float64
	rules                 []Rule
	cache                 *StyleCache
	logger                *slog.Logger
}

// NewStyler builds a styler for a parsed rule list. A fontSizeMultiplier of
// zero means "no scaling".
func NewStyler(rules []Rule, styleType StyleType, fontSizeMultiplier float64, logger *slog.Logger) *Styler {
	if fontSizeMultiplier == 0 {
		fontSizeMultiplier = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	casingWidthMultiplier := 2.0
	useCapsForDashes := true
	if styleType == StyleMapsMe {
		casingWidthMultiplier = 1.0
		useCapsForDashes = false
	}

	return &Styler{
		CanvasFillColor:       extractCanvasFillColor(rules, styleType),
		UseCapsForDashes:      useCapsForDashes,
		casingWidthMultiplier: casingWidthMultiplier,
		fontSizeMultiplier:    fontSizeMultiplier,
		rules:                 rules,
		cache:                 NewStyleCache(rules),
		logger:                logger,
	}
}

// GetStyles returns the ordered style list for a single entity at a zoom
// level, consulting the style cache first.
func (s *Styler) GetStyles(target StyleTarget, zoom uint8) []*Style {
	if styles, ok := s.cache.Get(target, zoom); ok {
		return styles
	}

	styles := s.evaluate(target, zoom)
	s.cache.Insert(target, zoom, styles)
	return styles
}

// StyleEntities styles every target and returns the flattened pairs ordered
// by (is_foreground_fill, z_index, global_id).
func (s *Styler) StyleEntities(targets []StyleTarget, zoom uint8) []StyledTarget {
	var styled []StyledTarget
	for _, target := range targets {
		for _, style := range s.GetStyles(target, zoom) {
			styled = append(styled, StyledTarget{Target: target, Style: style})
		}
	}

	sort.SliceStable(styled, func(i, j int) bool {
		return compareStyled(styled[i], styled[j]) < 0
	})
	return styled
}

// StyleAreas styles ways and multipolygons and merges the two sorted streams
// into one, preserving the global order.
func (s *Styler) StyleAreas(ways []geodata.Way, multipolygons []geodata.Multipolygon, zoom uint8) []StyledTarget {
	wayTargets := make([]StyleTarget, len(ways))
	for i, w := range ways {
		wayTargets[i] = WayTarget{w}
	}
	mpTargets := make([]StyleTarget, len(multipolygons))
	for i, mp := range multipolygons {
		mpTargets[i] = MultipolygonTarget{mp}
	}

	styledWays := s.StyleEntities(wayTargets, zoom)
	styledMultipolygons := s.StyleEntities(mpTargets, zoom)

	return MergeStyled(styledMultipolygons, styledWays)
}

// MergeStyled merges two lists already ordered by the styled-entity key
// (is_foreground_fill, z_index, global_id) into one, preserving that order.
// On equal keys entries of a win.
func MergeStyled(a, b []StyledTarget) []StyledTarget {
	result := make([]StyledTarget, 0, len(a)+len(b))
	ai, bi := 0, 0
	for ai < len(a) || bi < len(b) {
		takeA := false
		switch {
		case bi >= len(b):
			takeA = true
		case ai >= len(a):
			takeA = false
		default:
			takeA = compareStyled(a[ai], b[bi]) <= 0
		}
		if takeA {
			result = append(result, a[ai])
			ai++
		} else {
			result = append(result, b[bi])
			bi++
		}
	}
	return result
}

func compareStyled(a, b StyledTarget) int {
	fa, fb := a.Style.IsForegroundFill, b.Style.IsForegroundFill
	if fa != fb {
		if !fa {
			return -1
		}
		return 1
	}
	if a.Style.ZIndex != b.Style.ZIndex {
		if a.Style.ZIndex < b.Style.ZIndex {
			return -1
		}
		return 1
	}
	ia, ib := a.Target.GlobalID(), b.Target.GlobalID()
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

type propertyMap map[string]PropertyValue

// evaluate runs the cascade for one entity and converts the surviving layers
// into styles, ordered by layer name for determinism.
func (s *Styler) evaluate(target StyleTarget, zoom uint8) []*Style {
	layers := s.cascade(target, zoom)

	names := make([]string, 0, len(layers))
	for name := range layers {
		if name != wildcardLayerName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	baseLayer := layers[baseLayerName]

	styles := make([]*Style, 0, len(names))
	for _, name := range names {
		styles = append(styles, s.propsToStyle(name, layers[name], baseLayer, target))
	}
	return styles
}

func (s *Styler) cascade(target StyleTarget, zoom uint8) map[string]propertyMap {
	result := make(map[string]propertyMap)

	for ri := range s.rules {
		rule := &s.rules[ri]
		for si := range rule.Selectors {
			sel := &rule.Selectors[si]
			if !selectorMatches(target, sel, zoom) {
				continue
			}

			layerID := sel.LayerID
			if layerID == "" {
				layerID = baseLayerName
			}

			mergeInto := func(layer propertyMap) {
				for pi := range rule.Properties {
					layer[rule.Properties[pi].Name] = rule.Properties[pi].Value
				}
			}

			if _, ok := result[layerID]; !ok {
				seeded := make(propertyMap)
				for k, v := range result[wildcardLayerName] {
					seeded[k] = v
				}
				result[layerID] = seeded
			}
			mergeInto(result[layerID])

			if layerID == wildcardLayerName {
				for name, layer := range result {
					if name != wildcardLayerName {
						mergeInto(layer)
					}
				}
			}
		}
	}

	return result
}

func selectorMatches(target StyleTarget, sel *Selector, zoom uint8) bool {
	if sel.MinZoom != nil && zoom < *sel.MinZoom {
		return false
	}
	if sel.MaxZoom != nil && zoom > *sel.MaxZoom {
		return false
	}
	if !target.MatchesObjectType(sel.ObjectType) {
		return false
	}
	for _, test := range sel.Tests {
		if !test.Matches(target.Tags()) {
			return false
		}
	}
	return true
}

func (s *Styler) propsToStyle(layerName string, props, baseProps propertyMap, target StyleTarget) *Style {
	warn := func(propName, msg string) {
		if _, ok := props[propName]; ok {
			s.logger.Warn("ignoring style property",
				"entity", target.GlobalID(), "property", propName, "reason", msg)
		}
	}

	getColor := func(propName string) *Color {
		switch v := props[propName].(type) {
		case Color:
			c := v
			return &c
		case Identifier:
			if c, ok := FromColorName(string(v)); ok {
				return &c
			}
			warn(propName, "unknown color")
			return nil
		default:
			warn(propName, "expected a valid color")
			return nil
		}
	}

	getNum := func(from propertyMap, propName string) *float64 {
		if nums, ok := from[propName].(Numbers); ok && len(nums) == 1 {
			v := nums[0]
			return &v
		}
		if _, ok := from[propName]; ok {
			s.logger.Warn("ignoring style property",
				"entity", target.GlobalID(), "property", propName, "reason", "expected a number")
		}
		return nil
	}

	getID := func(propName string) (string, bool) {
		if id, ok := props[propName].(Identifier); ok {
			return string(id), true
		}
		warn(propName, "expected an identifier")
		return "", false
	}

	getString := func(propName string) (string, bool) {
		switch v := props[propName].(type) {
		case Identifier:
			return string(v), true
		case StringValue:
			return string(v), true
		default:
			warn(propName, "expected a string")
			return "", false
		}
	}

	getLineCap := func(propName string) *LineCap {
		id, ok := getID(propName)
		if !ok {
			return nil
		}
		var cap LineCap
		switch id {
		case "none", "butt":
			cap = CapButt
		case "round":
			cap = CapRound
		case "square":
			cap = CapSquare
		default:
			warn(propName, "unknown line cap value")
			return nil
		}
		return &cap
	}

	getTextPosition := func(propName string) *TextPosition {
		id, ok := getID(propName)
		if !ok {
			return nil
		}
		var pos TextPosition
		switch id {
		case "center":
			pos = TextCenter
		case "line":
			pos = TextLine
		default:
			warn(propName, "unknown text position type")
			return nil
		}
		return &pos
	}

	getDashes := func(propName string) []float64 {
		if nums, ok := props[propName].(Numbers); ok {
			return append([]float64(nil), nums...)
		}
		warn(propName, "expected a sequence of numbers")
		return nil
	}

	zIndex := target.DefaultZIndex()
	if z := getNum(props, "z-index"); z != nil {
		zIndex = *z
	}

	isForegroundFill := true
	if id, ok := props["fill-position"].(Identifier); ok && id == "background" {
		isForegroundFill = false
	}

	width := getNum(props, "width")

	baseWidthForCasing := 0.0
	if width != nil {
		baseWidthForCasing = *width
	} else if baseProps != nil {
		if base := getNum(baseProps, "width"); base != nil {
			baseWidthForCasing = *base
		}
	}

	var casingOnlyWidth *float64
	switch v := props["casing-width"].(type) {
	case Numbers:
		if len(v) == 1 {
			w := v[0]
			casingOnlyWidth = &w
		} else {
			warn("casing-width", "expected a number or an eval(...) statement")
		}
	case WidthDelta:
		w := baseWidthForCasing + float64(v)
		casingOnlyWidth = &w
	default:
		warn("casing-width", "expected a number or an eval(...) statement")
	}

	var fullCasingWidth *float64
	if casingOnlyWidth != nil {
		w := baseWidthForCasing + s.casingWidthMultiplier*(*casingOnlyWidth)
		fullCasingWidth = &w
	}

	var fontSize *float64
	if size := getNum(props, "font-size"); size != nil {
		scaled := *size * s.fontSizeMultiplier
		fontSize = &scaled
	}

	var textStyle *TextStyle
	if textKey, ok := getString("text"); ok {
		if text, found := target.Tags().GetByKey(textKey); found {
			textStyle = &TextStyle{
				Text:         text,
				TextColor:    getColor("text-color"),
				TextPosition: getTextPosition("text-position"),
				FontSize:     fontSize,
			}
		}
	}

	var iconImage, fillImage string
	if img, ok := getString("icon-image"); ok {
		iconImage = img
	}
	if img, ok := getString("fill-image"); ok {
		fillImage = img
	}

	return &Style{
		Layer:  layerName,
		ZIndex: zIndex,

		Color:            getColor("color"),
		FillColor:        getColor("fill-color"),
		IsForegroundFill: isForegroundFill,
		BackgroundColor:  getColor("background-color"),
		Opacity:          getNum(props, "opacity"),
		FillOpacity:      getNum(props, "fill-opacity"),

		Width:   width,
		Dashes:  getDashes("dashes"),
		LineCap: getLineCap("linecap"),

		CasingColor:   getColor("casing-color"),
		CasingWidth:   fullCasingWidth,
		CasingDashes:  getDashes("casing-dashes"),
		CasingLineCap: getLineCap("casing-linecap"),

		IconImage: iconImage,
		FillImage: fillImage,
		TextStyle: textStyle,
	}
}

func extractCanvasFillColor(rules []Rule, styleType StyleType) *Color {
	colorProp := "fill-color"
	if styleType == StyleMapsMe {
		colorProp = "background-color"
	}

	for ri := range rules {
		rule := &rules[ri]
		for _, sel := range rule.Selectors {
			if sel.ObjectType != ObjectCanvas {
				continue
			}
			for _, prop := range rule.Properties {
				if prop.Name != colorProp {
					continue
				}
				if c, ok := prop.Value.(Color); ok {
					return &c
				}
			}
		}
	}
	return nil
}
