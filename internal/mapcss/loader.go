package mapcss

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// The MapCSS toolchain compiles a .mapcss stylesheet into a JSON rule list;
// this file reads that compiled form. The textual dialect itself is not
// parsed here.

type jsonStylesheet struct {
	Rules []jsonRule `json:"rules"`
}

type jsonRule struct {
	Selectors  []jsonSelector `json:"selectors"`
	Properties []jsonProperty `json:"properties"`
}

type jsonSelector struct {
	Object  string     `json:"object"`
	MinZoom *uint8     `json:"minZoom,omitempty"`
	MaxZoom *uint8     `json:"maxZoom,omitempty"`
	Layer   string     `json:"layer,omitempty"`
	Tests   []jsonTest `json:"tests,omitempty"`
}

type jsonTest struct {
	Tag   string  `json:"tag"`
	Op    string  `json:"op"`
	Value string  `json:"value,omitempty"`
	Num   float64 `json:"num,omitempty"`
}

type jsonProperty struct {
	Name       string    `json:"name"`
	Identifier *string   `json:"identifier,omitempty"`
	String     *string   `json:"string,omitempty"`
	Numbers    []float64 `json:"numbers,omitempty"`
	Color      *string   `json:"color,omitempty"`
	WidthDelta *float64  `json:"widthDelta,omitempty"`
}

// LoadRules reads a compiled stylesheet from r.
func LoadRules(r io.Reader) ([]Rule, error) {
	var sheet jsonStylesheet
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sheet); err != nil {
		return nil, fmt.Errorf("failed to decode stylesheet: %w", err)
	}

	rules := make([]Rule, 0, len(sheet.Rules))
	for i, jr := range sheet.Rules {
		rule, err := jr.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRulesFile reads a compiled stylesheet from a file path.
func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stylesheet %s: %w", path, err)
	}
	defer f.Close()

	rules, err := LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func (jr jsonRule) toRule() (Rule, error) {
	var rule Rule
	for _, js := range jr.Selectors {
		sel, err := js.toSelector()
		if err != nil {
			return rule, err
		}
		rule.Selectors = append(rule.Selectors, sel)
	}
	for _, jp := range jr.Properties {
		prop, err := jp.toProperty()
		if err != nil {
			return rule, err
		}
		rule.Properties = append(rule.Properties, prop)
	}
	return rule, nil
}

func (js jsonSelector) toSelector() (Selector, error) {
	sel := Selector{
		MinZoom: js.MinZoom,
		MaxZoom: js.MaxZoom,
		LayerID: js.Layer,
	}

	switch js.Object {
	case "node":
		sel.ObjectType = ObjectNode
	case "way":
		sel.ObjectType = ObjectWay
	case "area":
		sel.ObjectType = ObjectArea
	case "canvas":
		sel.ObjectType = ObjectCanvas
	case "meta":
		sel.ObjectType = ObjectMeta
	default:
		return sel, fmt.Errorf("unknown object type %q", js.Object)
	}

	for _, jt := range js.Tests {
		test, err := jt.toTest()
		if err != nil {
			return sel, err
		}
		sel.Tests = append(sel.Tests, test)
	}
	return sel, nil
}

func (jt jsonTest) toTest() (Test, error) {
	switch jt.Op {
	case "exists":
		return UnaryTest{Tag: jt.Tag, Type: TestExists}, nil
	case "!exists":
		return UnaryTest{Tag: jt.Tag, Type: TestNotExists}, nil
	case "true":
		return UnaryTest{Tag: jt.Tag, Type: TestTrue}, nil
	case "false":
		return UnaryTest{Tag: jt.Tag, Type: TestFalse}, nil
	case "=":
		return StringTest{Tag: jt.Tag, Type: TestEqual, Value: jt.Value}, nil
	case "!=":
		return StringTest{Tag: jt.Tag, Type: TestNotEqual, Value: jt.Value}, nil
	case "<":
		return NumericTest{Tag: jt.Tag, Type: TestLess, Value: jt.Num}, nil
	case "<=":
		return NumericTest{Tag: jt.Tag, Type: TestLessOrEqual, Value: jt.Num}, nil
	case ">":
		return NumericTest{Tag: jt.Tag, Type: TestGreater, Value: jt.Num}, nil
	case ">=":
		return NumericTest{Tag: jt.Tag, Type: TestGreaterOrEqual, Value: jt.Num}, nil
	}
	return nil, fmt.Errorf("unknown test op %q", jt.Op)
}

func (jp jsonProperty) toProperty() (Property, error) {
	prop := Property{Name: jp.Name}

	set := 0
	if jp.Identifier != nil {
		prop.Value = Identifier(*jp.Identifier)
		set++
	}
	if jp.String != nil {
		prop.Value = StringValue(*jp.String)
		set++
	}
	if jp.Numbers != nil {
		prop.Value = Numbers(jp.Numbers)
		set++
	}
	if jp.Color != nil {
		c, err := ParseHexColor(*jp.Color)
		if err != nil {
			return prop, fmt.Errorf("property %s: %w", jp.Name, err)
		}
		prop.Value = c
		set++
	}
	if jp.WidthDelta != nil {
		prop.Value = WidthDelta(*jp.WidthDelta)
		set++
	}

	if set != 1 {
		return prop, fmt.Errorf("property %s must set exactly one value kind", jp.Name)
	}
	return prop, nil
}
