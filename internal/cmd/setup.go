package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/osmraster/internal/draw/fontrast"
	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
	"github.com/MeKo-Tech/osmraster/internal/renderer"
)

// pipeline bundles the long-lived rendering state shared by workers.
type pipeline struct {
	reader *geodata.Reader
	styler *mapcss.Styler
	drawer *renderer.Drawer
}

func (p *pipeline) close() {
	p.reader.Close()
}

// buildPipeline loads geodata, stylesheet and font per the active config.
func buildPipeline() (*pipeline, error) {
	geodataFile := viper.GetString("geodata.file")
	if geodataFile == "" {
		return nil, fmt.Errorf("geodata.file is not configured")
	}
	styleFile := viper.GetString("style.file")
	if styleFile == "" {
		return nil, fmt.Errorf("style.file is not configured")
	}

	var styleType mapcss.StyleType
	switch viper.GetString("style.type") {
	case "josm", "":
		styleType = mapcss.StyleJosm
	case "mapsme":
		styleType = mapcss.StyleMapsMe
	default:
		return nil, fmt.Errorf("unknown stylesheet type: %s", viper.GetString("style.type"))
	}

	rules, err := mapcss.LoadRulesFile(styleFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load stylesheet: %w", err)
	}

	reader, err := geodata.Open(geodataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load geodata: %w", err)
	}

	styler := mapcss.NewStyler(rules, styleType, viper.GetFloat64("style.font-mul"), logger)

	basePath := viper.GetString("style.base-path")
	if basePath == "" {
		basePath = filepath.Dir(styleFile)
	}

	var face fontrast.Face
	if fontPath := viper.GetString("style.font"); fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to read font %s: %w", fontPath, err)
		}
		sfntFace, err := fontrast.ParseFont(data)
		if err != nil {
			reader.Close()
			return nil, err
		}
		face = sfntFace
	} else {
		logger.Warn("no font configured, text labels are disabled", "key", "style.font")
	}

	return &pipeline{
		reader: reader,
		styler: styler,
		drawer: renderer.NewDrawer(basePath, face, logger),
	}, nil
}

// parseIDFilter converts trailing OSM ID arguments into a query filter.
func parseIDFilter(args []string) (geodata.IDFilter, error) {
	if len(args) == 0 {
		return nil, nil
	}
	filter := make(geodata.IDFilter, len(args))
	for _, arg := range args {
		var id uint64
		if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid OSM ID: %s", arg)
		}
		filter[id] = struct{}{}
	}
	return filter, nil
}
