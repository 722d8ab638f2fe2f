package cmd

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/osmraster/internal/mbtiles"
	"github.com/MeKo-Tech/osmraster/internal/tile"
	"github.com/MeKo-Tech/osmraster/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a tile range into an MBTiles database",
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("output", "tiles.mbtiles", "Output MBTiles path")
	renderCmd.Flags().Int("min-zoom", 0, "Lowest zoom level to render")
	renderCmd.Flags().Int("max-zoom", 14, "Highest zoom level to render")
	renderCmd.Flags().String("bbox", "", "Bounding box minLon,minLat,maxLon,maxLat (default: whole world)")
	renderCmd.Flags().Int("scale", 1, "Render scale factor")
	renderCmd.Flags().Int("workers", runtime.NumCPU(), "Parallel render workers")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, renderCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("render.output", "output")
	mustBind("render.min-zoom", "min-zoom")
	mustBind("render.max-zoom", "max-zoom")
	mustBind("render.bbox", "bbox")
	mustBind("render.scale", "scale")
	mustBind("render.workers", "workers")
}

func runRender(cmd *cobra.Command, args []string) error {
	minZoom := viper.GetInt("render.min-zoom")
	maxZoom := viper.GetInt("render.max-zoom")
	if minZoom < 0 || maxZoom > tile.MaxZoom || minZoom > maxZoom {
		return fmt.Errorf("invalid zoom range %d..%d", minZoom, maxZoom)
	}

	bounds := [4]float64{-180, -85.0511, 180, 85.0511}
	if bbox := viper.GetString("render.bbox"); bbox != "" {
		parts := strings.Split(bbox, ",")
		if len(parts) != 4 {
			return fmt.Errorf("bbox needs exactly four values, got %d", len(parts))
		}
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return fmt.Errorf("invalid bbox value %q: %w", part, err)
			}
			bounds[i] = v
		}
	}

	tiles := tilesInBounds(bounds, minZoom, maxZoom)
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles in the given bounds")
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	scale := viper.GetInt("render.scale")
	if scale < 1 {
		scale = 1
	}

	output := viper.GetString("render.output")
	writer, err := mbtiles.NewWriter(output, mbtiles.Metadata{
		Name:    "osmraster",
		Format:  "png",
		Bounds:  bounds,
		MinZoom: minZoom,
		MaxZoom: maxZoom,
	})
	if err != nil {
		return err
	}
	defer writer.Close()

	logger.Info("rendering tile range",
		"tiles", len(tiles), "min_zoom", minZoom, "max_zoom", maxZoom, "output", output)

	progress := worker.NewProgress(logger, 5*time.Second)
	pool := worker.New(worker.Config{
		Workers: viper.GetInt("render.workers"),
		Render: func(_ context.Context, t tile.Tile) ([]byte, error) {
			entities := p.reader.GetEntitiesInTileWithNeighbors(t, nil)
			return p.drawer.DrawTile(entities, t, scale, p.styler)
		},
		OnProgress: progress.Callback(),
	})

	var writeErr error
	pool.Run(cmd.Context(), tiles, func(r worker.Result) {
		if r.Err != nil {
			logger.Error("failed to render tile", "tile", r.Tile.String(), "error", r.Err)
			return
		}
		if err := writer.WriteTile(int(r.Tile.Zoom), int(r.Tile.X), int(r.Tile.Y), r.Data); err != nil && writeErr == nil {
			writeErr = err
		}
	})

	return writeErr
}

// tilesInBounds lists the tiles covering a geographic bounding box across a
// zoom range.
func tilesInBounds(bounds [4]float64, minZoom, maxZoom int) []tile.Tile {
	var tiles []tile.Tile
	for z := minZoom; z <= maxZoom; z++ {
		minTile := maptile.At([2]float64{bounds[0], bounds[3]}, maptile.Zoom(z))
		maxTile := maptile.At([2]float64{bounds[2], bounds[1]}, maptile.Zoom(z))

		minX, maxX := minTile.X, maxTile.X
		if minX > maxX {
			minX, maxX = maxX, minX
		}
		minY, maxY := minTile.Y, maxTile.Y
		if minY > maxY {
			minY, maxY = maxY, minY
		}

		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, tile.Tile{Zoom: uint8(z), X: x, Y: y})
			}
		}
	}
	return tiles
}
