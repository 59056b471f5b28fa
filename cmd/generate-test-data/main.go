package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/disintegration/imaging"
)

// fixture is one line of the generated manifest.
type fixture struct {
	File     string  `json:"file"`
	HasPlate bool    `json:"has_plate"`
	Angle    float64 `json:"angle,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir   = flag.String("out", "testdata/plates", "output directory")
		count    = flag.Int("count", 8, "number of plate photos")
		blanks   = flag.Int("blanks", 2, "number of photos without a plate")
		maxAngle = flag.Float64("max-angle", 8, "maximum rotation of plate photos in degrees")
		seed     = flag.Uint64("seed", 1, "random seed")
		help     = flag.Bool("h", false, "Show help")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic yellow plate photos for platescan.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                       # 8 plates and 2 blanks in testdata/plates\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -count 50 -seed 7     # a larger, different set\n", os.Args[0])
	}
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	fixtures, err := generate(*outDir, *count, *blanks, *maxAngle, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))
	if err != nil {
		slog.Error("Failed to generate test data", "error", err)
		os.Exit(1)
	}
	if err := writeManifest(filepath.Join(*outDir, "manifest.json"), fixtures); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", *outDir, "images", len(fixtures))
}

func generate(dir string, count, blanks int, maxAngle float64, rng *rand.Rand) ([]fixture, error) {
	var out []fixture
	for i := range count {
		spec := testutil.DefaultPlateSpec()
		w := 160 + rng.IntN(80)
		h := w / 2
		x := 20 + rng.IntN(spec.Width-w-40)
		y := 20 + rng.IntN(spec.Height-h-40)
		spec.Plate = image.Rect(x, y, x+w, y+h)

		var img image.Image = testutil.RenderPlate(spec)
		angle := 0.0
		if maxAngle > 0 {
			angle = (rng.Float64()*2 - 1) * maxAngle
			img = imaging.Rotate(img, angle, testutil.Asphalt)
		}
		name := fmt.Sprintf("plate_%02d.png", i+1)
		if err := utils.SavePNG(img, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		out = append(out, fixture{File: name, HasPlate: true, Angle: angle})
	}
	for i := range blanks {
		gray := uint8(60 + rng.IntN(120))
		img := testutil.Blank(320, 240, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		name := fmt.Sprintf("blank_%02d.png", i+1)
		if err := utils.SavePNG(img, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		out = append(out, fixture{File: name})
	}
	return out, nil
}

func writeManifest(path string, fixtures []fixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
