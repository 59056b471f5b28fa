package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

// dumper writes numbered intermediate frames of one image. The zero value
// discards everything.
type dumper struct {
	dir    string
	number int
	logger *slog.Logger
}

func (p *Pipeline) newDumper(index int) dumper {
	return dumper{dir: p.cfg.DebugDir, number: index + 1, logger: p.logger}
}

// save writes img as <number>_<name>.png. Failures are logged and ignored.
func (d dumper) save(name string, img image.Image) {
	if d.dir == "" || img == nil {
		return
	}
	path := filepath.Join(d.dir, fmt.Sprintf("%d_%s.png", d.number, name))
	if err := utils.SavePNG(img, path); err != nil {
		d.logger.Warn("Failed to write debug frame", "path", path, "error", err)
		return
	}
	d.logger.Debug("Debug frame written", "path", path)
}

// render is save for frames that only exist for debugging; build is not called
// when dumping is off.
func (d dumper) render(name string, build func() image.Image) {
	if d.dir == "" {
		return
	}
	d.save(name, build())
}
