package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dentalos/dentalos/internal/domain/imaging"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".dcm":  true,
}

// GenericAdapter scans a plain drop folder: loose image files with no
// manifest and no identity hints. Everything it finds goes straight to the
// unassigned queue for manual handling.
type GenericAdapter struct {
	root string
}

func NewGenericAdapter(root string) *GenericAdapter {
	return &GenericAdapter{root: root}
}

func (a *GenericAdapter) Vendor() string { return "generic" }

func (a *GenericAdapter) Scan(ctx context.Context) ([]imaging.IncomingStudy, []imaging.IncomingImage, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, nil, fmt.Errorf("read drop folder %s: %w", a.root, err)
	}

	var images []imaging.IncomingImage
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		images = append(images, imaging.IncomingImage{
			Filename:   entry.Name(),
			FilePath:   filepath.Join(a.root, entry.Name()),
			DetectedAt: time.Now().UTC(),
		})
	}
	return nil, images, nil
}

// ForVendor builds the adapter registered for a configured vendor tag.
func ForVendor(vendor, path string) (Adapter, error) {
	switch vendor {
	case "triana":
		return NewTrianaAdapter(path), nil
	case "carestream":
		return NewCarestreamAdapter(path), nil
	case "generic":
		return NewGenericAdapter(path), nil
	default:
		return nil, fmt.Errorf("unknown study source vendor %q", vendor)
	}
}
