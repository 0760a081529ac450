package native

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/guidoenr/reflectube/internal/media"
)

// LoadThumbnail decodes the image at path into a static media source named
// after the file.
func LoadThumbnail(path string) (*media.Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = format
	}
	return media.NewStatic(name, img), nil
}
