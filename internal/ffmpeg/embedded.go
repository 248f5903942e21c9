//go:build ffmpeg_embedded

package ffmpeg

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// release archives dropped into assets/ before building with
// -tags ffmpeg_embedded
//
//go:embed assets/*
var bundles embed.FS

func openEmbeddedAsset(name string) (io.ReadCloser, bool, error) {
	f, err := bundles.Open(path.Join("assets", name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("open bundled %s: %w", name, err)
	}
	return f, true, nil
}
