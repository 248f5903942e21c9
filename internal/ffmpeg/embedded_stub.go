//go:build !ffmpeg_embedded

package ffmpeg

import "io"

// without the ffmpeg_embedded tag there is no bundled archive
func openEmbeddedAsset(string) (io.ReadCloser, bool, error) {
	return nil, false, nil
}
