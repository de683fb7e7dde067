package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/media"
)

// writeMasterPlaylist assembles master.m3u8 referencing every rendition
// playlist that exists on disk, in ladder order. It fails when no rendition
// playlists survived segmentation.
func writeMasterPlaylist(outputDir string, tiers []media.Tier) (string, error) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	var included int
	for _, tier := range tiers {
		playlist := tier.Name + ".m3u8"
		if _, err := os.Stat(filepath.Join(outputDir, playlist)); err != nil {
			continue
		}
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d,NAME=\"%s\"\n",
			tier.Bandwidth(), tier.Width, tier.Height, tier.Name)
		b.WriteString(playlist)
		b.WriteString("\n")
		included++
	}

	if included == 0 {
		return "", newError(KindPlaylist, nil, "no rendition playlists available in %s", outputDir)
	}

	path := filepath.Join(outputDir, "master.m3u8")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", newError(KindPlaylist, err, "writing master playlist")
	}
	return path, nil
}
