// Package media defines the quality ladder for multi-rendition output and
// bitrate parsing shared by the pipeline and playlist assembly.
package media

import (
	"regexp"
	"strconv"
	"strings"
)

// Tier describes one output quality: scaling, rate control, and codec
// constraints for an ffmpeg compression pass.
type Tier struct {
	Name            string
	Width           int
	Height          int
	Scale           string
	Bitrate         string
	MaxRate         string
	BufSize         string
	AudioBitrate    string
	AudioSampleRate int
	Profile         string
	Level           string
}

// DefaultTiers returns the four-step quality ladder, highest first. Playlist
// assembly preserves this order.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:         "480p",
			Width:        854,
			Height:       480,
			Scale:        "854:480",
			Bitrate:      "800k",
			MaxRate:      "900k",
			BufSize:      "1600k",
			AudioBitrate: "96k",
			Profile:      "main",
			Level:        "3.1",
		},
		{
			Name:         "360p",
			Width:        640,
			Height:       360,
			Scale:        "640:360",
			Bitrate:      "600k",
			MaxRate:      "700k",
			BufSize:      "1200k",
			AudioBitrate: "96k",
			Profile:      "main",
			Level:        "3.0",
		},
		{
			Name:         "240p",
			Width:        426,
			Height:       240,
			Scale:        "426:240",
			Bitrate:      "400k",
			MaxRate:      "500k",
			BufSize:      "800k",
			AudioBitrate: "64k",
			Profile:      "baseline",
			Level:        "3.0",
		},
		{
			Name:            "144p",
			Width:           256,
			Height:          144,
			Scale:           "256:144",
			Bitrate:         "200k",
			MaxRate:         "250k",
			BufSize:         "400k",
			AudioBitrate:    "64k",
			AudioSampleRate: 22050,
			Profile:         "baseline",
			Level:           "3.0",
		},
	}
}

// DefaultBitrate is the bits-per-second fallback when a bitrate string
// cannot be parsed.
const DefaultBitrate = 96000

var (
	bitratePattern = regexp.MustCompile(`^([\d.]+)([KM])?$`)
	digitsPattern  = regexp.MustCompile(`\d+`)
)

// ParseBitrate converts a bitrate string to bits per second. Suffixes k/K
// mean x1000 and m/M mean x1,000,000; bare numbers are taken as already in
// bps. Unparsable values fall back to DefaultBitrate.
func ParseBitrate(value string) int {
	normalized := strings.ToUpper(strings.TrimSpace(value))

	if match := bitratePattern.FindStringSubmatch(normalized); match != nil {
		parsed, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			switch match[2] {
			case "M":
				return int(parsed * 1_000_000)
			case "K":
				return int(parsed * 1_000)
			default:
				return int(parsed)
			}
		}
	}

	if digits := digitsPattern.FindString(normalized); digits != "" {
		if parsed, err := strconv.Atoi(digits); err == nil && parsed > 0 {
			return parsed
		}
	}
	return DefaultBitrate
}

// Bandwidth returns the advertised HLS bandwidth for a tier: configured
// video plus audio bitrate in bits per second.
func (t Tier) Bandwidth() int {
	return ParseBitrate(t.Bitrate) + ParseBitrate(t.AudioBitrate)
}
