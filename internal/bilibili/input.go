package bilibili

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// InputKind identifies what a command-line input refers to.
type InputKind int

const (
	InputFile InputKind = iota
	InputFolder
	InputBV
	InputSeason
	InputEpisode
)

func (k InputKind) String() string {
	switch k {
	case InputFile:
		return "file"
	case InputFolder:
		return "folder"
	case InputBV:
		return "bv"
	case InputSeason:
		return "season"
	case InputEpisode:
		return "episode"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// Input is a parsed conversion input.
//
// Path is set for files and folders, BV and Page for videos (Page 0 means
// every page), ID for seasons and episodes.
type Input struct {
	Kind InputKind
	Path string
	BV   string
	Page int
	ID   uint64
}

// ParseInput classifies s as a URL, a bare video/season/episode id, or a local path.
//
// Accepted URLs:
//
//	https://www.bilibili.com/video/BV1z44y1E7m6?p=2
//	https://www.bilibili.com/bangumi/play/ss28296
//	https://www.bilibili.com/bangumi/play/ep473502
func ParseInput(s string) (Input, error) {
	if strings.HasPrefix(s, "http") {
		if u, err := url.Parse(s); err == nil {
			return inputFromURL(u)
		}
	}

	if isASCIIAlnum(s) {
		if strings.HasPrefix(s, "BV") {
			return Input{Kind: InputBV, BV: s}, nil
		}
		if in, err := parseSeasonOrEpisode(s); err == nil {
			return in, nil
		}
	}

	if info, err := os.Stat(s); err == nil && info.IsDir() {
		return Input{Kind: InputFolder, Path: s}, nil
	}
	return Input{Kind: InputFile, Path: s}, nil
}

func inputFromURL(u *url.URL) (Input, error) {
	if u.Hostname() != "www.bilibili.com" {
		return Input{}, fmt.Errorf("unsupported domain %q", u.Hostname())
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch segments[0] {
	case "video":
		if len(segments) < 2 || segments[1] == "" {
			return Input{}, fmt.Errorf("missing BV id in %q", u.String())
		}
		in := Input{Kind: InputBV, BV: segments[1]}
		if p := u.Query().Get("p"); p != "" {
			if page, err := strconv.Atoi(p); err == nil && page > 0 {
				in.Page = page
			}
		}
		return in, nil
	case "bangumi":
		if len(segments) < 3 || segments[1] != "play" {
			return Input{}, fmt.Errorf("invalid bangumi URL %q, expected bangumi/play/ss123 or bangumi/play/ep123", u.String())
		}
		return parseSeasonOrEpisode(segments[2])
	default:
		return Input{}, fmt.Errorf("unsupported URL %q, expected video/BV..., bangumi/play/ss... or bangumi/play/ep...", u.String())
	}
}

func parseSeasonOrEpisode(s string) (Input, error) {
	var kind InputKind
	switch {
	case strings.HasPrefix(s, "ss"):
		kind = InputSeason
	case strings.HasPrefix(s, "ep"):
		kind = InputEpisode
	default:
		return Input{}, fmt.Errorf("unsupported id %q, only ss123 and ep123 are supported", s)
	}

	id, err := strconv.ParseUint(s[2:], 10, 64)
	if err != nil {
		return Input{}, fmt.Errorf("failed to parse id %q: %w", s, err)
	}
	return Input{Kind: kind, ID: id}, nil
}

func isASCIIAlnum(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}
