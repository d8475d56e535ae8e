package navigation

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	pathIDRe = regexp.MustCompile(`/(?:watch|embed|shorts|live|v)/([\w-]+)`)
	videoIDs = []string{"v", "vi", "video_id"}
)

// ExtractVideoID derives a stable media identity from a URL or a local path.
//
//	https://www.youtube.com/watch?v=dQw4w9WgXcQ -> dQw4w9WgXcQ
//	https://youtu.be/dQw4w9WgXcQ?t=42          -> dQw4w9WgXcQ
//	https://example.com/embed/abc123           -> abc123
//	file:///home/me/movie.mkv                  -> /home/me/movie.mkv
//	./movie.mkv                                -> movie.mkv
//
// Unrecognized URLs identify themselves without query and fragment.
// An empty input has no identity.
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain paths, including windows drive letters
		return filepath.Clean(raw)
	}

	switch u.Scheme {
	case "file":
		return filepath.Clean(u.Path)
	case "http", "https":
	default:
		return strings.TrimPrefix(u.Opaque+u.Host+u.Path, "//")
	}

	query := u.Query()
	if id, ok := lo.Find(videoIDs, func(k string) bool { return query.Get(k) != "" }); ok {
		return query.Get(id)
	}

	if strings.TrimPrefix(u.Hostname(), "www.") == "youtu.be" {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return strings.SplitN(id, "/", 2)[0]
		}
	}

	if m := pathIDRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}

	return u.Host + strings.TrimSuffix(u.Path, "/")
}
