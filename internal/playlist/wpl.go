package playlist

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// WPL structure based on Windows Media Player playlist format
type WPL struct {
	XMLName xml.Name `xml:"smil"`
	Head    WPLHead  `xml:"head"`
	Body    WPLBody  `xml:"body"`
}

type WPLHead struct {
	Title string    `xml:"title"`
	Meta  []WPLMeta `xml:"meta"`
}

type WPLMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type WPLBody struct {
	Seq WPLSeq `xml:"seq"`
}

type WPLSeq struct {
	Media []WPLMedia `xml:"media"`
}

type WPLMedia struct {
	Src string `xml:"src,attr"`
}

// ParseWPL reads a WPL document and returns its title and media sources in
// order.
func ParseWPL(r io.Reader) (title string, sources []string, err error) {
	var wpl WPL
	if err := xml.NewDecoder(r).Decode(&wpl); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidPlaylist, err)
	}
	for _, m := range wpl.Body.Seq.Media {
		if m.Src != "" {
			sources = append(sources, m.Src)
		}
	}
	return strings.TrimSpace(wpl.Head.Title), sources, nil
}

// EncodeWPL writes a WPL document listing paths.
func EncodeWPL(w io.Writer, title string, paths []string) error {
	wpl := WPL{
		Head: WPLHead{
			Title: title,
			Meta:  []WPLMeta{{Name: "Generator", Content: "medialib"}},
		},
	}
	for _, p := range paths {
		wpl.Body.Seq.Media = append(wpl.Body.Seq.Media, WPLMedia{Src: strings.ReplaceAll(p, "/", "\\")})
	}

	if _, err := io.WriteString(w, "<?wpl version=\"1.0\"?>\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(wpl); err != nil {
		return err
	}
	return enc.Close()
}

// normalizeSource turns any WPL source into slash-separated components,
// dropping drive letters, UNC hosts and relative prefixes.
func normalizeSource(src string) []string {
	p := strings.ReplaceAll(src, "\\", "/")
	if strings.HasPrefix(p, "//") {
		// \\server\share\...
		parts := strings.SplitN(strings.TrimPrefix(p, "//"), "/", 3)
		if len(parts) == 3 {
			p = parts[2]
		} else {
			p = ""
		}
	}
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}

	var out []string
	for _, c := range strings.Split(path.Clean("/"+p), "/") {
		if c != "" && c != "." && c != ".." {
			out = append(out, c)
		}
	}
	return out
}

// Resolve maps WPL sources onto library paths. Each source is matched by
// the longest suffix of its path components that names a library path; if
// none does, by file name when exactly one library path has that name.
// Unresolved sources are returned separately.
func Resolve(sources, libraryPaths []string) (resolved, unresolved []string) {
	canonical := make(map[string]string, len(libraryPaths))
	byName := make(map[string][]string)
	for _, p := range libraryPaths {
		canonical[strings.ToLower(p)] = p
		name := strings.ToLower(path.Base(p))
		byName[name] = append(byName[name], p)
	}

	for _, src := range sources {
		parts := normalizeSource(src)
		if len(parts) == 0 {
			unresolved = append(unresolved, src)
			continue
		}

		match := ""
		for i := 0; i < len(parts); i++ {
			if p, ok := canonical[strings.ToLower(strings.Join(parts[i:], "/"))]; ok {
				match = p
				break
			}
		}
		if match == "" {
			if names := byName[strings.ToLower(parts[len(parts)-1])]; len(names) == 1 {
				match = names[0]
			}
		}

		if match == "" {
			unresolved = append(unresolved, src)
			continue
		}
		resolved = append(resolved, match)
	}
	return resolved, unresolved
}
