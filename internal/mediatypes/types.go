package mediatypes

import (
	"path"
	"strings"
)

// Class describes how a library entry is presented and processed.
type Class string

const (
	// ClassPlayable files play natively and get previews.
	ClassPlayable Class = "playable"
	// ClassConvertible files are retained but need conversion before playback.
	ClassConvertible Class = "convertible"
	// ClassHidden files are retained for organization and hidden on discovery.
	ClassHidden Class = "hidden"
)

// PlayableExtensions lists formats that play without conversion.
var PlayableExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
	".mov":  true,
	".ogv":  true,
	".ogg":  true,
}

// NonConvertibleExtensions lists formats that are never video. Entries with
// these extensions are auto-hidden rather than excluded.
var NonConvertibleExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".txt":  true,
	".nfo":  true,
	".srt":  true,
	".vtt":  true,
	".pdf":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".ogv":  "video/ogg",
	".ogg":  "video/ogg",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Ext returns the lowercase extension of a slash-separated relative path,
// including the leading dot, or "" when there is none.
func Ext(relPath string) string {
	return strings.ToLower(path.Ext(relPath))
}

// Classify returns the Class for a relative path.
func Classify(relPath string) Class {
	ext := Ext(relPath)
	switch {
	case ext == "":
		return ClassPlayable
	case PlayableExtensions[ext]:
		return ClassPlayable
	case NonConvertibleExtensions[ext]:
		return ClassHidden
	default:
		return ClassConvertible
	}
}

// IsPlayable reports whether a path is natively playable.
func IsPlayable(relPath string) bool {
	return Classify(relPath) == ClassPlayable
}

// AutoHidden reports whether a newly discovered path starts out hidden.
func AutoHidden(relPath string) bool {
	return Classify(relPath) == ClassHidden
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}
