package mediatypes

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Class
	}{
		{name: "MP4 video", path: "movies/a.mp4", want: ClassPlayable},
		{name: "upper case extension", path: "movies/A.MP4", want: ClassPlayable},
		{name: "WebM video", path: "b.webm", want: ClassPlayable},
		{name: "MKV needs conversion", path: "c.mkv", want: ClassConvertible},
		{name: "AVI needs conversion", path: "dir/d.avi", want: ClassConvertible},
		{name: "unknown extension is convertible", path: "e.xyz", want: ClassConvertible},
		{name: "JPEG is hidden", path: "photos/f.jpg", want: ClassHidden},
		{name: "subtitle is hidden", path: "g.srt", want: ClassHidden},
		{name: "no extension is playable", path: "clips/raw", want: ClassPlayable},
		{name: "dot in directory only", path: "v1.2/raw", want: ClassPlayable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsPlayableAndAutoHidden(t *testing.T) {
	if !IsPlayable("a.mov") {
		t.Error("IsPlayable(a.mov) = false, want true")
	}
	if IsPlayable("a.mkv") {
		t.Error("IsPlayable(a.mkv) = true, want false")
	}
	if !AutoHidden("a.png") {
		t.Error("AutoHidden(a.png) = false, want true")
	}
	if AutoHidden("a.mkv") {
		t.Error("AutoHidden(a.mkv) = true, want false")
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".mp4", "video/mp4"},
		{".MKV", "video/x-matroska"},
		{".jpg", "image/jpeg"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}
