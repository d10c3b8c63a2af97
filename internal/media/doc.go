// Package media renders preview frames and reads durations from media files.
//
// The Probe interface is what the processing pipeline depends on. FFmpegProbe
// implements it with the external ffmpeg and ffprobe tools, falling back to
// exiftool for durations ffprobe cannot report. Extracted frames are scaled
// to thumbnail size with libvips when it has been initialized, otherwise with
// the imaging package.
package media
