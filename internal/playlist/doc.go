// Package playlist reads and writes playlist documents.
//
// Two formats are supported:
//   - JSON: an array of record identifier strings, the library's own format
//   - WPL (Windows Playlist): XML as written by Windows Media Player, whose
//     media sources are file paths
//
// WPL sources may be UNC paths (\\server\share\file.mp4), drive-letter paths
// (C:\folder\file.mp4) or relative paths (../folder/file.mp4). Resolve maps
// them onto library-relative paths by progressive suffix matching, then by
// unique file name.
package playlist
