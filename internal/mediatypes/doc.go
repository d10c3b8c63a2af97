// Package mediatypes classifies library files by extension.
//
// This package is a dependency-free foundation that other packages import
// without creating cycles. It answers three questions about a path:
//
//	mediatypes.Classify("a/b.mp4")  // ClassPlayable: plays natively
//	mediatypes.Classify("a/b.mkv")  // ClassConvertible: kept, needs conversion
//	mediatypes.Classify("a/b.jpg")  // ClassHidden: kept but hidden by default
//
// Files without an extension are treated as playable on a best-effort basis.
// Extensions are matched case-insensitively.
package mediatypes
