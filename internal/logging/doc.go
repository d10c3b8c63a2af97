// Package logging provides a leveled logging interface for the media
// library.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// Output goes to stderr through zap; Configure adds a rotating log file
// (lumberjack) alongside the console output.
package logging
