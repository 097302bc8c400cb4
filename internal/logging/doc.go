// Package logging provides a simple leveled logging interface for the
// media index service.
//
// Levels, in ascending severity: DEBUG, INFO, WARN, ERROR, FATAL. The
// active level comes from the LOG_LEVEL environment variable; setting
// DEBUG=true forces debug output regardless of LOG_LEVEL. The level is
// resolved once at first use.
package logging
