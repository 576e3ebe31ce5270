// Package logging configures the castbridge slog logger.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console
//	  output: "stdout"   # stdout, stderr
//
// json and text entries carry service=castbridge and the build version.
// console is a compact coloured line format used by the one-shot commands.
// Packages tag their entries with Component, e.g.
//
//	log.Component("samsung").Debug("key sent", "key", "KEY_MUTE")
package logging
