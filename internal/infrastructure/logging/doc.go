// Package logging provides the daemon's structured logger.
//
// Every entry carries service=birdhouse and the build version; components
// add component=<name> through Logger.Component. The same *Logger satisfies
// the small Logger interfaces the domain packages declare.
//
// Configured by the logging section of birdhouse.yaml:
//
//	logging:
//	  level: info       # debug, info, warn, error
//	  format: json      # json, text
//	  output: stdout    # stdout, stderr, or a file path (appended)
package logging
