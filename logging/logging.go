package logging

import "go.uber.org/zap"

// New creates a zap logger for the environment: production logs json at info level,
// development logs to the console at debug level and anything else gets the example
// logger.
func New(environment string) (*zap.Logger, error) {
	switch environment {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}
