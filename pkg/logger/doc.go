// Package logger builds configured log/slog loggers for the service.
//
// Production setups use the JSON handler for log aggregation, development
// setups use the text handler at debug level. Static attributes such as the
// service name are attached to every record.
//
//	log := logger.New(logger.WithProduction("notifyd"))
//	logger.SetAsDefault(log)
package logger
