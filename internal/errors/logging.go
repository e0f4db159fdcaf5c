package errors

import (
	"github.com/sirupsen/logrus"
)

// LogError logs an error with the structured context carried by AppError
func LogError(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	buildEntry(logger, err, fields...).Error(message)
}

// LogWarn logs a warning with the structured context carried by AppError
func LogWarn(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	buildEntry(logger, err, fields...).Warn(message)
}

// LogRetryableError logs a retryable error at warn level, non-retryable at error level
func LogRetryableError(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	if IsRetryable(err) {
		LogWarn(logger, err, message, fields...)
	} else {
		LogError(logger, err, message, fields...)
	}
}

func buildEntry(logger *logrus.Logger, err error, fields ...logrus.Fields) *logrus.Entry {
	entry := logger.WithError(err)

	if appErr, ok := err.(*AppError); ok {
		entry = entry.WithFields(logrus.Fields{
			"error_code": appErr.Code,
			"retryable":  appErr.Retryable,
		})
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}

	for _, field := range fields {
		entry = entry.WithFields(field)
	}
	return entry
}
