package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// ConfigureLogger sets the global logrus formatter and level for the process.
func ConfigureLogger(environment, level string) {
	logrus.SetOutput(os.Stdout)
	if environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// Logger returns an entry tagged with the component name.
func Logger(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// Fields promoted to Sentry tags so reports can be searched by record.
var sentryTagFields = []string{"lead_id", "load_id", "user_id"}

// LogError reports a failure of component to the log and to Sentry. Record
// ids in fields become Sentry tags; the rest ride along as extras.
func LogError(component, errorType string, err error, fields logrus.Fields) {
	Logger(component).
		WithFields(fields).
		WithField("error_type", errorType).
		WithError(err).
		Error("Operation failed")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			if isTagField(k) {
				scope.SetTag(k, fmt.Sprint(v))
				continue
			}
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent records a notable domain event and leaves a breadcrumb for any
// later Sentry report.
func LogEvent(component, eventType string, fields logrus.Fields) {
	Logger(component).
		WithFields(fields).
		WithField("event_type", eventType).
		Info("Event recorded")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  component + "." + eventType,
		Data:      fields,
		Timestamp: time.Now(),
	})
}

func isTagField(k string) bool {
	for _, f := range sentryTagFields {
		if f == k {
			return true
		}
	}
	return false
}
