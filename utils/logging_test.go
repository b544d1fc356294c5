package utils

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogErrorTagsComponent(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogError("email", "email_send_failed", errors.New("smtp down"), logrus.Fields{"lead_id": "lead-1"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "email", entry.Data["component"])
	assert.Equal(t, "email_send_failed", entry.Data["error_type"])
	assert.Equal(t, "lead-1", entry.Data["lead_id"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "smtp down")
}

func TestLogEventTagsComponent(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.InfoLevel)

	LogEvent("auth", "access_denied", logrus.Fields{"user_id": "u-1"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "auth", entry.Data["component"])
	assert.Equal(t, "access_denied", entry.Data["event_type"])
	assert.Equal(t, "u-1", entry.Data["user_id"])
	assert.True(t, isTagField("load_id"))
	assert.False(t, isTagField("path"))
}
