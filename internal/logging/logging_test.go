package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("DEBUG", "text").GetLevel())
	assert.Equal(t, logrus.WarnLevel, New("warn", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("nonsense", "").GetLevel())

	_, isJSON := New("info", "json").Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
