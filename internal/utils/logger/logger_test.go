package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLevelForEnvironment(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, LevelForEnvironment("dev"))
	assert.Equal(t, zerolog.TraceLevel, LevelForEnvironment("TEST"))
	assert.Equal(t, zerolog.InfoLevel, LevelForEnvironment("prod"))
	assert.Equal(t, zerolog.InfoLevel, LevelForEnvironment(""))
	assert.Equal(t, zerolog.InfoLevel, LevelForEnvironment("staging"))
}

func TestInitLoggerLevelOverride(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	initLogger(&buf, "prod", "warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("hidden")
	log.Warn().Str("rule", "borda").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "borda")

	initLogger(&buf, "dev", "not-a-level")
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())
}
