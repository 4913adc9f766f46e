package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ProductionWritesJSON(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	setup("production", &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("lot_id", "abc").Msg("Lot imported")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Lot imported", line["message"])
	assert.Equal(t, "abc", line["lot_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetup_DevelopmentLogsDebug(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	setup("development", &buf)
	log.Debug().Msg("sweep skipped")
	assert.Contains(t, buf.String(), "sweep skipped")
}
