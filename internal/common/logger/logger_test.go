package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitWithWriter(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	InitWithWriter(&buf, "luna", false)
	buf.Reset()

	Debug().Msg("hidden")
	Info().Str("conn_id", "c1").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "| visible")
	assert.Contains(t, out, "service:luna")
	assert.Contains(t, out, "conn_id:c1")

	buf.Reset()
	InitWithWriter(&buf, "luna", true)
	Debug().Msg("now shown")
	assert.Contains(t, buf.String(), "| now shown")
}
