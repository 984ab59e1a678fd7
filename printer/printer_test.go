package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	oldOut, oldErr, oldNoColor := Out, Err, color.NoColor
	Out, Err, color.NoColor = out, errOut, true
	t.Cleanup(func() { Out, Err, color.NoColor = oldOut, oldErr, oldNoColor })
	return out, errOut
}

func TestSuccessAndWarningPrefixes(t *testing.T) {
	out, _ := capture(t)

	Success("loaded %d steps\n", 4)
	Success("✓ already marked\n")
	Warning("no fixtures\n")
	Step("connecting\n")
	Info("plain %s\n", "text")

	assert.Equal(t, "✓ loaded 4 steps\n✓ already marked\n⚠️  no fixtures\n→ connecting\nplain text\n", out.String())
}

func TestError(t *testing.T) {
	_, errOut := capture(t)

	err := Error("Playlist invalid", "type must be ble2led", []string{"fix the file", "pick another file"})
	assert.EqualError(t, err, "Playlist invalid")
	assert.Contains(t, errOut.String(), "Playlist invalid\n\ntype must be ble2led\n")
	assert.Contains(t, errOut.String(), "Either:\n  1. fix the file\n  2. pick another file\n")

	errOut.Reset()
	Error("Boom", "", []string{"retry"})
	assert.Equal(t, "Boom\n\n\nretry\n", errOut.String())
}
