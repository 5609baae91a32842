package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, map[string]string{"username": "mr-chu", "role": "teacher"})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"), "encoder should end with a newline")
	assert.Contains(t, out, `  "username": "mr-chu"`, "output should be two-space indented")
	assert.Contains(t, out, `  "role": "teacher"`)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, map[string]any{
		"room_id": "net-101",
		"participants": []map[string]string{
			{"username": "anna"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "room_id: net-101")
	assert.Contains(t, out, "participants:")
	assert.Contains(t, out, "- username: anna")
}

func TestPrintYAMLUnsupportedValue(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, map[string]any{"fn": func() {}})
	assert.Error(t, err)
}
