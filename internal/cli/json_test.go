package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightJSON_Disabled(t *testing.T) {
	SetEnabled(false)
	t.Cleanup(func() { SetEnabled(true) })

	in := `{"success":true,"response":"hi"}`
	assert.Equal(t, in, HighlightJSON(in))
	assert.Equal(t, "bridge", Banner("bridge"))
}

func TestHighlightJSON_ColorsTokens(t *testing.T) {
	SetEnabled(true)

	out := HighlightJSON(`{"count":3,"ok":false,"err":null}`)
	assert.Contains(t, out, Blue+`"count"`+ResetCode+":")
	assert.Contains(t, out, Purple+"3"+ResetCode)
	assert.Contains(t, out, Yellow+"false"+ResetCode)
	assert.Contains(t, out, DimCode+"null"+ResetCode)
}

func TestPrettyFormat_IndentsRawJSON(t *testing.T) {
	SetEnabled(false)
	t.Cleanup(func() { SetEnabled(true) })

	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyFormat([]byte(`{"a":1}`)))
	assert.Equal(t, "not json", PrettyFormat("not json"))
	assert.Equal(t, "{\n  \"b\": \"x\"\n}", PrettyFormat(map[string]string{"b": "x"}))
}

func TestFprint_KeepsKeyOrder(t *testing.T) {
	SetEnabled(false)
	t.Cleanup(func() { SetEnabled(true) })

	var out strings.Builder
	Fprint(&out, `{"success":false,"error":"Prompt is required"}`)
	assert.Equal(t, "{\n  \"success\": false,\n  \"error\": \"Prompt is required\"\n}\n", out.String())
}
