// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("DIALWATCH_T_STRING", "value")
	t.Setenv("DIALWATCH_T_EMPTY", "")
	t.Setenv("DIALWATCH_T_INT", "42")
	t.Setenv("DIALWATCH_T_BADINT", "forty-two")
	t.Setenv("DIALWATCH_T_BOOL", "yes")
	t.Setenv("DIALWATCH_T_BADBOOL", "maybe")
	t.Setenv("DIALWATCH_T_DUR", "90s")
	t.Setenv("DIALWATCH_T_FLOAT", "0.25")
	t.Setenv("DIALWATCH_T_BADDUR", "soon")
	t.Setenv("DIALWATCH_T_BADFLOAT", "lots")

	assert.Equal(t, "value", ParseString("DIALWATCH_T_STRING", "d"))
	assert.Equal(t, "d", ParseString("DIALWATCH_T_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("DIALWATCH_T_MISSING", "d"))

	assert.Equal(t, 42, ParseInt("DIALWATCH_T_INT", 1))
	assert.Equal(t, 1, ParseInt("DIALWATCH_T_BADINT", 1))

	assert.True(t, ParseBool("DIALWATCH_T_BOOL", false))
	assert.True(t, ParseBool("DIALWATCH_T_BADBOOL", true))

	assert.Equal(t, 90*time.Second, ParseDuration("DIALWATCH_T_DUR", time.Second))
	assert.Equal(t, 0.25, ParseFloat("DIALWATCH_T_FLOAT", 1))
	assert.Equal(t, time.Second, ParseDuration("DIALWATCH_T_BADDUR", time.Second))
	assert.Equal(t, 1.0, ParseFloat("DIALWATCH_T_BADFLOAT", 1))
}

func TestParseList(t *testing.T) {
	t.Setenv("DIALWATCH_T_LIST", " YouTube ,Netflix,, ")
	assert.Equal(t, []string{"YouTube", "Netflix"}, ParseList("DIALWATCH_T_LIST", nil))
	assert.Equal(t, []string{"x"}, ParseList("DIALWATCH_T_NOLIST", []string{"x"}))
}
