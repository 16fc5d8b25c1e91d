package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, ParseInt("42", 7))
	assert.Equal(t, 7, ParseInt("", 7))
	assert.Equal(t, 7, ParseInt("not-a-number", 7))
	assert.Equal(t, -3, ParseInt("-3", 7))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 0.25, ParseFloat("0.25", 0.1))
	assert.Equal(t, 0.1, ParseFloat("", 0.1))
	assert.Equal(t, 0.1, ParseFloat("nope", 0.1))
	assert.Equal(t, -1.5, ParseFloat("-1.5", 0.1))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit(20, 50))
	assert.Equal(t, 50, ClampLimit(0, 50))
	assert.Equal(t, 50, ClampLimit(-1, 50))
	assert.Equal(t, 50, ClampLimit(999, 50))
}
