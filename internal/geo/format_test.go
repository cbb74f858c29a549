package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "Paris, FR", Format("Paris", "", "FR"))
	assert.Equal(t, "", Format("", "", ""))
	assert.Equal(t, "Berlin, Land Berlin, DE", Format("Berlin", "Land Berlin", "DE"))
	assert.Equal(t, "US", Format(" ", "", "US"))
	assert.Equal(t, "Ontario, CA", Location{Region: "Ontario", Country: "CA"}.String())
}
