// internal/transport/transport_test.go
package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect_StrongestMatch(t *testing.T) {
	cands := []Candidate{
		{Address: "a", Name: "SQUARE", RSSI: -70},
		{Address: "b", Name: "SQUARE", RSSI: -40},
		{Address: "c", Name: "ZUMO", RSSI: -20},
		{Address: "d", Name: "SQUARE", RSSI: -90},
	}

	c, ok := Select(cands, Filter{Name: "SQUARE", MinRSSI: -80})
	assert.True(t, ok)
	assert.Equal(t, "b", c.Address)
}

func TestSelect_ThresholdInclusive(t *testing.T) {
	c, ok := Select([]Candidate{{Address: "a", Name: "SQUARE", RSSI: -60}}, Filter{Name: "SQUARE", MinRSSI: -60})
	assert.True(t, ok)
	assert.Equal(t, "a", c.Address)
}

func TestSelect_NoMatch(t *testing.T) {
	cands := []Candidate{
		{Address: "a", Name: "SQUARE", RSSI: -95},
		{Address: "b", Name: "square", RSSI: -10},
		{Address: "c", Name: "SQUARE2", RSSI: -10},
	}
	_, ok := Select(cands, Filter{Name: "SQUARE", MinRSSI: -80})
	assert.False(t, ok)

	_, ok = Select(nil, Filter{Name: "SQUARE"})
	assert.False(t, ok)
}

func TestSelect_TieKeepsOrder(t *testing.T) {
	cands := []Candidate{
		{Address: "first", Name: "SQUARE", RSSI: -50},
		{Address: "second", Name: "SQUARE", RSSI: -50},
	}
	c, _ := Select(cands, Filter{Name: "SQUARE", MinRSSI: -100})
	assert.Equal(t, "first", c.Address)
}
