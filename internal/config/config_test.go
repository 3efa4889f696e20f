package config

import (
	"testing"

	"github.com/LiuShuoJiang/titanium/titaniumerr"
	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Validate_OK(t *testing.T) {
	snap := Default("/tmp/titanium")
	assert.Nil(t, snap.Validate())
}

func TestSnapshot_Validate_EmptyDataDir(t *testing.T) {
	snap := Default("")
	err := snap.Validate()
	assert.True(t, titaniumerr.Is(err, titaniumerr.ConfigError))
}

func TestSnapshot_Validate_ZeroMaxKeySize(t *testing.T) {
	snap := Default("/tmp/titanium")
	snap.MaxKeySize = 0
	err := snap.Validate()
	assert.True(t, titaniumerr.Is(err, titaniumerr.ConfigError))
}

func TestSnapshot_Validate_NonPositiveMaxFileSize(t *testing.T) {
	snap := Default("/tmp/titanium")
	snap.MaxFileSize = 0
	err := snap.Validate()
	assert.True(t, titaniumerr.Is(err, titaniumerr.ConfigError))
}

func TestStatic_AlwaysReturnsSameSnapshot(t *testing.T) {
	snap := Default("/tmp/titanium")
	p := NewStatic(snap)

	assert.Equal(t, snap, p.Snapshot())
	assert.Equal(t, snap, p.Snapshot())
}
