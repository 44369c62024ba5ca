package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-publisher/models"
)

func TestParsePlatforms(t *testing.T) {
	got, err := parsePlatforms(" Instagram,facebook,instagram ")
	require.NoError(t, err)
	assert.Equal(t, []models.Platform{models.Instagram, models.Facebook}, got)

	_, err = parsePlatforms("facebook,tiktok")
	assert.Error(t, err)

	_, err = parsePlatforms(" , ")
	assert.Error(t, err)
}

func TestJoinPlatforms(t *testing.T) {
	assert.Equal(t, "facebook + instagram", joinPlatforms([]models.Platform{models.Facebook, models.Instagram}))
}
