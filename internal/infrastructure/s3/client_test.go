package s3infra

import (
	"errors"
	"testing"

	"github.com/citymate-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagedAndPromotedKeys(t *testing.T) {
	staged := StagedKey("u1", "01J.png")
	assert.Equal(t, "pending/u1/01J.png", staged)
	assert.Equal(t, "profile_photos/u1/01J.png", PromotedKey(staged))
}

func TestDetectImageType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000000000")
	ct, ext, err := detectImageType(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}
	_, ext, err = detectImageType(jpeg)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	ct, ext, err = detectImageType([]byte("GIF89a\x01\x00\x01\x00"))
	require.NoError(t, err)
	assert.Equal(t, "image/gif", ct)
	assert.Equal(t, ".gif", ext)

	ct, ext, err = detectImageType([]byte("RIFF\x24\x00\x00\x00WEBPVP8 \x00\x00\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", ct)
	assert.Equal(t, ".webp", ext)
}

func TestDetectImageType_RejectsNonImages(t *testing.T) {
	_, _, err := detectImageType([]byte("%PDF-1.7 not a photo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, _, err = detectImageType([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
