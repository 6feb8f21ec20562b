package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	name := ObjectName("/messages/voice/", "audio/webm;codecs=opus", now)
	assert.True(t, strings.HasPrefix(name, "messages/voice/20260301093000-"), name)
	assert.True(t, strings.HasSuffix(name, ".webm"), name)

	assert.True(t, strings.HasSuffix(ObjectName("messages/image", "image/png", now), ".png"))
	assert.True(t, strings.HasSuffix(ObjectName("messages/image", "application/x-unknown", now), ".bin"))
	assert.NotEqual(t, ObjectName("a", "image/png", now), ObjectName("a", "image/png", now))
}

func TestObjectFromURL(t *testing.T) {
	c := &CloudStorageClient{bucketName: "farm-media"}

	name, err := c.objectFromURL("https://storage.googleapis.com/farm-media/messages/image/x.png")
	require.NoError(t, err)
	assert.Equal(t, "messages/image/x.png", name)

	_, err = c.objectFromURL("https://storage.googleapis.com/other-bucket/x.png")
	assert.Error(t, err)

	_, err = c.objectFromURL("https://example.com/farm-media/x.png")
	assert.Error(t, err)
}
