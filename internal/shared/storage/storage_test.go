package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	name := ObjectName("stones", "Ruby.PNG", at)
	assert.True(t, strings.HasPrefix(name, "stones/2026/03/09/"), name)
	assert.True(t, strings.HasSuffix(name, ".png"), name)
}

func TestPathOnlyStore(t *testing.T) {
	s, err := NewMinio(MinioConfig{Bucket: "jewelry"})
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(context.Background()))

	path, err := s.Put(context.Background(), "purities", "22k.jpg", strings.NewReader("img"), 3, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "purities/"))
}
