package share

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoURL(t *testing.T) {
	assert.Equal(t, "", VideoURL("", "abc"))
	assert.Equal(t, "https://example.com/video/abc", VideoURL("https://example.com/", "abc"))
	assert.Equal(t, "http://host:8080/app/video/a%20b", VideoURL("http://host:8080/app", "a b"))
}

func TestWriteQR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.png")
	require.NoError(t, WriteQR("https://example.com/video/abc", path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, QRSize, img.Bounds().Dx())

	assert.Error(t, WriteQR("", path))
}
