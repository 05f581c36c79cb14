package cdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack(t *testing.T) {

	content := []byte("<Invoice/>")
	archive, err := Pack("20123456789-03-B001-00000001.xml", content)
	require.NoError(t, err)

	assert.True(t, Valid(archive))

	names, err := Entries(archive)
	require.NoError(t, err)
	assert.Equal(t, []string{"20123456789-03-B001-00000001.xml"}, names)

	extracted, err := Extract(archive, "20123456789-03-B001-00000001.xml")
	require.NoError(t, err)
	assert.Equal(t, content, extracted)
}

func TestPack_emptyContent(t *testing.T) {

	_, err := Pack("a.xml", nil)
	assert.Error(t, err)
}

func TestValid(t *testing.T) {

	assert.False(t, Valid(nil))
	assert.False(t, Valid([]byte("definitely not a zip")))
}

func TestExtract_missingEntry(t *testing.T) {

	archive, err := Pack("a.xml", []byte("x"))
	require.NoError(t, err)

	_, err = Extract(archive, "b.xml")
	assert.Error(t, err)
}
