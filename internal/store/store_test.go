package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

func TestSQLiteCollectorPersistsItems(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crawl.db")

	c, err := Open(dbPath)
	require.NoError(t, err)
	defer c.Close()

	c.Collect("https://example.com/a", map[string]string{"title": "hello"})
	c.Collect("https://example.com/b", "plain string item")

	n, err := c.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSQLiteCollectorPipeMatchesPipeWithResponseSignature(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crawl.db")

	c, err := Open(dbPath)
	require.NoError(t, err)
	defer c.Close()

	res := &message.Response{URL: "https://example.com/a"}
	out := c.Pipe("hello", res)
	assert.Equal(t, "hello", out, "Pipe must let the item flow on through the chain")

	n, err := c.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSQLiteCollectorReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crawl.db")

	c1, err := Open(dbPath)
	require.NoError(t, err)
	c1.Collect("https://example.com/a", "item")
	require.NoError(t, c1.Close())

	c2, err := Open(dbPath)
	require.NoError(t, err)
	defer c2.Close()

	n, err := c2.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
