package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseSelect(t *testing.T) {
	res := &Response{
		StatusCode: 200,
		Body:       []byte(`<html><body><h1 class="title">Hi</h1><p>text</p></body></html>`),
	}

	sel := res.Select("h1.title")
	require.Equal(t, 1, sel.Length())
	assert.Equal(t, "Hi", sel.First().Text())
}

func TestResponseSelectMemoizesDocument(t *testing.T) {
	res := &Response{Body: []byte(`<p>one</p>`)}

	doc1, err1 := res.Document()
	doc2, err2 := res.Document()
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, doc1, doc2)
}

func TestResponseIsSuccess(t *testing.T) {
	assert.True(t, (&Response{StatusCode: 200}).IsSuccess())
	assert.True(t, (&Response{StatusCode: 299}).IsSuccess())
	assert.False(t, (&Response{StatusCode: 404}).IsSuccess())
	assert.False(t, (&Response{StatusCode: 301}).IsSuccess())
}

func TestResponseText(t *testing.T) {
	res := &Response{Body: []byte("hello")}
	assert.Equal(t, "hello", res.Text())
}
