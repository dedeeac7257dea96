package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRoot(t *testing.T) {
	cfg := DefaultConfig("tm1.example.com", 12354, "admin", "apple")
	root, err := cfg.ServiceRoot()
	require.NoError(t, err)
	assert.Equal(t, "https://tm1.example.com:12354/api/v1", root)

	cfg.SSL = false
	root, err = cfg.ServiceRoot()
	require.NoError(t, err)
	assert.Equal(t, "http://tm1.example.com:12354/api/v1", root)

	cfg.BaseURL = "https://proxy.example.com/tm1/api/v1/"
	root, err = cfg.ServiceRoot()
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.com/tm1/api/v1", root)
}

func TestServiceRootValidation(t *testing.T) {
	_, err := (&Config{Port: 1}).ServiceRoot()
	assert.Error(t, err)

	_, err = (&Config{Address: "localhost"}).ServiceRoot()
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestResponseValue(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: []byte(`{"value":[{"ID":12345678901234}]}`)}
	records, err := resp.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	id, ok := records[0].ID()
	assert.True(t, ok)
	assert.Equal(t, "12345678901234", id)
	assert.True(t, resp.OK())

	missing := &Response{Body: []byte(`{"Name":"x"}`)}
	_, err = missing.Records()
	assert.ErrorIs(t, err, ErrMissingValue)

	null := &Response{Body: []byte(`{"value":null}`)}
	records, err = null.Records()
	require.NoError(t, err)
	assert.Empty(t, records)

	broken := &Response{Body: []byte(`not json`)}
	_, err = broken.Records()
	assert.Error(t, err)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Method: "GET", URL: "http://h/api/v1/Threads", StatusCode: 404, Reason: "Not Found", Body: "missing"}
	assert.Equal(t, "GET http://h/api/v1/Threads failed: 404 Not Found: missing", err.Error())
	assert.False(t, err.IsUnauthorized())
	assert.Equal(t, 404, StatusCode(err))
	assert.Equal(t, 0, StatusCode(nil))
}
