package httpget

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dhd-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewClient(srv.Client(), "dhd-test")
	require.NoError(t, c.Fetch(context.Background(), srv.URL+"/install.sh", &buf))
	assert.Equal(t, "#!/bin/sh\necho hi\n", buf.String())
}

func TestClient_FetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var buf bytes.Buffer
	err := NewClient(nil, "").Fetch(context.Background(), srv.URL, &buf)
	require.ErrorContains(t, err, "404")
	assert.Zero(t, buf.Len())
}
