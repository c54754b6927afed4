package report

import (
	"bytes"
	"testing"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteServices(t *testing.T) {
	var buf bytes.Buffer
	err := WriteServices(&buf, []admin.Service{
		{Name: "orders", URL: "http://orders:8080", Protocol: "http"},
		{Name: "billing", Protocol: "https", Host: "billing.internal", Port: 8443, Path: "/v1"},
		{Name: "bare"},
		{Name: "comma, name", URL: "http://x"},
	})
	require.NoError(t, err)

	want := "Name,URL,Protocol\n" +
		"orders,http://orders:8080,http\n" +
		"billing,https://billing.internal:8443/v1,https\n" +
		"bare,N/A,http\n" +
		"\"comma, name\",http://x,http\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteServicesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteServices(&buf, nil))
	assert.Equal(t, "Name,URL,Protocol\n", buf.String())
}
