package cmd

import (
	"testing"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func int64Ptr(v int64) *int64 { return &v }

func TestExitStatusCode(t *testing.T) {
	assert.Equal(t, 0, exitStatusCode(int64Ptr(0)))
	assert.Equal(t, 3, exitStatusCode(int64Ptr(3)))
	assert.Equal(t, 143, exitStatusCode(int64Ptr(-15)))
	assert.Equal(t, 255, exitStatusCode(nil))
}

func TestParseEnvFlags(t *testing.T) {
	envs, err := parseEnvFlags([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, envs)

	_, err = parseEnvFlags([]string{"NOVALUE"})
	assert.Error(t, err)
	_, err = parseEnvFlags([]string{"=x"})
	assert.Error(t, err)
}

func TestParseForwardAddr(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort uint32
		wantErr  bool
	}{
		{in: "8080", wantPort: 8080},
		{in: "127.0.0.1:0", wantHost: "127.0.0.1", wantPort: 0},
		{in: "[::1]:9000", wantHost: "::1", wantPort: 9000},
		{in: ":22", wantHost: "", wantPort: 22},
		{in: "host:http", wantErr: true},
		{in: "70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := parseForwardAddr(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestMetadataJSON(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user := "root"
	meta := &linux.FileMetadata{
		FileType:    linux.FileTypeFile,
		Size:        42,
		Permissions: linux.ModeRegular | 0o4755,
		Modified:    &modified,
		UID:         0,
		GID:         10,
		UserName:    &user,
	}

	doc, err := metadataJSON("/bin/tool", meta)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(doc))

	assert.Equal(t, "/bin/tool", gjson.GetBytes(doc, "path").String())
	assert.Equal(t, "file", gjson.GetBytes(doc, "type").String())
	assert.Equal(t, int64(42), gjson.GetBytes(doc, "size").Int())
	assert.Equal(t, "4755", gjson.GetBytes(doc, "mode").String())
	assert.Equal(t, int64(10), gjson.GetBytes(doc, "gid").Int())
	assert.Equal(t, "root", gjson.GetBytes(doc, "user").String())
	assert.Equal(t, gjson.Null, gjson.GetBytes(doc, "group").Type)
	assert.Equal(t, "2024-05-01T12:00:00Z", gjson.GetBytes(doc, "modified").String())
	assert.Equal(t, gjson.Null, gjson.GetBytes(doc, "created").Type)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatTime(nil))
	assert.Equal(t, "-", optional(nil))
	s := "wheel"
	assert.Equal(t, "wheel", optional(&s))
	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())
}
