package cmd

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/olekukonko/tablewriter"
	"github.com/tidwall/sjson"
)

// ExitError carries the exit code the CLI should terminate with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitStatusCode maps a process status to a shell exit code: negative
// statuses are signals, and a missing status is reported like ssh does.
func exitStatusCode(status *int64) int {
	switch {
	case status == nil:
		return 255
	case *status < 0:
		return 128 + int(-*status)
	default:
		return int(*status & 0xff)
	}
}

func parseEnvFlags(pairs []string) (map[string]string, error) {
	envs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		envs[name] = value
	}
	return envs, nil
}

// parseForwardAddr splits [HOST:]PORT. A bare port listens on every address.
func parseForwardAddr(addr string) (string, uint32, error) {
	host, portStr := "", addr
	if strings.Contains(addr, ":") {
		var err error
		host, portStr, err = net.SplitHostPort(addr)
		if err != nil {
			return "", 0, fmt.Errorf("invalid forward address %q: %w", addr, err)
		}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid forward port %q: %w", portStr, err)
	}
	return host, uint32(port), nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// metadataJSON renders meta as a flat JSON object. Unknown values are null.
func metadataJSON(p string, meta *linux.FileMetadata) ([]byte, error) {
	doc := []byte(`{}`)
	set := func(key string, value interface{}) {
		if doc == nil {
			return
		}
		var err error
		if doc, err = sjson.SetBytes(doc, key, value); err != nil {
			doc = nil
		}
	}
	timeValue := func(t *time.Time) interface{} {
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	stringValue := func(s *string) interface{} {
		if s == nil {
			return nil
		}
		return *s
	}

	set("path", p)
	set("type", meta.FileType.String())
	set("size", meta.Size)
	set("mode", fmt.Sprintf("%04o", uint16(meta.Permissions.Settable())))
	set("uid", meta.UID)
	set("gid", meta.GID)
	set("user", stringValue(meta.UserName))
	set("group", stringValue(meta.GroupName))
	set("modified", timeValue(meta.Modified))
	set("accessed", timeValue(meta.Accessed))
	set("created", timeValue(meta.Created))
	if doc == nil {
		return nil, fmt.Errorf("failed to encode metadata for %s", p)
	}
	return doc, nil
}
