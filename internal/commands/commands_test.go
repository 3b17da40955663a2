package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/transcript"
	"github.com/readysetinsure/dashboard/internal/weekday"
)

func runApp(t *testing.T, flags *Flags, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &cli.Command{
		Name:      "rsictl",
		Reader:    strings.NewReader(stdin),
		Writer:    &out,
		ErrWriter: &errOut,
	}
	app = NewParseCmd(flags).Register(app)
	app = NewWeekdayCmd(flags).Register(app)
	app = NewGradientCmd(flags).Register(app)
	app = NewTemplatesCmd(flags).Register(app)

	err := app.Run(context.Background(), append([]string{"rsictl"}, args...))
	return out.String(), errOut.String(), err
}

func TestParseCmd_Stdin(t *testing.T) {
	out, errOut, err := runApp(t, &Flags{}, "AI: Hello there\nmumble\nUser: Hi\n", "parse")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "assistant")
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "client")
	assert.Contains(t, errOut, "1 line(s)")
}

func TestParseCmd_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.txt")
	require.NoError(t, os.WriteFile(path, []byte("User: My policy is 123\n--- transferred"), 0o644))

	out, _, err := runApp(t, &Flags{}, "", "parse", "--json", path)
	require.NoError(t, err)

	var rep transcript.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Messages, 2)
	assert.Equal(t, transcript.SenderClient, rep.Messages[0].Sender)
	assert.Equal(t, transcript.SenderSystem, rep.Messages[1].Sender)
	assert.Empty(t, rep.Unmatched)
}

func TestParseCmd_MissingFile(t *testing.T) {
	_, _, err := runApp(t, &Flags{}, "", "parse", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestGradientCmd(t *testing.T) {
	out, _, err := runApp(t, &Flags{}, "", "gradient", "10", "0", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "rgb(239,68,68)")
	assert.Contains(t, out, "#ef4444")

	_, _, err = runApp(t, &Flags{}, "", "gradient", "1", "2")
	require.Error(t, err)

	_, _, err = runApp(t, &Flags{}, "", "gradient", "x", "0", "1")
	require.Error(t, err)
}

func TestTemplatesCmd_Defaults(t *testing.T) {
	out, _, err := runApp(t, &Flags{}, "", "templates", "--path", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 2)
}

func TestWeekdayCmd_File(t *testing.T) {
	input := `[
		{"policy_number":"A","status":"incomplete","date":"2024-06-02"},
		{"policy_number":"B","status":"incomplete","date":"2024-06-02T09:00:00Z"},
		{"policy_number":"C","status":"complete","date":"2024-06-04"},
		{"policy_number":"D","status":"complete"}
	]`

	out, _, err := runApp(t, &Flags{}, input, "weekday")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "Sun"))
	assert.True(t, strings.HasSuffix(lines[0], " 2"))
	assert.True(t, strings.HasSuffix(lines[2], " 1"))
	assert.Equal(t, "total 3", lines[7])
}

func TestWeekdayCmd_BadJSON(t *testing.T) {
	_, _, err := runApp(t, &Flags{}, "{not json", "weekday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode customers")
}

func TestWeekdayCmd_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/GetIncompleteClients", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"policy_number":"A","status":"incomplete","date":"2024-06-03"}]}`))
	}))
	defer srv.Close()

	out, _, err := runApp(t, &Flags{BackendURL: srv.URL}, "", "weekday", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "total 1")
}

func TestRenderHistogram(t *testing.T) {
	h := weekday.Empty()
	h[0].Total = 4
	h[1].Total = 2
	h[2].Total = 1

	lines := strings.Split(strings.TrimSpace(renderHistogram(h, 8)), "\n")
	require.Len(t, lines, 8)

	assert.Equal(t, 8, strings.Count(lines[0], "█"))
	assert.Equal(t, 4, strings.Count(lines[1], "█"))
	assert.Equal(t, 2, strings.Count(lines[2], "█"))
	assert.Equal(t, 0, strings.Count(lines[3], "█"))
	assert.Equal(t, "total 7", lines[7])
}

func TestRenderHistogram_Empty(t *testing.T) {
	out := renderHistogram(weekday.Empty(), 10)
	assert.Equal(t, 0, strings.Count(out, "█"))
	assert.Contains(t, out, "total 0")
}
