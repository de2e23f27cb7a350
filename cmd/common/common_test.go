package common_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
)

type fixedFetcher string

func (f fixedFetcher) Fetch(context.Context, string) (string, error) { return string(f), nil }

func TestReadSeeds(t *testing.T) {
	t.Parallel()

	urls, err := common.ReadSeeds(strings.NewReader(`
# grocery chains
https://shop.example/a

  https://shop.example/b  
#https://shop.example/skipped
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example/a", "https://shop.example/b"}, urls)
}

func TestLoadPage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>local</p>"), 0o600))

	page, err := common.LoadPage(context.Background(), fixedFetcher("<p>remote</p>"), path)
	require.NoError(t, err)
	assert.Equal(t, "<p>local</p>", page)

	page, err = common.LoadPage(context.Background(), fixedFetcher("<p>remote</p>"), "https://shop.example/a")
	require.NoError(t, err)
	assert.Equal(t, "<p>remote</p>", page)

	_, err = common.LoadPage(context.Background(), nil, "https://shop.example/a")
	require.Error(t, err)
}

func TestNewCommandDeps_LogsToStderrForOutputCommands(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("artifacts:\n  dir: "+t.TempDir()+"\n"), 0o600))

	deps, err := common.NewCommandDeps(cfgPath, true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"stderr"}, deps.Config.Logging.OutputPaths)
	assert.Equal(t, "debug", deps.Config.Logging.Level)
	require.NoError(t, deps.Validate())

	svc, err := deps.NewService(false)
	require.NoError(t, err)
	assert.False(t, svc.Ready())

	_, err = deps.NewService(true)
	require.Error(t, err)

	exporter, err := deps.NewExporter(context.Background())
	require.NoError(t, err)
	assert.Nil(t, exporter)
}

func TestCommandDeps_Validate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, common.CommandDeps{}.Validate(), common.ErrLoggerRequired)
}
