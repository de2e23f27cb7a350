package detect_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/cmd/detect"
)

func TestDetectCommand_LocalFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body>
<div class="product"><img src="w.png"/>Widget $9.99, 250g</div>
<p>Free shipping</p>
</body></html>`), 0o600))

	cfgPath := filepath.Join(dir, "config.yml")
	cfg := "artifacts:\n  dir: " + filepath.Join(dir, "artifacts") + "\nreport:\n  output_dir: " + filepath.Join(dir, "reports") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	cmd := detect.Command()
	cmd.Flags().String(common.FlagConfig, "", "")
	cmd.Flags().Bool(common.FlagDebug, false, "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{page, "--grid", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	var got struct {
		Count    int `json:"count"`
		Segments []struct {
			HTML string `json:"html"`
		} `json:"segments"`
		Report string `json:"report"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, `<div class="product"><img src="w.png"/>Widget $9.99, 250g</div>`, got.Segments[0].HTML)
	assert.FileExists(t, got.Report)
}
