package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/soulcore/pkg/config"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{environ: []string{}, newLogger: logging.Nop}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newSoul(t *testing.T) string {
	t.Helper()
	soul := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(soul, "INTERESTS.md"), []byte("# Interests\n"), 0o600))
	return soul
}

func TestEmbedWithoutSoul(t *testing.T) {
	out, err := run(t, "embed", "synthwave and jazz")
	require.NoError(t, err)

	var line struct {
		Provider   string    `json:"provider"`
		Dimensions int       `json:"dimensions"`
		Vector     []float64 `json:"vector"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, "offline", line.Provider)
	assert.Equal(t, 256, line.Dimensions)
	assert.Len(t, line.Vector, 256)
}

func TestSimilarity(t *testing.T) {
	out, err := run(t, "similarity", "guitar music", "guitar music")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0000")
}

func TestRouteThenVerify(t *testing.T) {
	soul := newSoul(t)

	out, err := run(t, "--soul", soul, "route", "--interest", "synthwave", "--json")
	require.NoError(t, err)
	var rep router.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Interests, 1)
	assert.Equal(t, router.ActionSuggested, rep.Interests[0].Action)

	content, err := os.ReadFile(filepath.Join(soul, "INTERESTS.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "- **Music**: synthwave (suggested ")

	_, err = run(t, "--soul", soul, "remember", "User plays guitar as a hobby", "--tag", "guitar", "--tag", "hobby")
	require.NoError(t, err)

	out, err = run(t, "--soul", soul, "verify", "I remember you told me about your guitar hobby")
	require.NoError(t, err)
	assert.Contains(t, out, "SUPPORTED")
	assert.Contains(t, out, "evidence:")

	out, err = run(t, "--soul", soul, "verify", "You told me you love knitting", "--json")
	require.NoError(t, err)
	var res verify.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Claims, 1)
	assert.Equal(t, verify.StatusUnsupported, res.Claims[0].Status)
	assert.False(t, res.Modified)
}

func TestClusters(t *testing.T) {
	out, err := run(t, "--soul", newSoul(t), "clusters", "--json")
	require.NoError(t, err)
	var got []router.Cluster
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, router.DefaultClusters, got)

	soul := newSoul(t)
	require.NoError(t, os.WriteFile(filepath.Join(soul, config.FileName), []byte(`
router:
  clusters:
    - name: Tea
      keywords: [tea, matcha]
`), 0o600))
	out, err = run(t, "--soul", soul, "clusters")
	require.NoError(t, err)
	assert.Contains(t, out, "Tea")
	assert.Contains(t, out, "tea, matcha")
	assert.NotContains(t, out, "Music")
}

func TestRouteRequiresInput(t *testing.T) {
	_, err := run(t, "--soul", newSoul(t), "route")
	assert.ErrorContains(t, err, "nothing to route")
}

func TestVerifyRequiresSoul(t *testing.T) {
	_, err := run(t, "verify", "You told me about it")
	assert.ErrorIs(t, err, config.ErrInvalid)
}
