package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schedforge/internal/config"
	"schedforge/internal/pipeline"
	"schedforge/internal/store"
	"schedforge/internal/types"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

const creatorYAML = `
creator_id: creator-1
page_type: paid
allowed_content_types: [lingerie, feet]
volume_tier: STANDARD
triggers:
  - content_type: lingerie
    trigger_type: HIGH_PERFORMER
    multiplier: 1.2
    confidence: 0.9
    expires_at: 2026-10-01T00:00:00Z
`

// setup resets the command globals the way PersistentPreRunE would set them.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(dir, "certificates.db")
	now = func() time.Time { return fixedNow }
	timeout = time.Minute

	contextFile, contextDir, scheduleFile, outFile = "", "", "", ""
	validateContext, validateOut, batchOut = "", "", ""
	weekStart, creatorID = "", ""
	seed, concurrency = 0, 0
	persist, showAll, withSchedule, catalogJSON = false, false, false, false

	t.Cleanup(func() { now = time.Now })
	return dir
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func command() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestCatalogCmd(t *testing.T) {
	setup(t)

	cmd, buf := command()
	require.NoError(t, runCatalog(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "CHANNEL")
	assert.Contains(t, out, "ppv_unlock")
	assert.Contains(t, out, "price,flyer")

	catalogJSON = true
	cmd, buf = command()
	require.NoError(t, runCatalog(cmd, nil))
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.NotEmpty(t, rows)
}

func TestGenerateAndCertificate(t *testing.T) {
	dir := setup(t)
	contextFile = writeFile(t, filepath.Join(dir, "creator-1.yaml"), creatorYAML)
	weekStart = "2026-10-19"
	seed = 42
	persist = true

	cmd, buf := command()
	require.NoError(t, runGenerate(cmd, nil))

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, int64(42), res.Seed)
	assert.Equal(t, "creator-1", res.Output.CreatorID)
	assert.NotEqual(t, types.StatusRejected, res.Certificate.Status)
	assert.Empty(t, res.Report.Compounds, "expired trigger must not apply")

	creatorID = "creator-1"
	cmd, buf = command()
	require.NoError(t, runCertificate(cmd, nil))
	var rec store.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, res.Certificate.CertificateID, rec.CertificateID)
	assert.Nil(t, rec.Schedule)

	weekStart = ""
	cmd, _ = command()
	assert.Error(t, runCertificate(cmd, nil))
}

func TestValidateGeneratedSchedule(t *testing.T) {
	dir := setup(t)
	contextFile = writeFile(t, filepath.Join(dir, "creator-1.yaml"), creatorYAML)
	weekStart = "2026-10-19"
	seed = 42
	outFile = filepath.Join(dir, "week.json")

	cmd, _ := command()
	require.NoError(t, runGenerate(cmd, nil))
	var res pipeline.Result
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &res))

	// generate's --out and --context stay set; validate reads only its own flags.
	validateContext = writeFile(t, filepath.Join(dir, "creator-1-copy.yaml"), creatorYAML)
	scheduleFile = outFile
	cmd, buf := command()
	require.NoError(t, runValidate(cmd, nil))
	require.NotZero(t, buf.Len(), "certificate must go to stdout, not generate's --out")

	var cert types.ValidationCertificate
	require.NoError(t, json.Unmarshal(buf.Bytes(), &cert))
	assert.Equal(t, res.Certificate.CertificateID, cert.CertificateID)
	assert.Equal(t, res.Certificate.Signature, cert.Signature)

	require.NoError(t, validateCmd.Flags().Set("out", filepath.Join(dir, "cert.json")))
	require.NoError(t, validateCmd.Flags().Set("context", "other.yaml"))
	assert.Equal(t, filepath.Join(dir, "week.json"), outFile)
	assert.Equal(t, filepath.Join(dir, "creator-1.yaml"), contextFile)
}

func TestValidateRejectsBrokenSchedule(t *testing.T) {
	dir := setup(t)
	validateContext = writeFile(t, filepath.Join(dir, "creator-1.yaml"), creatorYAML)
	scheduleFile = writeFile(t, filepath.Join(dir, "week.json"),
		`{"creator_id":"creator-1","week_start":"2026-10-19","items":[
		  {"send_type_key":"ppv_unlock","category":"revenue","content_type":"lingerie","scheduled_date":"2026-10-20","scheduled_time":"12:07","price":15,"flyer_required":1,"channel_key":"mass_message"}
		],"followups":[]}`)

	cmd, buf := command()
	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")

	var cert types.ValidationCertificate
	require.NoError(t, json.Unmarshal(buf.Bytes(), &cert))
	assert.Equal(t, types.StatusRejected, cert.Status)
	assert.False(t, cert.Gates[types.GateDiversity])
}

func TestBatchCmd(t *testing.T) {
	dir := setup(t)
	contexts := filepath.Join(dir, "contexts")
	require.NoError(t, os.Mkdir(contexts, 0755))
	writeFile(t, filepath.Join(contexts, "a.yaml"), creatorYAML)
	writeFile(t, filepath.Join(contexts, "b.json"), `{"creator_id":"creator-2","page_type":"paid","allowed_content_types":["feet","lingerie"],"volume_tier":"STANDARD"}`)

	contextDir = contexts
	weekStart = "2026-10-19"
	concurrency = 2
	persist = true

	cmd, buf := command()
	require.NoError(t, runBatch(cmd, nil))

	var summary []batchEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	require.Len(t, summary, 2)
	assert.Equal(t, "creator-1", summary[0].CreatorID)
	assert.Equal(t, "creator-2", summary[1].CreatorID)
	for _, e := range summary {
		assert.Empty(t, e.Error)
		assert.NotEmpty(t, e.CertificateID)
	}

	writeFile(t, filepath.Join(contexts, "c.json"), `{"creator_id":"creator-3","page_type":"paid","allowed_content_types":["feet"],"avoid_content_types":["feet"],"volume_tier":"STANDARD"}`)
	cmd, buf = command()
	err := runBatch(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 creators failed")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Contains(t, summary[2].Error, string(types.CodeInvalidInput))
}
