package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/aspectidx/pkg/config"
)

func TestReadYamlCnxFile_ValidFile(t *testing.T) {
	// Create a temporary test file with valid YAML
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "valid_config.yaml")

	validYaml := `
s3endpoint: https://s3.example.com
accesskey: test-access-key
apikey: test-api-key
s3region: us-west-2
ssoawsprofile: test-profile
bucket: test-bucket
prefix: datasets/photos
cachekey: index.json
batchsize: 4
workers: 12
applydatasetpadding: true
deleteunwanted: true
scancron: "*/15 * * * *"
enablebackgroundscan: true
redisaddr: localhost:6379
worldsize: 2
rank: 1
loglevel: debug
`
	err := os.WriteFile(tmpFile, []byte(validYaml), 0644)
	require.NoError(t, err, "Failed to create test file")

	// Test reading the file
	cfg, err := config.ReadYamlCnxFile(tmpFile)
	require.NoError(t, err, "ReadYamlCnxFile should not return an error for valid YAML")

	// Verify all fields are correctly unmarshaled
	assert.Equal(t, "https://s3.example.com", cfg.S3endpoint)
	assert.Equal(t, "test-access-key", cfg.S3accessKey)
	assert.Equal(t, "test-api-key", cfg.S3ApikKey)
	assert.Equal(t, "us-west-2", cfg.S3Region)
	assert.Equal(t, "test-profile", cfg.SsoAwsProfile)
	assert.Equal(t, "test-bucket", cfg.Bucket)
	assert.Equal(t, "datasets/photos", cfg.Prefix)
	assert.Equal(t, "index.json", cfg.CacheKey)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 12, cfg.Workers)
	assert.True(t, cfg.ApplyDatasetPadding)
	assert.True(t, cfg.DeleteUnwanted)
	assert.Equal(t, "*/15 * * * *", cfg.ScanCron)
	assert.True(t, cfg.EnableBackgroundScan)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.WorldSize)
	assert.Equal(t, 1, cfg.Rank)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestReadYamlCnxFile_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "minimal_config.yaml")

	minimalYaml := `
bucket: test-bucket
batchsize: 2
`
	err := os.WriteFile(tmpFile, []byte(minimalYaml), 0644)
	require.NoError(t, err)

	cfg, err := config.ReadYamlCnxFile(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultCacheKey, cfg.CacheKey)
	assert.Equal(t, config.DefaultStatusAddr, cfg.StatusAddr)
}

func TestReadYamlCnxFile_InvalidYaml(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "invalid_config.yaml")

	invalidYaml := `
bucket: test-bucket
batchsize: [not a number
`
	err := os.WriteFile(tmpFile, []byte(invalidYaml), 0644)
	require.NoError(t, err)

	_, err = config.ReadYamlCnxFile(tmpFile)
	assert.Error(t, err, "ReadYamlCnxFile should return an error for invalid YAML")
}

func TestReadYamlCnxFile_MissingFile(t *testing.T) {
	_, err := config.ReadYamlCnxFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
