// Package config loads the daemon configuration from a yaml file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultWorkers is the number of concurrent bucket workers used when
// the configuration does not set one.
const DefaultWorkers = 8

// DefaultCacheKey is the backend key of the persisted bucket index.
const DefaultCacheKey = "aspect_ratio_bucket_indices.json"

// DefaultStatusAddr is the listen address of the status HTTP server.
const DefaultStatusAddr = ":8081"

// Config is the struct for the configuration
type Config struct {
	S3endpoint    string `yaml:"s3endpoint"`
	S3accessKey   string `yaml:"accesskey"`
	S3ApikKey     string `yaml:"apikey"`
	S3Region      string `yaml:"s3region"`
	SsoAwsProfile string `yaml:"ssoawsprofile"`
	Bucket        string `yaml:"bucket"`
	// Prefix is the instance data root under which images are discovered.
	Prefix string `yaml:"prefix"`
	// CacheKey is the backend key the bucket index document is persisted under.
	CacheKey string `yaml:"cachekey"`
	// DataDir selects the local filesystem backend when non-empty.
	DataDir string `yaml:"datadir"`
	// BatchSize is the consumer batch size; buckets smaller than this are
	// pruned on every save.
	BatchSize int `yaml:"batchsize"`
	// Workers is the number of concurrent bucket workers.
	Workers int `yaml:"workers"`
	// ApplyDatasetPadding pads per-rank bucket slices to equal length.
	ApplyDatasetPadding bool `yaml:"applydatasetpadding"`
	// DeleteUnwanted deletes undersized images from the backend instead of
	// only dropping them from their bucket.
	DeleteUnwanted bool   `yaml:"deleteunwanted"`
	ScanCron       string `yaml:"scancron"`
	// EnableBackgroundScan enables the periodic bucket refresh job.
	EnableBackgroundScan bool `yaml:"enablebackgroundscan"`
	// RedisAddr selects the redis-backed seen ledger when non-empty.
	RedisAddr string `yaml:"redisaddr"`
	RedisDB   int    `yaml:"redisdb"`
	// Rank and WorldSize override the RANK/WORLD_SIZE environment variables
	// when WorldSize is set.
	Rank       int    `yaml:"rank"`
	WorldSize  int    `yaml:"worldsize"`
	StatusAddr string `yaml:"statusaddr"`
	LogLevel   string `yaml:"loglevel"`
}

// ReadYamlCnxFile reads a yaml file and returns a Config struct
func ReadYamlCnxFile(filename string) (Config, error) {
	var config Config

	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("error reading YAML file: %w", err)
	}

	err = yaml.Unmarshal(yamlFile, &config)
	if err != nil {
		return config, fmt.Errorf("error parsing YAML file: %w", err)
	}
	config.setDefaults()
	return config, nil
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CacheKey == "" {
		c.CacheKey = DefaultCacheKey
	}
	if c.StatusAddr == "" {
		c.StatusAddr = DefaultStatusAddr
	}
}
