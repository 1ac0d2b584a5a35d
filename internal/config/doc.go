/*
Package config provides configuration management for ShrinkFS with
multi-source support.

Configuration is resolved in precedence order: compiled-in defaults, then a
YAML file, then SHRINKFS_* environment variables. Validate is expected to be
called after the sources are merged.

Loading configuration:

	cfg := config.NewDefault()

	if err := cfg.LoadFromFile("/etc/shrinkfs/config.yaml"); err != nil {
		log.Fatal(err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

Configuration file format:

	scan:
	  root: "/var/data"
	  recursive: true
	  min_file_size: 1024
	  min_priority: 0.3

	compression:
	  method: gzip
	  level: -1

	monitor:
	  threshold_percent: 90.0
	  interval: 60s
	  batch_limit: 50

	ledger:
	  directory: "metadata"
	  filename: "compression_metadata.json"

	maintenance:
	  schedule: "@every 6h"
	  backup_retention: 72h

	logging:
	  level: INFO
	  file: "/var/log/shrinkfs.log"

Environment variable mapping:

	SHRINKFS_SCAN_ROOT="/var/data"
	SHRINKFS_THRESHOLD_PERCENT="85.0"
	SHRINKFS_MONITOR_INTERVAL="30s"
	SHRINKFS_BATCH_LIMIT="25"
	SHRINKFS_COMPRESSION_METHOD="deflate"
	SHRINKFS_LOG_LEVEL="DEBUG"

Unparsable environment values are ignored rather than treated as errors;
Validate catches out-of-range results regardless of their source.
*/
package config
