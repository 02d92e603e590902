// Package config provides the process-wide configuration for zentaocli.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Default() values
//	2. zentaocli.yaml (working directory, ./configs, or next to the binary)
//	3. Environment variables prefixed with ZTX_
//
// # Environment Variables
//
//	ZTX_ZENTAO_BASE_URL=http://zentao.example/zentao
//	ZTX_BROWSER_HEADLESS=false
//	ZTX_BROWSER_EXEC_PATH=/usr/bin/chromium
//	ZTX_DOWNLOAD_DIR=raw_data
//	ZTX_DOWNLOAD_TIMEOUT=90s
//	ZTX_LOGGING_LEVEL=debug
//
// # Usage
//
// Load once at startup and pass the result explicitly:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//
// Credentials are never part of the configuration.
package config
