// Package config provides centralized configuration for the forecasting pipeline.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//  1. Default values (Default)
//  2. A YAML file (-config flag, BTCF_CONFIG, ./forecast.yaml or ./configs/forecast.yaml)
//  3. Environment variables prefixed with BTCF_
//
// # Environment Variables
//
// Nested sections map to underscore-joined names. Only BTCF_ names are read;
// generic variables such as PATH or LEVEL never reach the configuration.
//
//	BTCF_INPUT_PATH=data/btc.xlsx
//	BTCF_PREPARE_FILL_POLICY=interpolate
//	BTCF_MODEL_HORIZON=30
//	BTCF_LOGGING_LEVEL=debug
//	BTCF_HISTORY_SQLITE_PATH=data/history.db
//
// # Example File
//
//	input:
//	  path: data/btc_prices.xlsx
//	prepare:
//	  frequency: 24h
//	  fill_policy: ffill
//	model:
//	  p: 2
//	  d: 1
//	  q: 1
//	  horizon: 30
//	  confidence: 0.95
//	output:
//	  path: data/reports/forecast.csv
package config
