package operations

// Pipeline stage identifiers
const (
	StageIDLoad     = "load"
	StageIDPrepare  = "prepare"
	StageIDForecast = "forecast"
	StageIDWrite    = "write"
)

// Pipeline stage names
const (
	StageNameLoad     = "Data Loading"
	StageNamePrepare  = "Preprocessing"
	StageNameForecast = "Forecasting"
	StageNameWrite    = "Result Writing"
)

// DefaultStageOrder is the order in which the CLI registers stages
var DefaultStageOrder = []string{StageIDLoad, StageIDPrepare, StageIDForecast, StageIDWrite}
