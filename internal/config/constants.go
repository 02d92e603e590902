package config

// Application constants
const (
	AppName    = "zentaocli"
	AppVersion = "1.0.0"

	DefaultConfigFile  = "zentaocli.yaml"
	DefaultBaseURL     = "http://10.200.10.220/zentao"
	DefaultDownloadDir = "raw_data"
	DefaultLogsDir     = "logs"

	// Export template names as they appear in the service's template combo.
	// The V1.0 name really has two spaces after the bracket.
	TemplateAcceptance   = "[公共] 验收报告"
	TemplateAcceptanceV1 = "[公共]  验收报告V1.0"

	// Report workbook layout
	AcceptanceSheet = "验收测试结果"
	LedgerKeyColumn = "项目_产品"

	// Settings groups
	SettingsGroupExport      = "zentao_export"
	SettingsGroupAcceptance  = "acceptance_filling"
	SettingsGroupBugQuery    = "bug_query"
	SettingsGroupConsolidate = "excel_tool"
)
