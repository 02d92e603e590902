package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "ZTX"

// Config represents the complete application configuration
type Config struct {
	ZenTao    ZenTaoConfig    `yaml:"zentao" envconfig:"ZENTAO"`
	Browser   BrowserConfig   `yaml:"browser" envconfig:"BROWSER"`
	Download  DownloadConfig  `yaml:"download" envconfig:"DOWNLOAD"`
	Templates TemplateConfig  `yaml:"templates" envconfig:"TEMPLATES"`
	Settings  SettingsConfig  `yaml:"settings" envconfig:"SETTINGS"`
	Fill      FillConfig      `yaml:"fill" envconfig:"FILL"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
}

// ZenTaoConfig describes the project management service.
type ZenTaoConfig struct {
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	ReportID        string        `yaml:"report_id" envconfig:"REPORT_ID"`
	LoginTimeout    time.Duration `yaml:"login_timeout" envconfig:"LOGIN_TIMEOUT"`
	FormTimeout     time.Duration `yaml:"form_timeout" envconfig:"FORM_TIMEOUT"`
	ListingTimeout  time.Duration `yaml:"listing_timeout" envconfig:"LISTING_TIMEOUT"`
	NavigationEvery time.Duration `yaml:"navigation_every" envconfig:"NAVIGATION_EVERY"`
}

// BrowserConfig contains browser startup options
type BrowserConfig struct {
	ExecPath        string        `yaml:"exec_path" envconfig:"EXEC_PATH"`
	Headless        bool          `yaml:"headless" envconfig:"HEADLESS"`
	WindowWidth     int           `yaml:"window_width" envconfig:"WINDOW_WIDTH"`
	WindowHeight    int           `yaml:"window_height" envconfig:"WINDOW_HEIGHT"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" envconfig:"PAGE_LOAD_TIMEOUT"`
}

// DownloadConfig controls download detection.
type DownloadConfig struct {
	Dir               string        `yaml:"dir" envconfig:"DIR"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	PollInterval      time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	StabilityInterval time.Duration `yaml:"stability_interval" envconfig:"STABILITY_INTERVAL"`
	StabilitySamples  int           `yaml:"stability_samples" envconfig:"STABILITY_SAMPLES"`
	StabilityTimeout  time.Duration `yaml:"stability_timeout" envconfig:"STABILITY_TIMEOUT"`
	RenameAttempts    int           `yaml:"rename_attempts" envconfig:"RENAME_ATTEMPTS"`
	RenameInterval    time.Duration `yaml:"rename_interval" envconfig:"RENAME_INTERVAL"`
}

// TemplateConfig overrides the export template keyword per target.
type TemplateConfig struct {
	Requirements    string `yaml:"requirements" envconfig:"REQUIREMENTS"`
	UnclosedDefects string `yaml:"unclosed_defects" envconfig:"UNCLOSED_DEFECTS"`
	TestCases       string `yaml:"test_cases" envconfig:"TEST_CASES"`
}

// SettingsConfig locates the persisted UI settings.
type SettingsConfig struct {
	Dir           string   `yaml:"dir" envconfig:"DIR"`
	SensitiveKeys []string `yaml:"sensitive_keys" envconfig:"SENSITIVE_KEYS"`
}

// FillConfig holds the cell mapping used by the ledger fill.
type FillConfig struct {
	Sheet      string            `yaml:"sheet" envconfig:"SHEET"`
	KeyColumn  string            `yaml:"key_column" envconfig:"KEY_COLUMN"`
	FieldCells map[string]string `yaml:"field_cells" envconfig:"FIELD_CELLS"`
	ExtraCells map[string]string `yaml:"extra_cells" envconfig:"EXTRA_CELLS"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	EnableTracing bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
	MetricsFile   string  `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// Load builds the configuration from defaults, then the YAML file (when
// present), then environment variables. Later sources win.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable are left untouched.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths anchors relative directories at Paths.BaseDir
func (c *Config) resolvePaths() error {
	if c.Paths.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.Paths.BaseDir = wd
	}

	c.Download.Dir = c.resolve(c.Download.Dir)
	c.Settings.Dir = c.resolve(c.Settings.Dir)
	c.Paths.LogsDir = c.resolve(c.Paths.LogsDir)
	if c.Logging.FilePath != "" && !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, filepath.Base(c.Logging.FilePath))
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.BaseDir, p)
}

// Validate checks ranges and formats, normalising the logging options.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ZenTao.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid zentao base url: %q", c.ZenTao.BaseURL)
	}
	c.ZenTao.BaseURL = strings.TrimRight(c.ZenTao.BaseURL, "/")

	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("invalid window size: %dx%d", c.Browser.WindowWidth, c.Browser.WindowHeight)
	}

	if c.Download.Dir == "" {
		return fmt.Errorf("download dir must be set")
	}
	if c.Download.Timeout <= 0 || c.Download.PollInterval <= 0 {
		return fmt.Errorf("download timeout and poll interval must be positive")
	}
	if c.Download.StabilitySamples < 1 || c.Download.RenameAttempts < 1 {
		return fmt.Errorf("stability samples and rename attempts must be at least 1")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be within [0,1], got %v", c.Telemetry.SampleRatio)
	}

	return nil
}

// getConfigFilePath returns the first config file found in the common locations
func getConfigFilePath() string {
	locations := []string{
		DefaultConfigFile,
		filepath.Join("configs", DefaultConfigFile),
	}
	if exeDir, err := ExecutableDir(); err == nil {
		locations = append(locations, filepath.Join(exeDir, DefaultConfigFile))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		ZenTao: ZenTaoConfig{
			BaseURL:         DefaultBaseURL,
			LoginTimeout:    30 * time.Second,
			FormTimeout:     30 * time.Second,
			ListingTimeout:  10 * time.Second,
			NavigationEvery: time.Second,
		},
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			PageLoadTimeout: 60 * time.Second,
		},
		Download: DownloadConfig{
			Dir:               DefaultDownloadDir,
			Timeout:           50 * time.Second,
			PollInterval:      2 * time.Second,
			StabilityInterval: time.Second,
			StabilitySamples:  5,
			StabilityTimeout:  30 * time.Second,
			RenameAttempts:    10,
			RenameInterval:    500 * time.Millisecond,
		},
		Templates: TemplateConfig{
			Requirements:    TemplateAcceptance,
			UnclosedDefects: TemplateAcceptanceV1,
			TestCases:       TemplateAcceptance,
		},
		Settings: SettingsConfig{
			Dir:           ".",
			SensitiveKeys: []string{"password", "manager_password"},
		},
		Fill: FillConfig{
			Sheet:     AcceptanceSheet,
			KeyColumn: LedgerKeyColumn,
			FieldCells: map[string]string{
				"项目编号": "D2",
				"项目名称": "H2",
				"项目经理": "U2",
				"内部型号": "D3",
				"产品名称": "H3",
				"产品经理": "U3",
				"负责人":  "U4",
			},
			ExtraCells: map[string]string{
				"测试单号": "O2",
				"申请理由": "D4",
				"开始时间": "H4",
				"结束时间": "O4",
				"测试依据": "E6",
				"测试范围": "E7",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: "zentaocli.log",
		},
		Telemetry: TelemetryConfig{
			EnableTracing: false,
			EnableMetrics: true,
			TraceExporter: "stdout",
			SampleRatio:   1.0,
			Environment:   "development",
		},
		Paths: PathsConfig{
			LogsDir: DefaultLogsDir,
		},
	}
}
