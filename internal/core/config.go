package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,如 MAPSHARVEST_BROWSER_PROXY
const EnvPrefix = "MAPSHARVEST"

// Config 应用程序配置
type Config struct {
	Search    SearchConfig          `mapstructure:"search"`
	Browser   BrowserConfig         `mapstructure:"browser"`
	Scroll    models.ScrollConfig   `mapstructure:"scroll"`
	Extract   models.ExtractConfig  `mapstructure:"extract"`
	Harvest   models.HarvestConfig  `mapstructure:"harvest"`
	Dedupe    models.DedupeConfig   `mapstructure:"dedupe"`
	Export    ExportConfig          `mapstructure:"export"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Schedule  ScheduleConfig        `mapstructure:"schedule"`
	Server    ServerConfig          `mapstructure:"server"`
	Resources ResourcesConfig       `mapstructure:"resources"`
	Selectors models.SelectorConfig `mapstructure:"selectors"`
}

// SearchConfig 搜索配置
type SearchConfig struct {
	Category string `mapstructure:"category"`
	Region   string `mapstructure:"region"`
	Country  string `mapstructure:"country"`
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

// BrowserConfig 浏览器会话配置
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	Stealth         bool          `mapstructure:"stealth"`
	Proxy           string        `mapstructure:"proxy"`
	UserDataDir     string        `mapstructure:"user_data_dir"`
	Bin             string        `mapstructure:"bin"`
	UserAgents      []string      `mapstructure:"user_agents"`
	HeaderFile      string        `mapstructure:"header_file"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
	NavigateRetries int           `mapstructure:"navigate_retries"`
	LaunchRetries   int           `mapstructure:"launch_retries"`
	InitialWait     time.Duration `mapstructure:"initial_wait"`
	PausePoll       time.Duration `mapstructure:"pause_poll"`
}

// ExportConfig 导出配置
type ExportConfig struct {
	Dir           string   `mapstructure:"dir"`
	Formats       []string `mapstructure:"formats"`
	Filename      string   `mapstructure:"filename"` // 为空时由搜索词生成
	Timestamp     bool     `mapstructure:"timestamp"`
	NameContains  string   `mapstructure:"name_contains"`
	PhonePrefix   string   `mapstructure:"phone_prefix"`
	SnapshotEvery int      `mapstructure:"snapshot_every"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	NoColor  bool           `mapstructure:"no_color"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ScheduleConfig 定时运行配置, Interval 为0表示不定时
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig 控制接口配置
type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"` // 为空时不校验
}

// ResourcesConfig 启动前资源检查
type ResourcesConfig struct {
	MinMemoryMB      int64 `mapstructure:"min_memory_mb"`
	CPULoadThreshold int   `mapstructure:"cpu_load_threshold"`
}

// LoadConfig 加载配置文件
// configPath 为空时依次搜索 ./configs, ., ~/.mapsharvest 下的 config.yaml
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mapsharvest"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	run := models.DefaultRunConfig()

	// 搜索
	v.SetDefault("search.category", "")
	v.SetDefault("search.region", "")
	v.SetDefault("search.country", "")
	v.SetDefault("search.base_url", run.SearchBaseURL)
	v.SetDefault("search.language", run.Language)

	// 浏览器
	v.SetDefault("browser.headless", run.Headless)
	v.SetDefault("browser.stealth", run.Stealth)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_agents", run.UserAgents)
	v.SetDefault("browser.header_file", "")
	v.SetDefault("browser.navigate_timeout", run.NavigateTimeout)
	v.SetDefault("browser.navigate_retries", run.NavigateRetries)
	v.SetDefault("browser.launch_retries", run.LaunchRetries)
	v.SetDefault("browser.initial_wait", run.InitialWait)
	v.SetDefault("browser.pause_poll", run.PausePoll)

	// 滚动收敛
	v.SetDefault("scroll.stable_threshold", run.Scroll.StableThreshold)
	v.SetDefault("scroll.max_probes", run.Scroll.MaxProbes)
	v.SetDefault("scroll.delta_y", run.Scroll.DeltaY)
	v.SetDefault("scroll.pause_min", run.Scroll.PauseMin)
	v.SetDefault("scroll.pause_max", run.Scroll.PauseMax)

	// 详情提取
	v.SetDefault("extract.click_retries", run.Extract.ClickRetries)
	v.SetDefault("extract.click_retry_delay", run.Extract.ClickRetryDelay)
	v.SetDefault("extract.click_timeout", run.Extract.ClickTimeout)
	v.SetDefault("extract.settle_min", run.Extract.SettleMin)
	v.SetDefault("extract.settle_max", run.Extract.SettleMax)
	v.SetDefault("extract.return_wait", run.Extract.ReturnWait)
	v.SetDefault("extract.validate_phone", run.Extract.ValidatePhone)
	v.SetDefault("extract.phone_region", run.Extract.PhoneRegion)

	// 邮箱采集
	v.SetDefault("harvest.mode", string(run.Harvest.Mode))
	v.SetDefault("harvest.paths", run.Harvest.Paths)
	v.SetDefault("harvest.timeout", run.Harvest.Timeout)
	v.SetDefault("harvest.interval", run.Harvest.Interval)
	v.SetDefault("harvest.exclude", []string{})

	// 去重
	v.SetDefault("dedupe.key", run.Dedupe.Key)
	v.SetDefault("dedupe.policy", string(run.Dedupe.Policy))

	// 导出
	v.SetDefault("export.dir", "output")
	v.SetDefault("export.formats", []string{"csv", "json", "xlsx"})
	v.SetDefault("export.filename", "")
	v.SetDefault("export.timestamp", true)
	v.SetDefault("export.name_contains", "")
	v.SetDefault("export.phone_prefix", "")
	v.SetDefault("export.snapshot_every", run.SnapshotEvery)

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.no_color", false)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 定时与控制接口
	v.SetDefault("schedule.interval", time.Duration(0))
	v.SetDefault("server.addr", "127.0.0.1:8090")
	v.SetDefault("server.token", "")

	// 资源检查
	v.SetDefault("resources.min_memory_mb", 300)
	v.SetDefault("resources.cpu_load_threshold", 95)

	// 定位器链
	sel := run.Selectors
	v.SetDefault("selectors.listing", []string(sel.Listing))
	v.SetDefault("selectors.name", []string(sel.Name))
	v.SetDefault("selectors.address", []string(sel.Address))
	v.SetDefault("selectors.phone", []string(sel.Phone))
	v.SetDefault("selectors.website", []string(sel.Website))
	v.SetDefault("selectors.show_more", []string(sel.ShowMore))
	v.SetDefault("selectors.auto_detect", sel.AutoDetect)
}

// Query 配置中的搜索词
func (c *Config) Query() models.QueryTerms {
	return models.QueryTerms{
		Category: strings.TrimSpace(c.Search.Category),
		Region:   strings.TrimSpace(c.Search.Region),
		Country:  strings.TrimSpace(c.Search.Country),
	}
}

// RunConfig 生成一次运行的配置
func (c *Config) RunConfig(query models.QueryTerms) models.RunConfig {
	return models.RunConfig{
		Query:           query,
		SearchBaseURL:   c.Search.BaseURL,
		Language:        c.Search.Language,
		Proxy:           c.Browser.Proxy,
		UserAgents:      append([]string(nil), c.Browser.UserAgents...),
		UserDataDir:     c.Browser.UserDataDir,
		Headless:        c.Browser.Headless,
		Stealth:         c.Browser.Stealth,
		BrowserBin:      c.Browser.Bin,
		NavigateTimeout: c.Browser.NavigateTimeout,
		NavigateRetries: c.Browser.NavigateRetries,
		LaunchRetries:   c.Browser.LaunchRetries,
		InitialWait:     c.Browser.InitialWait,
		PausePoll:       c.Browser.PausePoll,
		Scroll:          c.Scroll,
		Extract:         c.Extract,
		Harvest:         c.Harvest,
		Dedupe:          c.Dedupe,
		Selectors:       c.Selectors,
		SnapshotEvery:   c.Export.SnapshotEvery,
	}
}

// LogConfig 生成日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		NoColor:    c.Logging.NoColor,
	}
}

// ResourceMonitorConfig 生成资源检查配置
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	return crawlers.ResourceMonitorConfig{
		MinAvailableMemory: c.Resources.MinMemoryMB * 1024 * 1024,
		CPULoadThreshold:   c.Resources.CPULoadThreshold,
	}
}
