package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Store    StoreConfig    `mapstructure:"store"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	LogLevel string         `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 管理介面伺服器配置（serve 模式）
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SourceConfig 第三方食譜來源配置
type SourceConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

// CampaignConfig 匯入活動配置：排程器整個生命週期持有
type CampaignConfig struct {
	StartDate       string        `mapstructure:"start_date"` // YYYY-MM-DD
	TotalDays       int           `mapstructure:"total_days"`
	DailyQuota      int           `mapstructure:"daily_quota"`
	MinQualityScore float64       `mapstructure:"min_quality_score"`
	MaxRetries      int           `mapstructure:"max_retries"`
	CallDelay       time.Duration `mapstructure:"call_delay"`
}

// Start 解析活動起始日期
func (c CampaignConfig) Start() (time.Time, error) {
	return time.Parse("2006-01-02", c.StartDate)
}

// StoreConfig 食譜儲存層配置
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	SeedLimit int    `mapstructure:"seed_limit"` // 去重索引每個餐別載入的既有食譜上限
}

// DedupConfig 去重引擎配置。門檻值為經驗值，保留為設定預設而非常數，
// 以便領域專家覆核調整。
type DedupConfig struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"` // similar 判定門檻（0-100）
	VariantOverlap      float64       `mapstructure:"variant_overlap"`      // variant 判定的食材重疊比例
	RedisEnabled        bool          `mapstructure:"redis_enabled"`
	RedisAddr           string        `mapstructure:"redis_addr"`
	RedisTTL            time.Duration `mapstructure:"redis_ttl"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（允許不存在）
	_ = godotenv.Load()

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("source.api_key", "SPOONACULAR_API_KEY")
	viper.BindEnv("source.base_url", "SPOONACULAR_BASE_URL")
	viper.BindEnv("campaign.start_date", "CAMPAIGN_START_DATE")
	viper.BindEnv("campaign.daily_quota", "CAMPAIGN_DAILY_QUOTA")
	viper.BindEnv("campaign.min_quality_score", "CAMPAIGN_MIN_QUALITY_SCORE")
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("dedup.redis_enabled", "DEDUP_REDIS_ENABLED")
	viper.BindEnv("dedup.redis_addr", "DEDUP_REDIS_ADDR")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-importer")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// 來源設定
	viper.SetDefault("source.base_url", "https://api.spoonacular.com")
	viper.SetDefault("source.timeout", "30s")
	viper.SetDefault("source.page_size", 20)

	// 活動設定
	viper.SetDefault("campaign.total_days", 20)
	viper.SetDefault("campaign.daily_quota", 25)
	viper.SetDefault("campaign.min_quality_score", 30)
	viper.SetDefault("campaign.max_retries", 3)
	viper.SetDefault("campaign.call_delay", "1s")

	// 儲存設定
	viper.SetDefault("store.path", "recipes.db")
	viper.SetDefault("store.seed_limit", 200)

	// 去重設定
	viper.SetDefault("dedup.similarity_threshold", 85)
	viper.SetDefault("dedup.variant_overlap", 0.7)
	viper.SetDefault("dedup.redis_enabled", false)
	viper.SetDefault("dedup.redis_addr", "localhost:6379")
	viper.SetDefault("dedup.redis_ttl", "720h")
}

// validateConfig 驗證設定：缺少必要活動參數屬於致命錯誤，必須在任何場次開始前失敗
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證活動設定
	if config.Campaign.StartDate == "" {
		return fmt.Errorf("campaign start date is required")
	}
	if _, err := config.Campaign.Start(); err != nil {
		return fmt.Errorf("invalid campaign start date %q: %w", config.Campaign.StartDate, err)
	}
	if config.Campaign.TotalDays <= 0 {
		return fmt.Errorf("invalid campaign total days")
	}
	if config.Campaign.DailyQuota <= 0 {
		return fmt.Errorf("invalid campaign daily quota")
	}
	if config.Campaign.MinQualityScore < 0 || config.Campaign.MinQualityScore > 100 {
		return fmt.Errorf("campaign min quality score must be within 0-100")
	}
	if config.Campaign.MaxRetries < 0 {
		return fmt.Errorf("invalid campaign max retries")
	}

	// 驗證儲存設定
	if config.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if config.Store.SeedLimit <= 0 {
		return fmt.Errorf("invalid store seed limit")
	}

	// 驗證去重設定
	if config.Dedup.SimilarityThreshold <= 0 || config.Dedup.SimilarityThreshold > 100 {
		return fmt.Errorf("dedup similarity threshold must be within (0, 100]")
	}
	if config.Dedup.VariantOverlap <= 0 || config.Dedup.VariantOverlap > 1 {
		return fmt.Errorf("dedup variant overlap must be within (0, 1]")
	}

	return nil
}
