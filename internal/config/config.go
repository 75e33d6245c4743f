package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// Config holds all configuration for the merchant risk service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// DatabaseConfig holds PostgreSQL configuration. Driver selects the storage
// backend: "postgres" or "memory".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSize           int           `mapstructure:"pool_size"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	MaxRetries         int           `mapstructure:"max_retries"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	AssessmentCacheTTL time.Duration `mapstructure:"assessment_cache_ttl"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	AlertsTopic string   `mapstructure:"alerts_topic"`
	AuditTopic  string   `mapstructure:"audit_topic"`
}

// RiskConfig holds the seed risk configuration applied on first start. Once
// a configuration version exists in storage these values are ignored.
type RiskConfig struct {
	Weights map[string]int `mapstructure:"weights"`

	LowMax      int `mapstructure:"low_max"`
	MediumMax   int `mapstructure:"medium_max"`
	CriticalMin int `mapstructure:"critical_min"`

	HighVolumeMin       float64 `mapstructure:"high_volume_min"`
	NewBusinessMaxYears int     `mapstructure:"new_business_max_years"`
	HighRefundRate      float64 `mapstructure:"high_refund_rate"`
	VolumeSpikeRatio    float64 `mapstructure:"volume_spike_ratio"`

	HighRiskCountries  []string `mapstructure:"high_risk_countries"`
	HighRiskIndustries []string `mapstructure:"high_risk_industries"`
	BlacklistedMCCs    []string `mapstructure:"blacklisted_mccs"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	Environment   string  `mapstructure:"environment"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	Debug         bool    `mapstructure:"debug"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	JWTSecret          string   `mapstructure:"jwt_secret"`
	AdminAPIKey        string   `mapstructure:"admin_api_key"`
	APIKeyHeader       string   `mapstructure:"api_key_header"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
}

// SeedRiskConfig builds the initial scoring configuration from the seed
// settings.
func (c *RiskConfig) SeedRiskConfig() *domain.RiskConfig {
	weights := make(map[string]int, len(c.Weights))
	for factor, weight := range c.Weights {
		weights[factor] = weight
	}
	return &domain.RiskConfig{
		Weights: weights,
		Thresholds: domain.RiskThresholds{
			LowMax:      c.LowMax,
			MediumMax:   c.MediumMax,
			CriticalMin: c.CriticalMin,
		},
		FactorThresholds: domain.FactorThresholds{
			HighVolumeMin:       c.HighVolumeMin,
			NewBusinessMaxYears: c.NewBusinessMaxYears,
			HighRefundRate:      c.HighRefundRate,
			VolumeSpikeRatio:    c.VolumeSpikeRatio,
		},
		HighRiskCountries:  c.HighRiskCountries,
		HighRiskIndustries: c.HighRiskIndustries,
		BlacklistedMCCs:    c.BlacklistedMCCs,
	}
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("RISK_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/merchant-risk-service")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults + env
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_request_size", 1048576) // 1MB

	// Database defaults
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "merchant_risk_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 20)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")
	v.SetDefault("redis.assessment_cache_ttl", "1h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.alerts_topic", "banking.risk.alerts")
	v.SetDefault("kafka.audit_topic", "banking.audit.logs")

	// Seed risk configuration defaults
	v.SetDefault("risk.weights", map[string]int{
		domain.FactorHighRiskCountry:   30,
		domain.FactorHighRiskIndustry:  25,
		domain.FactorBlacklistedMCC:    35,
		domain.FactorOwnerPEP:          50,
		domain.FactorSanctionedOwner:   100,
		domain.FactorHighVolume:        15,
		domain.FactorNewBusiness:       10,
		domain.FactorOffshoreStructure: 25,
		domain.FactorCashIntensive:     20,
		domain.FactorComplexOwnership:  15,
		domain.FactorHighRefundRate:    20,
		domain.FactorVolumeSpike:       25,
	})
	v.SetDefault("risk.low_max", 30)
	v.SetDefault("risk.medium_max", 60)
	v.SetDefault("risk.critical_min", 85)
	v.SetDefault("risk.high_volume_min", 1_000_000.0)
	v.SetDefault("risk.new_business_max_years", 2)
	v.SetDefault("risk.high_refund_rate", 0.05)
	v.SetDefault("risk.volume_spike_ratio", 0.5)

	// FATF guidance sample list
	v.SetDefault("risk.high_risk_countries", []string{
		"North Korea", "Iran", "Myanmar", "Syria", "Yemen",
		"Afghanistan", "Albania", "Barbados", "Burkina Faso",
		"Cambodia", "Cayman Islands", "Haiti", "Jamaica",
		"Jordan", "Mali", "Morocco", "Nicaragua", "Pakistan",
		"Panama", "Philippines", "Senegal", "South Sudan",
		"Tanzania", "Turkey", "Uganda", "United Arab Emirates",
		"Vietnam", "Zimbabwe",
	})
	v.SetDefault("risk.high_risk_industries", []string{
		"Gambling", "Casino", "Gaming",
		"CurrencyExchange", "MoneyServices", "CryptoExchange",
		"RealEstate", "HighValueGoods", "JewelryDealer",
		"ArtDealer", "PreciousMetals",
		"Arms", "Defense", "Weapons",
		"AdultEntertainment",
		"CharityNonProfit",
		"PaymentProcessor", "MoneyRemittance",
		"TobaccoAlcohol",
		"UsedCarDealer", "BoatDealer",
		"TravelAgency",
		"LegalServices", "AccountingServices",
	})
	v.SetDefault("risk.blacklisted_mccs", []string{
		"7995", // Gambling
		"7994", // Video game arcades
		"7801", // Government-owned lotteries
		"7802", // Government-licensed horse/dog racing
		"5933", // Pawn shops
		"5944", // Jewelry stores
		"6051", // Foreign currency exchange
		"6211", // Security brokers/dealers
		"4829", // Wire transfers
		"6540", // Stored value purchases
	})

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "merchant-risk-service")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 0.1)
	v.SetDefault("telemetry.debug", false)

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.admin_api_key", "")
	v.SetDefault("security.api_key_header", "X-API-Key")
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limit_per_minute", 1000)
}
