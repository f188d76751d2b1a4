package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tablemind/internal/models"
)

// DefaultPath is used when neither --config nor TABLEMIND_CONFIG is set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	} `yaml:"log"`

	Database struct {
		Driver        string `yaml:"driver" validate:"omitempty,oneof=memory sqlite mongo failover"`
		Path          string `yaml:"path"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
	} `yaml:"redis"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		ChatIDs  []int64 `yaml:"chat_ids"`
		Debug    bool    `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port" validate:"min=0,max=65535"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port" validate:"min=0,max=65535"`
	} `yaml:"monitoring"`

	Scheduling struct {
		BufferMinutes          int   `yaml:"buffer_minutes" validate:"min=0"`
		DefaultDurationMinutes int   `yaml:"default_duration_minutes" validate:"min=0"`
		AutoAssign             *bool `yaml:"auto_assign"`
	} `yaml:"scheduling"`

	Monitor struct {
		Enabled             bool `yaml:"enabled"`
		IntervalSeconds     int  `yaml:"interval_seconds" validate:"min=0"`
		LookaheadMinutes    int  `yaml:"lookahead_minutes" validate:"min=0"`
		UpcomingCooldownMin int  `yaml:"upcoming_cooldown_minutes" validate:"min=0"`
		CleaningCooldownMin int  `yaml:"cleaning_cooldown_minutes" validate:"min=0"`
		StaffingCooldownMin int  `yaml:"staffing_cooldown_minutes" validate:"min=0"`
		StaffingMinUpcoming int  `yaml:"staffing_min_upcoming" validate:"min=0"`
		StaffingMinOnShift  int  `yaml:"staffing_min_on_shift" validate:"min=0"`
		SharedCooldowns     bool `yaml:"shared_cooldowns"`
	} `yaml:"monitor"`

	Notify struct {
		RatePerSecond float64 `yaml:"rate_per_second" validate:"min=0"`
		Burst         int     `yaml:"burst" validate:"min=0"`
		MaxRetries    int     `yaml:"max_retries" validate:"min=0"`
	} `yaml:"notify"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours" validate:"min=0"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days" validate:"min=0"`
		S3            struct {
			Bucket string `yaml:"bucket"`
			Prefix string `yaml:"prefix"`
			Region string `yaml:"region"`
		} `yaml:"s3"`
	} `yaml:"backup"`

	Report struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours" validate:"min=0"`
		ExcelDir      string `yaml:"excel_dir"`
		Sheets        struct {
			CredentialsFile string `yaml:"credentials_file"`
			SpreadsheetID   string `yaml:"spreadsheet_id"`
		} `yaml:"sheets"`
	} `yaml:"report"`

	// Restaurants are seeded into the store on serve when missing.
	Restaurants []RestaurantSeed `yaml:"restaurants" validate:"dive"`
}

// Path resolves the config file location from the flag value and the environment.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("TABLEMIND_CONFIG"); env != "" {
		return env
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/tablemind.db"
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Driver != "memory" && cfg.Database.Driver != "mongo" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Validate checks field ranges and the settings that depend on each other.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("config: %s failed %q", ve[0].Namespace(), ve[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	var problems []string
	switch c.Database.Driver {
	case "mongo", "failover":
		if c.Database.MongoURI == "" {
			problems = append(problems, "database.mongo_uri is required for driver "+c.Database.Driver)
		}
	}
	if c.Monitor.SharedCooldowns && c.Redis.Address == "" {
		problems = append(problems, "monitor.shared_cooldowns needs redis.address")
	}
	if c.Backup.S3.Bucket != "" && c.Backup.S3.Region == "" {
		problems = append(problems, "backup.s3.region is required with a bucket")
	}
	if c.Report.Sheets.SpreadsheetID != "" && c.Report.Sheets.CredentialsFile == "" {
		problems = append(problems, "report.sheets.credentials_file is required with a spreadsheet")
	}
	if len(c.Telegram.ChatIDs) > 0 && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		problems = append(problems, "telegram.bot_token is required with chat_ids")
	}
	seen := make(map[string]struct{}, len(c.Restaurants))
	for i, r := range c.Restaurants {
		if _, dup := seen[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("restaurants[%d].id %q is duplicated", i, r.ID))
		}
		seen[r.ID] = struct{}{}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func minutes(v, def int) time.Duration {
	if v <= 0 {
		return time.Duration(def) * time.Minute
	}
	return time.Duration(v) * time.Minute
}

func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}

// TableBuffer is the gap kept on each side of a reservation. Zero means the one hour default;
// there is no way to switch the buffer off.
func (c *Config) TableBuffer() time.Duration {
	return minutes(c.Scheduling.BufferMinutes, 60)
}

func (c *Config) DefaultDuration() time.Duration {
	return minutes(c.Scheduling.DefaultDurationMinutes, models.DefaultDurationMinutes)
}

func (c *Config) AutoAssign() bool {
	if c.Scheduling.AutoAssign == nil {
		return true
	}
	return *c.Scheduling.AutoAssign
}

func (c *Config) MonitorInterval() time.Duration {
	if c.Monitor.IntervalSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

func (c *Config) MonitorLookahead() time.Duration {
	return minutes(c.Monitor.LookaheadMinutes, 30)
}

func (c *Config) UpcomingCooldown() time.Duration {
	return minutes(c.Monitor.UpcomingCooldownMin, 20)
}

func (c *Config) CleaningCooldown() time.Duration {
	return minutes(c.Monitor.CleaningCooldownMin, 15)
}

func (c *Config) StaffingCooldown() time.Duration {
	return minutes(c.Monitor.StaffingCooldownMin, 30)
}

func (c *Config) StaffingMinUpcoming() int {
	if c.Monitor.StaffingMinUpcoming <= 0 {
		return 3
	}
	return c.Monitor.StaffingMinUpcoming
}

func (c *Config) StaffingMinOnShift() int {
	if c.Monitor.StaffingMinOnShift <= 0 {
		return 2
	}
	return c.Monitor.StaffingMinOnShift
}

func (c *Config) NotifyRate() float64 {
	if c.Notify.RatePerSecond <= 0 {
		return 1
	}
	return c.Notify.RatePerSecond
}

func (c *Config) NotifyBurst() int {
	if c.Notify.Burst <= 0 {
		return 5
	}
	return c.Notify.Burst
}

func (c *Config) NotifyMaxRetries() int {
	if c.Notify.MaxRetries <= 0 {
		return 3
	}
	return c.Notify.MaxRetries
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) BackupDir() string {
	if c.Backup.Path == "" {
		return filepath.Join(filepath.Dir(c.Database.Path), "backups")
	}
	return c.Backup.Path
}

func (c *Config) ReportInterval() time.Duration {
	if c.Report.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Report.IntervalHours) * time.Hour
}

func (c *Config) ReportDir() string {
	if c.Report.ExcelDir == "" {
		return "reports"
	}
	return c.Report.ExcelDir
}
