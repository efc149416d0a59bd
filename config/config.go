// config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds a pgx-compatible connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type FTPConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ImporterConfig struct {
	// DestinationDir is where downloaded archives are unpacked.  Empty
	// means a fresh temporary directory per run.
	DestinationDir string `yaml:"destination_dir"`
	// AgencyCSVPath is the canonical, source-controlled agency reference
	// table.  The importer never writes to this file; a run-scoped copy is
	// written next to the extract when new agencies appear.
	AgencyCSVPath string `yaml:"agency_csv_path"`
	// TimeZone is the zone stop timestamps are recorded in.
	TimeZone string `yaml:"time_zone"`
	// PruneBeforeDate removes stops earlier than this date after each load,
	// except for PruneExemptAgency, which reported consistently before the
	// general cutoff.  Format: 2006-01-02.
	PruneBeforeDate   string `yaml:"prune_before_date"`
	PruneExemptAgency string `yaml:"prune_exempt_agency"`
	// OverrideStartDate replaces the computed dataset start date on
	// full-history runs, since pruning makes the earliest years misleading.
	OverrideStartDate string `yaml:"override_start_date"`
	// MonitorEmails receive the new-agency notification during
	// reconciliation.
	MonitorEmails []string `yaml:"monitor_emails"`
	// PublicationPageURL and PublicationDateSelector locate the posted
	// extract date on the state's publication page, so the scheduler can
	// skip a run when nothing new has been posted.  Optional.
	PublicationPageURL      string `yaml:"publication_page_url"`
	PublicationDateSelector string `yaml:"publication_date_selector"`
}

type ComplianceConfig struct {
	LookbackDays int      `yaml:"lookback_days"`
	Recipients   []string `yaml:"recipients"`
}

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	FTP        FTPConfig        `yaml:"ftp"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Importer   ImporterConfig   `yaml:"importer"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

// PruneCutoff parses PruneBeforeDate in the dataset's time zone.
func (c *Config) PruneCutoff() (time.Time, error) {
	loc, err := time.LoadLocation(c.Importer.TimeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load time zone %q: %w", c.Importer.TimeZone, err)
	}
	cutoff, err := time.ParseInLocation("2006-01-02", c.Importer.PruneBeforeDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse prune_before_date %q: %w", c.Importer.PruneBeforeDate, err)
	}
	return cutoff, nil
}

// Load reads configuration from a YAML file, then overlays credentials from
// the environment so secrets can stay out of the file.
func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FTP_PASSWORD"); v != "" {
		cfg.FTP.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}

	if cfg.Importer.TimeZone == "" {
		cfg.Importer.TimeZone = "America/New_York"
	}
	if cfg.Importer.PruneBeforeDate == "" {
		cfg.Importer.PruneBeforeDate = "2002-01-01"
	}
	if cfg.Importer.PruneExemptAgency == "" {
		cfg.Importer.PruneExemptAgency = "NC State Highway Patrol"
	}
	if cfg.Importer.OverrideStartDate == "" {
		cfg.Importer.OverrideStartDate = "Jan 01, 2002"
	}
	if cfg.Compliance.LookbackDays == 0 {
		cfg.Compliance.LookbackDays = 90
	}

	if cfg.Importer.AgencyCSVPath == "" {
		return nil, fmt.Errorf("importer.agency_csv_path is required")
	}

	return cfg, nil
}
