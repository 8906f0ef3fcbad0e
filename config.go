package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseDownloadPath string `yaml:"base_download_path"`

	Headless          bool `yaml:"headless"`
	PersistentBrowser bool `yaml:"persistent_browser"`
	Incognito         bool `yaml:"incognito"`

	OperationTimeout int `yaml:"operation_timeout"` // seconds, per wait
	ManualTimeout    int `yaml:"manual_timeout"`    // seconds, best-effort manual window

	ManualMode bool `yaml:"manual_mode"`
	PureManual bool `yaml:"pure_manual"`

	EmailDaysBack int `yaml:"email_days_back"`

	MinTypeDelayMs int `yaml:"min_type_delay_ms"`
	MaxTypeDelayMs int `yaml:"max_type_delay_ms"`

	MinPacingDelay float64 `yaml:"min_pacing_delay"` // seconds between orders
	MaxPacingDelay float64 `yaml:"max_pacing_delay"`

	DebugMode bool `yaml:"debug_mode"`

	Companies []CompanyConfig `yaml:"companies"`

	// CLI-scoped switches, never persisted.
	EmailOnly      bool   `yaml:"-"`
	WebOnly        bool   `yaml:"-"`
	RetailerFilter string `yaml:"-"`
	FullRescan     bool   `yaml:"-"`

	// Bootstrapped marks a config that was just written from defaults.
	Bootstrapped bool `yaml:"-"`
}

type CompanyConfig struct {
	Name            string `yaml:"name"`
	OutputDirectory string `yaml:"output_directory"`

	Email *EmailConfig `yaml:"email,omitempty"`

	// Retailers maps a retailer id (walmart, amazon) to portal credentials.
	Retailers map[string]*RetailerCredentials `yaml:"retailers,omitempty"`
}

type EmailConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	IMAPServer string `yaml:"imap_server"`
	IMAPPort   int    `yaml:"imap_port"`
}

type RetailerCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseDownloadPath: "./downloads",
		Headless:         false,
		Incognito:        true,
		OperationTimeout: 30,
		ManualTimeout:    60,
		EmailDaysBack:    30,
		MinTypeDelayMs:   40,
		MaxTypeDelayMs:   160,
		MinPacingDelay:   1.0,
		MaxPacingDelay:   3.0,
		Companies: []CompanyConfig{
			{
				Name:            "ExampleCo",
				OutputDirectory: filepath.Join(".", "downloads", "ExampleCo"),
				Email: &EmailConfig{
					Address:    "${EXAMPLECO_EMAIL}",
					Password:   "${EXAMPLECO_EMAIL_PASSWORD}",
					IMAPServer: "imap.gmail.com",
					IMAPPort:   993,
				},
				Retailers: map[string]*RetailerCredentials{
					"walmart": {
						Username: "${EXAMPLECO_WALMART_USERNAME}",
						Password: "${EXAMPLECO_WALMART_PASSWORD}",
					},
					"amazon": {
						Username: "${EXAMPLECO_AMAZON_USERNAME}",
						Password: "${EXAMPLECO_AMAZON_PASSWORD}",
					},
				},
			},
		},
	}
}

// LoadConfig reads the yaml config, writing a starter file when none exists.
// Secrets are referenced as ${VAR} in yaml and resolved from the environment
// after .env is loaded, so credentials never live in the config file itself.
func LoadConfig(path string) (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(path); err != nil {
			return nil, fmt.Errorf("failed to write starter config: %w", err)
		}
		config.Bootstrapped = true
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	config.Companies = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.expandEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) expandEnv() {
	for i := range c.Companies {
		company := &c.Companies[i]
		if company.Email != nil {
			company.Email.Address = os.ExpandEnv(company.Email.Address)
			company.Email.Password = os.ExpandEnv(company.Email.Password)
		}
		for _, creds := range company.Retailers {
			if creds == nil {
				continue
			}
			creds.Username = os.ExpandEnv(creds.Username)
			creds.Password = os.ExpandEnv(creds.Password)
		}
	}
}

func (c *Config) validate() error {
	for i := range c.Companies {
		company := &c.Companies[i]
		if strings.TrimSpace(company.Name) == "" {
			return fmt.Errorf("company %d has no name", i+1)
		}
		for id := range company.Retailers {
			if _, ok := retailerSpecs[id]; !ok {
				return fmt.Errorf("company %q references unknown retailer %q (known: %s)",
					company.Name, id, strings.Join(retailerIDs(), ", "))
			}
		}
		if company.Email != nil && company.Email.IMAPPort == 0 {
			company.Email.IMAPPort = 993
		}
	}
	return nil
}

// CompanyByName finds a configured company, case-insensitively.
func (c *Config) CompanyByName(name string) (CompanyConfig, bool) {
	for _, company := range c.Companies {
		if strings.EqualFold(company.Name, name) {
			return company, true
		}
	}
	return CompanyConfig{}, false
}

// OutputDir resolves the company's output directory, defaulting to a folder
// named after the company under the base download path.
func (c *Config) OutputDir(company CompanyConfig) string {
	if company.OutputDirectory != "" {
		return company.OutputDirectory
	}
	return filepath.Join(c.BaseDownloadPath, company.Name)
}
