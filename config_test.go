package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if config.BaseDownloadPath != "./downloads" {
		t.Errorf("Expected BaseDownloadPath to be './downloads', got '%s'", config.BaseDownloadPath)
	}

	if config.OperationTimeout != 30 {
		t.Errorf("Expected OperationTimeout to be 30, got %d", config.OperationTimeout)
	}

	if config.ManualTimeout != 60 {
		t.Errorf("Expected ManualTimeout to be 60, got %d", config.ManualTimeout)
	}

	if config.Headless != false {
		t.Error("Expected Headless to be false")
	}

	if config.Incognito != true {
		t.Error("Expected Incognito to be true")
	}

	if config.EmailDaysBack != 30 {
		t.Errorf("Expected EmailDaysBack to be 30, got %d", config.EmailDaysBack)
	}

	if config.MinTypeDelayMs <= 0 || config.MaxTypeDelayMs < config.MinTypeDelayMs {
		t.Errorf("Typing delay range is not sane: %d..%d", config.MinTypeDelayMs, config.MaxTypeDelayMs)
	}

	if len(config.Companies) == 0 {
		t.Fatal("Expected a starter company in the default config")
	}
	company := config.Companies[0]
	if company.Retailers["walmart"] == nil || company.Retailers["amazon"] == nil {
		t.Error("Expected starter company to reference both supported retailers")
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test-config.yaml")

	config := DefaultConfig()
	config.BaseDownloadPath = filepath.Join(tempDir, "invoices")
	config.OperationTimeout = 60
	config.Headless = true
	config.Companies[0].Retailers["walmart"].Username = "buyer@example.com"

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.BaseDownloadPath != config.BaseDownloadPath {
		t.Errorf("BaseDownloadPath mismatch: got '%s'", loaded.BaseDownloadPath)
	}
	if loaded.OperationTimeout != 60 {
		t.Errorf("Expected OperationTimeout 60, got %d", loaded.OperationTimeout)
	}
	if !loaded.Headless {
		t.Error("Expected Headless to survive a round trip")
	}
	if loaded.Companies[0].Retailers["walmart"].Username != "buyer@example.com" {
		t.Error("Retailer credentials did not survive a round trip")
	}
}

func TestLoadConfigCreatesStarterFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fresh.yaml")

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed on a missing file: %v", err)
	}
	if config == nil {
		t.Fatal("LoadConfig returned nil config")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Starter config file was not written")
	}
	if !config.Bootstrapped {
		t.Error("A freshly written config should be marked bootstrapped")
	}

	again, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Reloading the starter config failed: %v", err)
	}
	if again.Bootstrapped {
		t.Error("An existing config must not be marked bootstrapped")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TESTCO_WALMART_USERNAME", "env-user@example.com")
	t.Setenv("TESTCO_WALMART_PASSWORD", "env-secret")

	configPath := filepath.Join(t.TempDir(), "env.yaml")
	config := &Config{
		BaseDownloadPath: "./downloads",
		Companies: []CompanyConfig{
			{
				Name: "TestCo",
				Retailers: map[string]*RetailerCredentials{
					"walmart": {
						Username: "${TESTCO_WALMART_USERNAME}",
						Password: "${TESTCO_WALMART_PASSWORD}",
					},
				},
			},
		},
	}
	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	creds := loaded.Companies[0].Retailers["walmart"]
	if creds.Username != "env-user@example.com" {
		t.Errorf("Expected username from environment, got '%s'", creds.Username)
	}
	if creds.Password != "env-secret" {
		t.Errorf("Expected password from environment, got '%s'", creds.Password)
	}
}

func TestLoadConfigRejectsUnknownRetailer(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	config := &Config{
		Companies: []CompanyConfig{
			{
				Name: "TestCo",
				Retailers: map[string]*RetailerCredentials{
					"sears": {Username: "x", Password: "y"},
				},
			},
		},
	}
	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("Expected an error for an unknown retailer id")
	}
}

func TestCompanyByName(t *testing.T) {
	config := &Config{
		Companies: []CompanyConfig{
			{Name: "Acme Corp"},
			{Name: "Globex"},
		},
	}

	if _, ok := config.CompanyByName("globex"); !ok {
		t.Error("Expected case-insensitive company lookup to succeed")
	}
	if _, ok := config.CompanyByName("Initech"); ok {
		t.Error("Expected lookup of an unconfigured company to fail")
	}
}

func TestOutputDir(t *testing.T) {
	config := &Config{BaseDownloadPath: "/data/invoices"}

	explicit := CompanyConfig{Name: "Acme", OutputDirectory: "/mnt/acme"}
	if got := config.OutputDir(explicit); got != "/mnt/acme" {
		t.Errorf("Expected explicit output directory, got '%s'", got)
	}

	implicit := CompanyConfig{Name: "Acme"}
	want := filepath.Join("/data/invoices", "Acme")
	if got := config.OutputDir(implicit); got != want {
		t.Errorf("Expected '%s', got '%s'", want, got)
	}
}
