package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	// Play Developer API access. The service account secret is handed to the
	// credential resolver as an opaque string; validation happens there.
	AndroidPackageName          string `mapstructure:"ANDROID_PACKAGE_NAME"`
	PlayServiceAccountJSON      string `mapstructure:"PLAY_SERVICE_ACCOUNT_JSON"`
	LifetimeProductID           string `mapstructure:"LIFETIME_PRODUCT_ID"`
	SubscriptionMonthlyBasePlan string `mapstructure:"SUBSCRIPTION_MONTHLY_BASE_PLAN"`
	SubscriptionYearlyBasePlan  string `mapstructure:"SUBSCRIPTION_YEARLY_BASE_PLAN"`
	MonthlyTrialOfferID         string `mapstructure:"MONTHLY_TRIAL_OFFER_ID"`

	RevenueCatWebhookSecret string `mapstructure:"REVENUECAT_WEBHOOK_SECRET"`

	ClientURL string `mapstructure:"CLIENT_URL"`
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("LIFETIME_PRODUCT_ID", "showseek_premium_lifetime")
	viper.SetDefault("SUBSCRIPTION_MONTHLY_BASE_PLAN", "premium-monthly")
	viper.SetDefault("SUBSCRIPTION_YEARLY_BASE_PLAN", "premium-yearly")
	viper.SetDefault("MONTHLY_TRIAL_OFFER_ID", "monthly-free-trial")

	// Bind environment variables
	viper.BindEnv("PORT")
	viper.BindEnv("GIN_MODE")
	viper.BindEnv("FIREBASE_PROJECT_ID")
	viper.BindEnv("GOOGLE_APPLICATION_CREDENTIALS")
	viper.BindEnv("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64")
	viper.BindEnv("ANDROID_PACKAGE_NAME")
	viper.BindEnv("PLAY_SERVICE_ACCOUNT_JSON")
	viper.BindEnv("LIFETIME_PRODUCT_ID")
	viper.BindEnv("SUBSCRIPTION_MONTHLY_BASE_PLAN")
	viper.BindEnv("SUBSCRIPTION_YEARLY_BASE_PLAN")
	viper.BindEnv("MONTHLY_TRIAL_OFFER_ID")
	viper.BindEnv("REVENUECAT_WEBHOOK_SECRET")
	viper.BindEnv("CLIENT_URL")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	// Validate required fields
	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is required")
	}
	if cfg.GoogleApplicationCredentials == "" && cfg.FirebaseServiceAccountJSONBase64 == "" {
		return nil, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
	}
	if cfg.AndroidPackageName == "" {
		return nil, errors.New("ANDROID_PACKAGE_NAME is required")
	}
	if cfg.RevenueCatWebhookSecret == "" {
		return nil, errors.New("REVENUECAT_WEBHOOK_SECRET is required")
	}

	return &cfg, nil
}
