// Package config resolves the runtime configuration from flags, environment,
// the keychain and saved preferences.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// Environment variables read by Load. The API key variables are handled by
// the key lookup.
const (
	EnvDefaultRegion   = "BLUETERM_DEFAULT_REGION"
	EnvRefreshInterval = "BLUETERM_REFRESH_INTERVAL"
	EnvDebug           = "BLUETERM_DEBUG"
	EnvFamily          = "BLUETERM_FAMILY"
)

const (
	DefaultRegion          = "us-south"
	DefaultRefreshInterval = 30 * time.Second
)

// Config is the validated runtime configuration.
type Config struct {
	APIKey          string        `validate:"required,min=20"`
	DefaultRegion   string        `validate:"required,region"`
	RefreshInterval time.Duration `validate:"gte=10s,lte=1h"`
	Family          cloud.Family  `validate:"required"`
	Debug           bool
}

// String never shows the full API key.
func (c Config) String() string {
	return fmt.Sprintf("region=%s family=%s refresh=%s debug=%t api_key=%s",
		c.DefaultRegion, c.Family, c.RefreshInterval, c.Debug, internal.MaskSecret(c.APIKey))
}

// Sources are the inputs to Load. Zero values mean "not set".
type Sources struct {
	// Flag values.
	APIKey         string
	Region         string
	RefreshSeconds int
	Family         string
	Debug          bool

	// Saved preferences.
	LastRegion string
	LastFamily string

	// LookupKey resolves the API key from the flag value, the environment
	// and the keychain.
	LookupKey func(explicit string) (string, error)
}

var regionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		return regionPattern.MatchString(fl.Field().String())
	})
	return v
}

// Load resolves and validates the configuration. Precedence is flags, then
// environment, then keychain or saved preferences, then defaults.
func Load(src Sources) (*Config, error) {
	cfg := &Config{
		DefaultRegion:   DefaultRegion,
		RefreshInterval: DefaultRefreshInterval,
		Family:          cloud.FamilyCompute,
	}

	if src.LookupKey != nil {
		key, err := src.LookupKey(src.APIKey)
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
	} else {
		cfg.APIKey = strings.TrimSpace(src.APIKey)
	}

	cfg.DefaultRegion = firstNonEmpty(src.Region, os.Getenv(EnvDefaultRegion), src.LastRegion, DefaultRegion)

	family := firstNonEmpty(src.Family, os.Getenv(EnvFamily), src.LastFamily)
	if family != "" {
		f, err := cloud.ParseFamily(family)
		if err != nil {
			return nil, err
		}
		cfg.Family = f
	}

	switch {
	case src.RefreshSeconds > 0:
		cfg.RefreshInterval = time.Duration(src.RefreshSeconds) * time.Second
	case os.Getenv(EnvRefreshInterval) != "":
		secs, err := strconv.Atoi(os.Getenv(EnvRefreshInterval))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRefreshInterval, err)
		}
		cfg.RefreshInterval = time.Duration(secs) * time.Second
	}

	cfg.Debug = src.Debug
	if !cfg.Debug {
		if v := os.Getenv(EnvDebug); v != "" {
			debug, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", EnvDebug, err)
			}
			cfg.Debug = debug
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "APIKey":
		if fe.Tag() == "required" {
			return "an IBM Cloud API key is required"
		}
		return "the API key looks too short"
	case "DefaultRegion":
		return fmt.Sprintf("region %q is not a valid region name", fe.Value())
	case "RefreshInterval":
		return "refresh interval must be between 10s and 1h"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
