// Package catalog is the authoritative source of the validation sets the
// settings core checks user input against: supported locales, currencies,
// notification and integration keys, plus the seeded defaults for new users
// and organizations. The sets are configuration, not code - a deployment can
// override the embedded defaults with its own YAML file.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// fileFormat is the on-disk YAML shape of a catalog.
type fileFormat struct {
	DefaultLocale   string `yaml:"default_locale"`
	DefaultTimezone string `yaml:"default_timezone"`
	DefaultCurrency string `yaml:"default_currency"`
	DefaultColor    string `yaml:"default_color"`

	Locales          []string `yaml:"locales"`
	Currencies       []string `yaml:"currencies"`
	NotificationKeys []string `yaml:"notification_keys"`
	IntegrationKeys  []string `yaml:"integration_keys"`

	DefaultStages   []string `yaml:"default_stages"`
	DefaultStatuses []string `yaml:"default_statuses"`
}

// Catalog holds the resolved validation sets. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	defaultLocale   string
	defaultTimezone string
	defaultCurrency string
	defaultColor    string

	locales    map[string]struct{} // canonical BCP 47 tag -> present
	localeList []string
	currencies map[string]struct{}

	notificationKeys map[string]struct{}
	integrationKeys  map[string]struct{}
	notificationList []string
	integrationList  []string

	defaultStages   []string
	defaultStatuses []string
}

// Default returns the catalog built from the embedded defaults. The embedded
// file is validated at build time by the package tests, so a parse failure
// here is a programming error.
func Default() *Catalog {
	c, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file, falling back to embedded defaults
// for any field the file leaves empty.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var base, override fileFormat
	if err := yaml.Unmarshal(defaultsYAML, &base); err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	merged := merge(base, override)
	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode catalog: %w", err)
	}
	return parse(out)
}

func merge(base, override fileFormat) fileFormat {
	if override.DefaultLocale != "" {
		base.DefaultLocale = override.DefaultLocale
	}
	if override.DefaultTimezone != "" {
		base.DefaultTimezone = override.DefaultTimezone
	}
	if override.DefaultCurrency != "" {
		base.DefaultCurrency = override.DefaultCurrency
	}
	if override.DefaultColor != "" {
		base.DefaultColor = override.DefaultColor
	}
	if len(override.Locales) > 0 {
		base.Locales = override.Locales
	}
	if len(override.Currencies) > 0 {
		base.Currencies = override.Currencies
	}
	if len(override.NotificationKeys) > 0 {
		base.NotificationKeys = override.NotificationKeys
	}
	if len(override.IntegrationKeys) > 0 {
		base.IntegrationKeys = override.IntegrationKeys
	}
	if len(override.DefaultStages) > 0 {
		base.DefaultStages = override.DefaultStages
	}
	if len(override.DefaultStatuses) > 0 {
		base.DefaultStatuses = override.DefaultStatuses
	}
	return base
}

func parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		defaultLocale:    f.DefaultLocale,
		defaultTimezone:  f.DefaultTimezone,
		defaultCurrency:  f.DefaultCurrency,
		defaultColor:     f.DefaultColor,
		locales:          make(map[string]struct{}, len(f.Locales)),
		currencies:       make(map[string]struct{}, len(f.Currencies)),
		notificationKeys: make(map[string]struct{}, len(f.NotificationKeys)),
		integrationKeys:  make(map[string]struct{}, len(f.IntegrationKeys)),
		notificationList: f.NotificationKeys,
		integrationList:  f.IntegrationKeys,
		defaultStages:    f.DefaultStages,
		defaultStatuses:  f.DefaultStatuses,
	}

	for _, tag := range f.Locales {
		canonical, err := canonicalTag(tag)
		if err != nil {
			return nil, fmt.Errorf("unparseable locale %q in catalog: %w", tag, err)
		}
		c.locales[canonical] = struct{}{}
		c.localeList = append(c.localeList, canonical)
	}
	for _, code := range f.Currencies {
		c.currencies[code] = struct{}{}
	}
	for _, k := range f.NotificationKeys {
		c.notificationKeys[k] = struct{}{}
	}
	for _, k := range f.IntegrationKeys {
		c.integrationKeys[k] = struct{}{}
	}

	if c.defaultLocale == "" || len(c.locales) == 0 {
		return nil, fmt.Errorf("catalog must define a default locale and at least one supported locale")
	}
	canonical, err := canonicalTag(c.defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("unparseable default locale %q: %w", c.defaultLocale, err)
	}
	c.defaultLocale = canonical
	if _, ok := c.locales[c.defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q is not in the supported set", c.defaultLocale)
	}
	if !c.ValidTimezone(c.defaultTimezone) {
		return nil, fmt.Errorf("default timezone %q is not a valid IANA zone", c.defaultTimezone)
	}
	if len(f.DefaultStages) == 0 || len(f.DefaultStatuses) == 0 {
		return nil, fmt.Errorf("catalog must seed at least one pipeline stage and one contact status")
	}

	return c, nil
}

// canonicalTag parses and canonicalizes a BCP 47 tag, so "es-mx" and "es-MX"
// resolve to the same supported locale.
func canonicalTag(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// CanonicalLocale returns the canonical form of tag and whether it is in the
// supported set.
func (c *Catalog) CanonicalLocale(tag string) (string, bool) {
	canonical, err := canonicalTag(tag)
	if err != nil {
		return "", false
	}
	_, ok := c.locales[canonical]
	return canonical, ok
}

// ValidTimezone reports whether tz names a zone in the IANA database.
// "Local" is rejected: a stored preference must mean the same zone on every
// host that resolves it.
func (c *Catalog) ValidTimezone(tz string) bool {
	if tz == "" || tz == "Local" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ValidCurrency reports whether code is a supported ISO 4217 currency.
func (c *Catalog) ValidCurrency(code string) bool {
	_, ok := c.currencies[code]
	return ok
}

// KnownNotificationKey reports whether k is part of the closed set of
// notification toggles.
func (c *Catalog) KnownNotificationKey(k string) bool {
	_, ok := c.notificationKeys[k]
	return ok
}

// KnownIntegrationKey reports whether k is part of the closed set of
// integration toggles.
func (c *Catalog) KnownIntegrationKey(k string) bool {
	_, ok := c.integrationKeys[k]
	return ok
}

func (c *Catalog) DefaultLocale() string   { return c.defaultLocale }
func (c *Catalog) DefaultTimezone() string { return c.defaultTimezone }
func (c *Catalog) DefaultCurrency() string { return c.defaultCurrency }
func (c *Catalog) DefaultColor() string    { return c.defaultColor }

// Locales returns the supported locale tags in catalog order.
func (c *Catalog) Locales() []string {
	out := make([]string, len(c.localeList))
	copy(out, c.localeList)
	return out
}

// NotificationKeys returns the closed set of notification toggle keys.
func (c *Catalog) NotificationKeys() []string {
	out := make([]string, len(c.notificationList))
	copy(out, c.notificationList)
	return out
}

// IntegrationKeys returns the closed set of integration toggle keys.
func (c *Catalog) IntegrationKeys() []string {
	out := make([]string, len(c.integrationList))
	copy(out, c.integrationList)
	return out
}

// DefaultStages returns the seeded pipeline stage names for a new organization.
func (c *Catalog) DefaultStages() []string {
	out := make([]string, len(c.defaultStages))
	copy(out, c.defaultStages)
	return out
}

// DefaultStatuses returns the seeded contact status names for a new organization.
func (c *Catalog) DefaultStatuses() []string {
	out := make([]string, len(c.defaultStatuses))
	copy(out, c.defaultStatuses)
	return out
}
