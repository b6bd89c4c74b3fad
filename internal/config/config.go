// Package config loads the code generator settings from layered sources:
// built-in defaults, the code_generator section of appsettings.yaml, a custom
// efrev.yaml, EFREV_* environment variables and finally command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/howjerry/efreverse/internal/db"
)

const (
	// DefaultSettingsFile holds the code_generator section
	DefaultSettingsFile = "appsettings.yaml"
	// DefaultConfigFile is the custom configuration written by --init
	DefaultConfigFile = "efrev.yaml"

	settingsSection       = "code_generator"
	legacySettingsSection = "CodeGenerator"
)

// Generated code elements
const (
	ElementPOCO          = "POCO"
	ElementConfiguration = "Configuration"
	ElementDbContext     = "DbContext"
)

var knownElements = []string{ElementPOCO, ElementConfiguration, ElementDbContext}

var namespacePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Settings holds everything the generator needs.
type Settings struct {
	ConnectionString string `yaml:"connection_string" json:"connection_string" env:"EFREV_CONNECTION_STRING"`
	Provider         string `yaml:"provider" json:"provider" env:"EFREV_PROVIDER"`
	Schema           string `yaml:"schema,omitempty" json:"schema,omitempty" env:"EFREV_SCHEMA"`

	Namespace       string `yaml:"namespace" json:"namespace" env:"EFREV_NAMESPACE" env-default:"MyApp.Data"`
	DbContextName   string `yaml:"db_context_name" json:"db_context_name" env:"EFREV_DB_CONTEXT_NAME" env-default:"AppDbContext"`
	OutputDirectory string `yaml:"output_directory" json:"output_directory" env:"EFREV_OUTPUT_DIRECTORY" env-default:"./Generated"`

	UseDataAnnotations    bool `yaml:"use_data_annotations" json:"use_data_annotations" env:"EFREV_USE_DATA_ANNOTATIONS"`
	IncludeComments       bool `yaml:"include_comments" json:"include_comments" env:"EFREV_INCLUDE_COMMENTS"`
	Pluralize             bool `yaml:"pluralize" json:"pluralize" env:"EFREV_PLURALIZE"`
	UsePascalCase         bool `yaml:"use_pascal_case" json:"use_pascal_case" env:"EFREV_USE_PASCAL_CASE"`
	SingularizeEntities   bool `yaml:"singularize_entities" json:"singularize_entities" env:"EFREV_SINGULARIZE_ENTITIES"`
	GenerateSeparateFiles bool `yaml:"generate_separate_files" json:"generate_separate_files" env:"EFREV_GENERATE_SEPARATE_FILES"`

	Elements      []string `yaml:"elements" json:"elements" env:"EFREV_ELEMENTS" env-default:"POCO,Configuration,DbContext"`
	Tables        []string `yaml:"tables,omitempty" json:"tables,omitempty" env:"EFREV_TABLES"`
	ExcludeTables []string `yaml:"exclude_tables,omitempty" json:"exclude_tables,omitempty" env:"EFREV_EXCLUDE_TABLES"`

	PayloadTolerance int `yaml:"payload_tolerance" json:"payload_tolerance" env:"EFREV_PAYLOAD_TOLERANCE"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"EFREV_LOG_LEVEL" env-default:"info"`
	LogFile  string `yaml:"log_file" json:"log_file" env:"EFREV_LOG_FILE" env-default:"codegen.log"`
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	s := baseSettings()
	s.Namespace = "MyApp.Data"
	s.DbContextName = "AppDbContext"
	s.OutputDirectory = "./Generated"
	s.Elements = append([]string(nil), knownElements...)
	s.LogLevel = "info"
	s.LogFile = "codegen.log"
	return s
}

// baseSettings sets the defaults whose zero value is meaningful. cleanenv
// applies env-default to any zero field, so these cannot use the tag.
func baseSettings() Settings {
	return Settings{
		IncludeComments:       true,
		Pluralize:             true,
		UsePascalCase:         true,
		GenerateSeparateFiles: true,
		PayloadTolerance:      2,
	}
}

// LoadOptions names the files to read. A missing default file is skipped; a
// missing file named explicitly is an error.
type LoadOptions struct {
	SettingsFile         string
	SettingsFileExplicit bool
	ConfigFile           string
	ConfigFileExplicit   bool
}

// Load reads the file and environment layers. Later layers override earlier
// ones key by key.
func Load(opts LoadOptions) (*Settings, error) {
	s := baseSettings()

	if opts.SettingsFile != "" {
		if err := readSettingsSection(opts.SettingsFile, &s, opts.SettingsFileExplicit); err != nil {
			return nil, err
		}
	}

	configFile := opts.ConfigFile
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			if opts.ConfigFileExplicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
			}
			configFile = ""
		}
	}

	if configFile != "" {
		if err := cleanenv.ReadConfig(configFile, &s); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return &s, nil
}

// readSettingsSection overlays the code_generator section of an application
// settings file. The legacy CodeGenerator key is accepted too.
func readSettingsSection(path string, s *Settings, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	section, ok := doc[settingsSection]
	if !ok {
		section, ok = doc[legacySettingsSection]
	}
	if !ok {
		return nil
	}
	if err := section.Decode(s); err != nil {
		return fmt.Errorf("failed to parse %s section of %s: %w", settingsSection, path, err)
	}
	return nil
}

// Merge overrides s with the non-zero fields of o. Booleans and other values
// whose zero is meaningful must be assigned directly.
func (s *Settings) Merge(o Settings) error {
	if err := mergo.Merge(s, o, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

// HasElement reports whether the named element is generated.
func (s *Settings) HasElement(name string) bool {
	for _, e := range s.Elements {
		if strings.EqualFold(e, name) {
			return true
		}
	}
	return false
}

// Validate checks the settings and fills the provider from the connection
// string when it is empty.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.ConnectionString) == "" {
		return fmt.Errorf("connection string is required; set it in a configuration file, EFREV_CONNECTION_STRING or --connection")
	}

	conn, err := db.ResolveConnection(s.ConnectionString, s.Provider)
	if err != nil {
		return fmt.Errorf("invalid connection settings: %w", err)
	}
	if s.Provider == "" {
		s.Provider = string(conn.Provider)
	}

	if !namespacePattern.MatchString(s.Namespace) {
		return fmt.Errorf("namespace %q is not a valid C# namespace", s.Namespace)
	}
	if !namespacePattern.MatchString(s.DbContextName) || strings.Contains(s.DbContextName, ".") {
		return fmt.Errorf("db context name %q is not a valid C# identifier", s.DbContextName)
	}
	if strings.TrimSpace(s.OutputDirectory) == "" {
		return fmt.Errorf("output directory is required")
	}

	if len(s.Elements) == 0 {
		return fmt.Errorf("at least one element must be generated")
	}
	for _, e := range s.Elements {
		if !isKnownElement(e) {
			return fmt.Errorf("unknown element %q (expected one of %s)", e, strings.Join(knownElements, ", "))
		}
	}

	if s.PayloadTolerance < 0 {
		return fmt.Errorf("payload tolerance must not be negative")
	}
	return nil
}

func isKnownElement(name string) bool {
	for _, k := range knownElements {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
