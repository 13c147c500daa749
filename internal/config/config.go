package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds everything the switch needs at startup.
type Config struct {
	// Username is the SMTP account name.
	Username string `yaml:"username" toml:"username"`
	// Password is the SMTP account password.
	Password string `yaml:"password" toml:"password"`
	// SMTPServer is the SMTP relay host name.
	SMTPServer string `yaml:"smtp_server" toml:"smtp_server"`
	// SMTPPort is the SMTP relay port.
	SMTPPort int `yaml:"smtp_port" toml:"smtp_port"`
	// SMTPCheckTimeout bounds the startup connection check and each send.
	SMTPCheckTimeout Duration `yaml:"smtp_check_timeout" toml:"smtp_check_timeout"`

	// From is the operator's own address. Warning messages are sent to it.
	From string `yaml:"from" toml:"from"`
	// To is the recipient of the final message.
	To string `yaml:"to" toml:"to"`
	// SubjectWarning is the subject of the warning message.
	SubjectWarning string `yaml:"subject_warning" toml:"subject_warning"`
	// MessageWarning is the body of the warning message.
	MessageWarning string `yaml:"message_warning" toml:"message_warning"`
	// Subject is the subject of the final message.
	Subject string `yaml:"subject" toml:"subject"`
	// Message is the body of the final message.
	Message string `yaml:"message" toml:"message"`
	// Attachments are file paths attached to the final message.
	Attachments []string `yaml:"attachments,omitempty" toml:"attachments,omitempty"`
	// Attachment is the single-file key of older configuration files.
	// Validate moves it into Attachments.
	Attachment string `yaml:"attachment,omitempty" toml:"attachment,omitempty"`
	// Markdown renders bodies to an additional HTML part when set.
	Markdown bool `yaml:"markdown" toml:"markdown"`

	// TimerWarning is the length of the warning countdown.
	TimerWarning Duration `yaml:"timer_warning" toml:"timer_warning"`
	// TimerDeadMan is the length of the dead man countdown.
	TimerDeadMan Duration `yaml:"timer_dead_man" toml:"timer_dead_man"`

	// RetryMaxAttempts caps delivery attempts per escalation message.
	RetryMaxAttempts int `yaml:"retry_max_attempts" toml:"retry_max_attempts"`
	// RetryBaseBackoff is the wait after the first failed attempt; it doubles afterwards.
	RetryBaseBackoff Duration `yaml:"retry_base_backoff" toml:"retry_base_backoff"`
	// RetryMaxBackoff caps the wait between attempts.
	RetryMaxBackoff Duration `yaml:"retry_max_backoff" toml:"retry_max_backoff"`

	// GRPCAddress is the listen address of the gRPC API. Empty disables it.
	GRPCAddress string `yaml:"grpc_address" toml:"grpc_address"`
	// WebAddress is the listen address of the web front-end. Empty disables it.
	WebAddress string `yaml:"web_address" toml:"web_address"`
	// WebPassword protects the web front-end.
	WebPassword string `yaml:"web_password" toml:"web_password"`
	// CookieExpDays is how long a web session stays valid.
	CookieExpDays int `yaml:"cookie_exp_days" toml:"cookie_exp_days"`
	// CORSOrigins lists origins allowed to read the JSON status endpoint.
	CORSOrigins []string `yaml:"cors_origins,omitempty" toml:"cors_origins,omitempty"`

	// JournalFile is where the CBOR audit journal is appended. Empty disables it.
	JournalFile string `yaml:"journal_file" toml:"journal_file"`
	// LogLevel is the minimum log level name.
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

const (
	// DefaultConfigFilename is the default configuration file name.
	DefaultConfigFilename = "deadman.yaml"

	// DefaultTimerWarning is the default warning countdown (2 weeks).
	DefaultTimerWarning = Duration(14 * 24 * time.Hour)

	// DefaultTimerDeadMan is the default dead man countdown (1 week).
	DefaultTimerDeadMan = Duration(7 * 24 * time.Hour)

	// MinTimer is the shortest accepted countdown.
	MinTimer = Duration(time.Second)

	// DefaultSMTPPort is the submission port.
	DefaultSMTPPort = 587

	// DefaultTimeout is the default SMTP timeout and client RPC timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultRetryMaxAttempts is the default delivery attempt cap.
	DefaultRetryMaxAttempts = 5

	// DefaultRetryBaseBackoff is the default wait after the first failure.
	DefaultRetryBaseBackoff = Duration(2 * time.Second)

	// DefaultRetryMaxBackoff is the default cap for the wait between attempts.
	DefaultRetryMaxBackoff = Duration(time.Minute)

	// DefaultGRPCAddress is the default gRPC listen address.
	DefaultGRPCAddress = "127.0.0.1:50551"

	// DefaultWebAddress is the default web listen address.
	DefaultWebAddress = "127.0.0.1:3000"

	// DefaultCookieExpDays is the default web session lifetime in days.
	DefaultCookieExpDays = 7

	// DefaultFilePermissions restricts config files to the owner.
	DefaultFilePermissions = 0o600
)

var (
	// ErrConfig marks every configuration failure; it is fatal at startup.
	ErrConfig = errors.New("configuration error")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Default returns a configuration with the same defaults as a fresh install.
// The web password is random unless DEADMAN_WEB_PASSWORD or WEB_PASSWORD is set.
func Default() *Config {
	cfg := &Config{
		Username:         "me@example.com",
		SMTPServer:       "smtp.example.com",
		SMTPPort:         DefaultSMTPPort,
		SMTPCheckTimeout: Duration(DefaultTimeout),
		From:             "me@example.com",
		To:               "someone@example.com",
		SubjectWarning:   "[URGENT] You need to check in!",
		MessageWarning:   "Hey, you haven't checked in for a while. Are you okay?",
		Subject:          "[URGENT] Something Happened to Me!",
		Message: "I'm probably dead, go to Central Park NY under bench #137 you'll find " +
			"an age-encrypted drive. Password is our favorite music in Pascal case.",
		TimerWarning:     DefaultTimerWarning,
		TimerDeadMan:     DefaultTimerDeadMan,
		RetryMaxAttempts: DefaultRetryMaxAttempts,
		RetryBaseBackoff: DefaultRetryBaseBackoff,
		RetryMaxBackoff:  DefaultRetryMaxBackoff,
		GRPCAddress:      DefaultGRPCAddress,
		WebAddress:       DefaultWebAddress,
		WebPassword:      uuid.NewString(),
		CookieExpDays:    DefaultCookieExpDays,
		LogLevel:         "info",
	}

	applyEnv(cfg)

	return cfg
}

// Load reads the configuration at path, applies environment overrides and validates it.
// Every returned error wraps ErrConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	if err := loadDotEnv(path); err != nil {
		return nil, fmt.Errorf("%w: load env file: %w", ErrConfig, err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %w", ErrConfig, err)
	}

	var cfg Config
	if err = decode(path, contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal settings: %w", ErrConfig, err)
	}

	applyEnv(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path in the format chosen by the file extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
//
//nolint:cyclop // A flat list of field checks reads best as is.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: %w", ErrConfig, errConfigIsNotSet)
	}

	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
	}

	if cfg.TimerWarning < MinTimer {
		return fail("timer_warning must be at least %s, got %s", MinTimer, cfg.TimerWarning)
	}

	if cfg.TimerDeadMan < MinTimer {
		return fail("timer_dead_man must be at least %s, got %s", MinTimer, cfg.TimerDeadMan)
	}

	if strings.TrimSpace(cfg.SMTPServer) == "" {
		return fail("smtp_server must be provided")
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return fail("smtp_port out of range: %d", cfg.SMTPPort)
	}

	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return fail("invalid from address %q: %w", cfg.From, err)
	}

	if _, err := mail.ParseAddress(cfg.To); err != nil {
		return fail("invalid to address %q: %w", cfg.To, err)
	}

	for _, address := range []string{cfg.GRPCAddress, cfg.WebAddress} {
		if address == "" {
			continue
		}

		if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
			return fail("invalid listen address %q: %w", address, err)
		}
	}

	if cfg.WebAddress != "" && cfg.WebPassword == "" {
		return fail("web_password must be provided when web_address is set")
	}

	if cfg.SMTPCheckTimeout <= 0 {
		cfg.SMTPCheckTimeout = Duration(DefaultTimeout)
	}

	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = DefaultRetryMaxAttempts
	}

	if cfg.RetryBaseBackoff <= 0 {
		cfg.RetryBaseBackoff = DefaultRetryBaseBackoff
	}

	if cfg.RetryMaxBackoff < cfg.RetryBaseBackoff {
		cfg.RetryMaxBackoff = max(DefaultRetryMaxBackoff, cfg.RetryBaseBackoff)
	}

	if cfg.CookieExpDays <= 0 {
		cfg.CookieExpDays = DefaultCookieExpDays
	}

	if attachment := strings.TrimSpace(cfg.Attachment); attachment != "" {
		if !slices.Contains(cfg.Attachments, attachment) {
			cfg.Attachments = append(cfg.Attachments, attachment)
		}

		cfg.Attachment = ""
	}

	return nil
}

// isTOML reports whether path should be handled as TOML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// decode unmarshals contents according to the file extension.
func decode(path string, contents []byte, cfg *Config) error {
	if isTOML(path) {
		_, err := toml.Decode(string(contents), cfg)

		return err
	}

	return yaml.Unmarshal(contents, cfg)
}

// encode marshals cfg according to the file extension.
func encode(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
