package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"camwatch/internal/model"

	"github.com/joho/godotenv"
)

type Config struct {
	SMTPAddress    string
	HTTPAddress    string
	DataDirectory  string
	LogDirectory   string
	DatabasePath   string
	OccupancyFile  string
	CaptureCommand string
	UploadCommand  string
	CommandTimeout time.Duration

	DropScore            float64  // annotations below this score are dropped entirely
	MinScore             float64  // annotations below this score are kept only if important
	IgnoreAnnotations    []string // e.g. "Furniture,Table top,Plant,Window blind,Fountain"
	ImportantAnnotations []string

	NightHourBegin int // 0/0 disables the night window
	NightHourEnd   int

	UploadURLPrefix   string // e.g. https://storage.googleapis.com/your-bucket/
	NotifyURLTemplate string // must contain <PTITLE> and <PTEXT>
	IncludeVideoURL   bool

	RetentionDays     int
	RetentionInterval time.Duration

	NATSURL     string // empty disables the detection fan-out
	NATSSubject string

	Cameras map[string]model.Camera
}

// Load reads an optional .env file and the process environment.
// Malformed values are reported instead of silently falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnviron(os.Environ())
}

// FromEnviron builds a Config from KEY=VALUE pairs.
func FromEnviron(environ []string) (*Config, error) {
	env := envMap(environ)
	p := &parser{env: env}

	dataDir := p.getEnv("DATA_DIR", "/data")
	cfg := &Config{
		SMTPAddress:    p.getEnv("SMTP_ADDR", ":5514"),
		HTTPAddress:    p.getEnv("HTTP_ADDR", ":8080"),
		DataDirectory:  dataDir,
		LogDirectory:   p.getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:   p.getEnv("DB_PATH", filepath.Join(dataDir, "events.db")),
		OccupancyFile:  p.getEnv("OCCUPANCY_FILE", "/athome/athome.txt"),
		CaptureCommand: p.getEnv("CAPTURE_COMMAND", "grab-snapshot-and-annotate.sh"),
		UploadCommand:  p.getEnv("UPLOAD_COMMAND", "upload-short-video.sh"),
		CommandTimeout: p.getEnvAsDuration("COMMAND_TIMEOUT", 5*time.Minute),

		DropScore:            p.getEnvAsFloat("DROP_SCORE", 0.45),
		MinScore:             p.getEnvAsFloat("MIN_SCORE", 0.7),
		IgnoreAnnotations:    p.getEnvAsList("IGNORE_ANNOTATIONS"),
		ImportantAnnotations: p.getEnvAsList("IMPORTANT_ANNOTATIONS"),

		NightHourBegin: p.getEnvAsInt("NIGHT_HOUR_BEGIN_AT", 0),
		NightHourEnd:   p.getEnvAsInt("NIGHT_HOUR_END_AT", 0),

		UploadURLPrefix:   p.getEnv("UPLOAD_URL_PREFIX", ""),
		NotifyURLTemplate: p.getEnv("NOTIFY_URL_TEMPLATE", ""),
		IncludeVideoURL:   p.getEnv("DONT_INCLUDE_VIDURL_IN_NOTIFICATION", "") == "",

		RetentionDays:     p.getEnvAsInt("RETENTION_DAYS", 30),
		RetentionInterval: p.getEnvAsDuration("RETENTION_INTERVAL", 24*time.Hour),

		NATSURL:     p.getEnv("NATS_URL", ""),
		NATSSubject: p.getEnv("NATS_SUBJECT", "camwatch.detections"),
	}
	if p.err != nil {
		return nil, p.err
	}

	cameras, err := ParseCameras(environ)
	if err != nil {
		return nil, err
	}
	cfg.Cameras = cameras

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DropScore < 0 || c.MinScore > 1 || c.DropScore > c.MinScore {
		return fmt.Errorf("invalid score thresholds: DROP_SCORE=%v MIN_SCORE=%v (need 0 <= DROP_SCORE <= MIN_SCORE <= 1)", c.DropScore, c.MinScore)
	}
	if !validHour(c.NightHourBegin) || !validHour(c.NightHourEnd) {
		return fmt.Errorf("invalid night window %d-%d: hours must be within 0-23", c.NightHourBegin, c.NightHourEnd)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive, got %s", c.RetentionInterval)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT must be positive, got %s", c.CommandTimeout)
	}
	if c.NotifyURLTemplate != "" && !strings.Contains(c.NotifyURLTemplate, "<PTITLE>") && !strings.Contains(c.NotifyURLTemplate, "<PTEXT>") {
		return fmt.Errorf("NOTIFY_URL_TEMPLATE has neither <PTITLE> nor <PTEXT> placeholder")
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("no cameras configured (expected CAM_<n>_Name, CAM_<n>_HiRes, CAM_<n>_LoRes)")
	}
	return nil
}

// RetentionAge is the age past which stored media is deleted.
func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

// parser records the first malformed value it sees.
type parser struct {
	env map[string]string
	err error
}

func (p *parser) getEnv(key, defaultValue string) string {
	if value := p.env[key]; value != "" {
		return value
	}
	return defaultValue
}

func (p *parser) getEnvAsInt(key string, defaultValue int) int {
	value := p.env[key]
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return intValue
}

func (p *parser) getEnvAsFloat(key string, defaultValue float64) float64 {
	value := p.env[key]
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return floatValue
}

func (p *parser) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := p.env[key]
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) getEnvAsList(key string) []string {
	value := p.env[key]
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}
