package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"report-service/internal/analysis"
	"report-service/internal/report"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Brokers []string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Storage struct {
		Endpoint   string
		AccessKey  string
		SecretKey  string
		Bucket     string
		Region     string
		UseSSL     bool
		PresignTTL time.Duration
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Telegram struct {
		BotToken  string
		RateLimit float64 // messages per second
	}
	API struct {
		Port        string
		BasePath    string
		MaxUploadMB int64
	}
	Delivery struct {
		QueueSize     int
		MaxWorkers    int
		RetryAttempts int
		RetryDelay    time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
	Report struct {
		HeaderSkip    int
		QActive       float64
		AnomalyWindow int
		AnomalySigma  float64
		TopN          int
		Methods       []string
		BestMethod    string
		ImageWidthMM  float64
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Object storage
	cfg.Storage.Endpoint = os.Getenv("STORAGE_ENDPOINT")
	cfg.Storage.AccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.Storage.Bucket = os.Getenv("STORAGE_BUCKET")
	cfg.Storage.Region = os.Getenv("STORAGE_REGION")
	if b, err := strconv.ParseBool(os.Getenv("STORAGE_USE_SSL")); err == nil {
		cfg.Storage.UseSSL = b
	}
	if d, err := time.ParseDuration(os.Getenv("STORAGE_PRESIGN_TTL")); err == nil {
		cfg.Storage.PresignTTL = d
	}

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if r, err := strconv.ParseFloat(os.Getenv("TELEGRAM_RATE_LIMIT"), 64); err == nil {
		cfg.Telegram.RateLimit = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")
	if mb, err := strconv.ParseInt(os.Getenv("API_MAX_UPLOAD_MB"), 10, 64); err == nil {
		cfg.API.MaxUploadMB = mb
	}

	// Delivery worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Delivery.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Delivery.MaxWorkers = mw
	}
	if ra, err := strconv.Atoi(os.Getenv("RETRY_ATTEMPTS")); err == nil {
		cfg.Delivery.RetryAttempts = ra
	}
	if d, err := time.ParseDuration(os.Getenv("RETRY_DELAY")); err == nil {
		cfg.Delivery.RetryDelay = d
	}

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Report defaults
	if v, err := strconv.Atoi(os.Getenv("REPORT_HEADER_SKIP")); err == nil {
		cfg.Report.HeaderSkip = v
	} else {
		cfg.Report.HeaderSkip = -1
	}
	if v, err := strconv.ParseFloat(os.Getenv("REPORT_Q_ACTIVE"), 64); err == nil {
		cfg.Report.QActive = v
	}
	if v, err := strconv.Atoi(os.Getenv("REPORT_ANOMALY_WINDOW")); err == nil {
		cfg.Report.AnomalyWindow = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("REPORT_ANOMALY_SIGMA"), 64); err == nil {
		cfg.Report.AnomalySigma = v
	}
	if v, err := strconv.Atoi(os.Getenv("REPORT_TOP_N")); err == nil {
		cfg.Report.TopN = v
	}
	cfg.Report.Methods = splitList(os.Getenv("REPORT_METHODS"))
	cfg.Report.BestMethod = os.Getenv("REPORT_BEST_METHOD")
	if v, err := strconv.ParseFloat(os.Getenv("REPORT_IMAGE_WIDTH_MM"), 64); err == nil {
		cfg.Report.ImageWidthMM = v
	}

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Storage.Endpoint == "" {
		missing = append(missing, "STORAGE_ENDPOINT")
	}
	if cfg.Storage.Bucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "report_delivery"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "report-service"
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = time.Hour
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 1
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.API.MaxUploadMB == 0 {
		cfg.API.MaxUploadMB = 32
	}
	if cfg.Delivery.QueueSize == 0 {
		cfg.Delivery.QueueSize = 500
	}
	if cfg.Delivery.MaxWorkers == 0 {
		cfg.Delivery.MaxWorkers = 10
	}
	if cfg.Delivery.RetryAttempts == 0 {
		cfg.Delivery.RetryAttempts = 3
	}
	if cfg.Delivery.RetryDelay == 0 {
		cfg.Delivery.RetryDelay = 2 * time.Second
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	def := report.DefaultOptions()
	if cfg.Report.HeaderSkip < 0 {
		cfg.Report.HeaderSkip = def.HeaderSkip
	}
	if cfg.Report.QActive == 0 {
		cfg.Report.QActive = def.QActive
	}
	if cfg.Report.AnomalyWindow == 0 {
		cfg.Report.AnomalyWindow = def.AnomalyWindow
	}
	if cfg.Report.AnomalySigma == 0 {
		cfg.Report.AnomalySigma = def.AnomalySigma
	}
	if cfg.Report.TopN == 0 {
		cfg.Report.TopN = def.TopN
	}
	if len(cfg.Report.Methods) == 0 {
		for _, m := range def.UnderutilMethods {
			cfg.Report.Methods = append(cfg.Report.Methods, string(m.Kind))
		}
	}
	if cfg.Report.BestMethod == "" {
		cfg.Report.BestMethod = string(def.BestMethod)
	}
	if cfg.Report.ImageWidthMM == 0 {
		cfg.Report.ImageWidthMM = def.ImageWidthMM
	}
}

// ReportOptions converts the Report section into validated generation options.
func (c Config) ReportOptions() (report.Options, error) {
	opts := report.DefaultOptions()
	opts.HeaderSkip = c.Report.HeaderSkip
	opts.QActive = c.Report.QActive
	opts.AnomalyWindow = c.Report.AnomalyWindow
	opts.AnomalySigma = c.Report.AnomalySigma
	opts.TopN = c.Report.TopN
	opts.ImageWidthMM = c.Report.ImageWidthMM

	opts.UnderutilMethods = opts.UnderutilMethods[:0:0]
	for _, name := range c.Report.Methods {
		kind, err := analysis.ParseMethodKind(name)
		if err != nil {
			return report.Options{}, fmt.Errorf("invalid REPORT_METHODS: %w", err)
		}
		opts.UnderutilMethods = append(opts.UnderutilMethods, analysis.DefaultMethod(kind))
	}
	best, err := analysis.ParseMethodKind(c.Report.BestMethod)
	if err != nil {
		return report.Options{}, fmt.Errorf("invalid REPORT_BEST_METHOD: %w", err)
	}
	opts.BestMethod = best

	if err := opts.Validate(); err != nil {
		return report.Options{}, fmt.Errorf("invalid report settings: %w", err)
	}
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
