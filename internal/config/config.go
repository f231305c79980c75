package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/qrpayload"
)

type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTTTL          time.Duration
	GoogleAudience  string
	AllowOrigins    []string
	LogstashTCPAddr string

	MinIOEndpoint     string
	MinIOAccessKey    string
	MinIOSecretKey    string
	MinIOUseSSL       bool
	MinIOBucketReport string
	MinIOPublicURL    string

	// Verification protocol knobs. Every threshold the validator and the
	// flow apply comes from here, never from call sites.
	AllowedRadiusMeters float64
	MaxAccuracyMeters   float64
	SessionTTL          time.Duration
	RotationInterval    time.Duration
	LocationTimeout     time.Duration
	AnchorPolicy        domain.AnchorPolicy
	FixedAnchorLat      *float64
	FixedAnchorLng      *float64
	PayloadFormat       string // "delimited" or "session-ref"
}

const (
	PayloadFormatDelimited  = qrpayload.FormatDelimited
	PayloadFormatSessionRef = qrpayload.FormatSessionRef
)

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	policy := domain.AnchorPolicy(getenv("ANCHOR_POLICY", string(domain.AnchorIssuerLive)))
	if !policy.Valid() {
		panic("invalid ANCHOR_POLICY: " + string(policy))
	}

	format := getenv("PAYLOAD_FORMAT", PayloadFormatDelimited)
	if format != PayloadFormatDelimited && format != PayloadFormatSessionRef {
		panic("invalid PAYLOAD_FORMAT: " + format)
	}

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     must("DATABASE_URL"),
		JWTSecret:       must("JWT_SECRET"),
		JWTTTL:          duration("JWT_TTL", 24*time.Hour),
		GoogleAudience:  getenv("GOOGLE_AUDIENCE", ""),
		AllowOrigins:    splitAndTrim(getenv("ALLOW_ORIGINS", "*")),
		LogstashTCPAddr: getenv("LOGSTASH_TCP_ADDR", ""),

		MinIOEndpoint:     getenv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:    getenv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:    getenv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:       getenv("MINIO_USE_SSL", "false") == "true",
		MinIOBucketReport: getenv("MINIO_BUCKET_REPORTS", "classtrack-reports"),
		MinIOPublicURL:    getenv("MINIO_PUBLIC_URL", ""),

		AllowedRadiusMeters: float("ALLOWED_RADIUS_METERS", 110),
		MaxAccuracyMeters:   float("MAX_GPS_ACCURACY_METERS", 100),
		SessionTTL:          duration("SESSION_TTL", 3*time.Minute),
		RotationInterval:    duration("ROTATION_INTERVAL", 10*time.Second),
		LocationTimeout:     duration("LOCATION_TIMEOUT", 15*time.Second),
		AnchorPolicy:        policy,
		PayloadFormat:       format,
	}

	if lat, ok := optionalFloat("FIXED_ANCHOR_LAT"); ok {
		cfg.FixedAnchorLat = &lat
	}
	if lng, ok := optionalFloat("FIXED_ANCHOR_LNG"); ok {
		cfg.FixedAnchorLng = &lng
	}
	if policy == domain.AnchorFixed && (cfg.FixedAnchorLat == nil || cfg.FixedAnchorLng == nil) {
		panic("ANCHOR_POLICY=fixed requires FIXED_ANCHOR_LAT and FIXED_ANCHOR_LNG")
	}

	return cfg
}

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func duration(k string, d time.Duration) time.Duration {
	raw := getenv(k, "")
	if raw == "" {
		return d
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		log.Printf("Warning: ignoring invalid %s=%q", k, raw)
		return d
	}
	return parsed
}

func float(k string, d float64) float64 {
	raw := getenv(k, "")
	if raw == "" {
		return d
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		log.Printf("Warning: ignoring invalid %s=%q", k, raw)
		return d
	}
	return parsed
}

func optionalFloat(k string) (float64, bool) {
	raw := os.Getenv(k)
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: ignoring invalid %s=%q", k, raw)
		return 0, false
	}
	return parsed, true
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
