package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	OCR       OCRConfig
	Raster    RasterConfig
	Assistant AssistantConfig
	Upload    UploadConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// OCRConfig controls the Tesseract-backed text extractor.
type OCRConfig struct {
	TessdataPrefix string
	Language       string
	Workers        int
	Timeout        time.Duration
}

// RasterConfig controls the pdftoppm subprocess that splits PDFs into page images.
type RasterConfig struct {
	PdftoppmPath string
	Timeout      time.Duration
}

type AssistantConfig struct {
	OllamaURL string
	Model     string
	Timeout   time.Duration
}

type UploadConfig struct {
	Dir string
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine: plain environment variables work for Docker/K8s.

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	ocrWorkers, _ := strconv.Atoi(getEnv("OCR_WORKERS", "4"))
	ocrTimeout, _ := strconv.Atoi(getEnv("OCR_TIMEOUT_SECONDS", "60"))
	rasterTimeout, _ := strconv.Atoi(getEnv("RASTER_TIMEOUT_SECONDS", "120"))
	assistantTimeout, _ := strconv.Atoi(getEnv("ASSISTANT_TIMEOUT_SECONDS", "120"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "taxdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		OCR: OCRConfig{
			TessdataPrefix: getEnv("OCR_TESSDATA_PREFIX", "/usr/share/tesseract-ocr/5/tessdata"),
			Language:       getEnv("OCR_LANGUAGE", "eng"),
			Workers:        ocrWorkers,
			Timeout:        time.Duration(ocrTimeout) * time.Second,
		},
		Raster: RasterConfig{
			PdftoppmPath: getEnv("RASTER_PDFTOPPM_PATH", "pdftoppm"),
			Timeout:      time.Duration(rasterTimeout) * time.Second,
		},
		Assistant: AssistantConfig{
			OllamaURL: getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:     getEnv("OLLAMA_MODEL", "llama3"),
			Timeout:   time.Duration(assistantTimeout) * time.Second,
		},
		Upload: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "uploads"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
