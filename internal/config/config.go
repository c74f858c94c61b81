package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server   ServerConfig
	Dialogue DialogueConfig
	Speech   SpeechConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	dialogue, err := loadDialogueConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Dialogue: dialogue, Speech: speech}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		origins = origins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	return ServerConfig{Addr: addr, AllowedOrigins: origins}, nil
}

// DialogueConfig locates the remote dialogue service.
type DialogueConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadDialogueConfig() (DialogueConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("DIALOGUE_BASE_URL"))
	if baseURL == "" {
		return DialogueConfig{}, fmt.Errorf("DIALOGUE_BASE_URL is required")
	}

	timeout := 30 * time.Second
	if override, err := parseOptionalIntEnv("DIALOGUE_TIMEOUT"); err != nil {
		return DialogueConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return DialogueConfig{}, fmt.Errorf("DIALOGUE_TIMEOUT must be positive, got %d", *override)
		}
		timeout = time.Duration(*override) * time.Second
	}

	return DialogueConfig{BaseURL: baseURL, Timeout: timeout}, nil
}

// SpeechConfig describes the optional speech providers. An empty endpoint
// disables the corresponding capability and the UI degrades to text-only.
type SpeechConfig struct {
	ASREndpoint string
	TTSEndpoint string
	Token       string
	Language    string
	Voice       string
	Speed       float32
	SampleRate  int
	Timeout     time.Duration
}

func loadSpeechConfig() (SpeechConfig, error) {
	speed := float32(1.0)
	if override, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		speed = *override
	}

	sampleRate := 16000
	if override, err := parseOptionalIntEnv("SPEECH_SAMPLE_RATE"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		sampleRate = *override
	}

	timeout := 30 * time.Second
	if override, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		timeout = time.Duration(*override) * time.Second
	}

	return SpeechConfig{
		ASREndpoint: strings.TrimSpace(os.Getenv("SPEECH_ASR_ENDPOINT")),
		TTSEndpoint: strings.TrimSpace(os.Getenv("SPEECH_TTS_ENDPOINT")),
		Token:       strings.TrimSpace(os.Getenv("SPEECH_TOKEN")),
		Language:    getEnvOrDefault("SPEECH_LANGUAGE", "en-US"),
		Voice:       getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		Speed:       speed,
		SampleRate:  sampleRate,
		Timeout:     timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
