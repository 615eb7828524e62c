// mock-service はサンプルのアセットと設定を持つインメモリの予測サービスを起動します。
// 管理画面をローカルで動かすときに使います。
package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"ml-forecast-admin/pkg/logger"
	"ml-forecast-admin/pkg/models"
	"ml-forecast-admin/pkg/services/servicetest"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// seedFile はサンプルデータの構造です。設定は種別を含む JSON 形式を経由してデコードします。
type seedFile struct {
	RealmConfig map[string]any   `yaml:"realm_config"`
	Assets      []map[string]any `yaml:"assets"`
	Configs     []map[string]any `yaml:"configs"`
}

func main() {
	_ = godotenv.Load()
	logger.Init("ml-forecast-mock", os.Getenv("LOG_LEVEL"), true)

	port := os.Getenv("MOCK_SERVICE_PORT")
	if port == "" {
		port = "8000"
	}

	data := defaultSeed
	if path := os.Getenv("MOCK_SEED_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read seed file")
		}
		data = b
	}

	fake := servicetest.New()
	if err := seed(fake, data); err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed data")
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("port", port).Msg("Starting mock forecast service")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Mock forecast service stopped")
	}
}

func seed(fake *servicetest.Fake, data []byte) error {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse seed: %w", err)
	}

	var realmConfig models.RealmConfig
	if err := convert(file.RealmConfig, &realmConfig); err != nil {
		return fmt.Errorf("realm_config: %w", err)
	}
	fake.SetRealmConfig(realmConfig)

	for i, raw := range file.Assets {
		var a models.Asset
		if err := convert(raw, &a); err != nil {
			return fmt.Errorf("assets[%d]: %w", i, err)
		}
		fake.AddAsset(a)
	}
	for i, raw := range file.Configs {
		var cfg models.ModelConfig
		if err := convert(raw, &cfg); err != nil {
			return fmt.Errorf("configs[%d]: %w", i, err)
		}
		fake.AddConfig(cfg)
	}
	log.Info().Int("assets", len(file.Assets)).Int("configs", len(file.Configs)).Msg("Loaded seed data")
	return nil
}

func convert(in any, out any) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
