package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Roma7-7-7/livestream-notifier/internal/calendar"
)

const (
	StorageFile = "file"
	StorageBolt = "bolt"
)

type Config struct {
	Dev                   bool          `envconfig:"DEV" default:"false"`
	StorageDriver         string        `envconfig:"STORAGE_DRIVER" default:"file" validate:"oneof=file bolt"`
	SubscribersPath       string        `envconfig:"SUBSCRIBERS_PATH" default:"data/subscribers.txt" validate:"required"`
	SubscribersImportPath string        `envconfig:"SUBSCRIBERS_IMPORT_PATH"`
	AnnounceWeekdays      string        `envconfig:"ANNOUNCE_WEEKDAYS" default:"tue,thu" validate:"required"`
	AnnounceAt            string        `envconfig:"ANNOUNCE_AT" default:"17:00" validate:"required"`
	AnnounceTimezone      string        `envconfig:"ANNOUNCE_TIMEZONE" default:"Europe/Zurich" validate:"required"`
	AnnounceText          string        `envconfig:"ANNOUNCE_TEXT" default:"The lecture livestream starts now. See /links for the course pages." validate:"required"`
	SendConcurrency       int           `envconfig:"SEND_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	SendRatePerSecond     float64       `envconfig:"SEND_RATE_PER_SECOND" default:"25" validate:"min=0"`
	SendTimeout           time.Duration `envconfig:"SEND_TIMEOUT" default:"10s" validate:"gt=0"`
	MetricsAddr           string        `envconfig:"METRICS_ADDR"`
	TelegramToken         string        `envconfig:"TELEGRAM_TOKEN"`
	TelegramTokenSSMParam string        `envconfig:"TELEGRAM_TOKEN_SSM_PARAM" default:"/livestream-notifier/prod/telegram-token"`
}

// ParameterStore is the part of the SSM client used to resolve the bot token.
type ParameterStore interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type parameterStoreFactory func(ctx context.Context) (ParameterStore, error)

// NewConfig reads configuration from the environment, after loading an optional .env file.
// Outside dev mode a missing TELEGRAM_TOKEN is fetched from SSM.
func NewConfig(ctx context.Context) (*Config, error) {
	return newConfig(ctx, newSSMClient)
}

func newConfig(ctx context.Context, newStore parameterStoreFactory) (*Config, error) {
	// no .env is fine, the process environment is used as is
	_ = godotenv.Load()

	res := &Config{}
	if err := envconfig.Process("", res); err != nil {
		return nil, fmt.Errorf("envconfig process: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(res); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if _, err := res.Rule(); err != nil {
		return nil, err
	}

	if res.TelegramToken == "" && !res.Dev {
		store, err := newStore(ctx)
		if err != nil {
			return nil, err
		}
		res.TelegramToken, err = getSSMToken(ctx, store, res.TelegramTokenSSMParam)
		if err != nil {
			return nil, err
		}
	}

	if res.TelegramToken == "" {
		return nil, errors.New("telegram token is required")
	}

	return res, nil
}

// Rule builds the announcement calendar rule.
func (c *Config) Rule() (calendar.Rule, error) {
	rule, err := calendar.ParseRule(c.AnnounceWeekdays, c.AnnounceAt, c.AnnounceTimezone)
	if err != nil {
		return calendar.Rule{}, fmt.Errorf("announcement rule: %w", err)
	}
	return rule, nil
}

func newSSMClient(ctx context.Context) (ParameterStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

func getSSMToken(ctx context.Context, store ParameterStore, name string) (string, error) {
	param, err := store.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get SSM token: %w", err)
	}
	if param.Parameter == nil || param.Parameter.Value == nil {
		return "", errors.New("SSM Token not found")
	}

	return *param.Parameter.Value, nil
}
