package module

import (
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
)

// Settings is every knob the sync module reads from the environment.
// env tags name the variable in validation messages
type Settings struct {
	LinearAPIKey   string        `env:"LINEAR_API_KEY" validate:"required"`
	LinearBaseURL  string        `env:"LINEAR_BASE_URL" validate:"required,url"`
	LinearPageSize int           `env:"LINEAR_PAGE_SIZE" validate:"gte=1,lte=250"`
	LinearTimeout  time.Duration `env:"LINEAR_TIMEOUT"`

	NotionToken      string        `env:"NOTION_TOKEN" validate:"required"`
	NotionDatabaseID string        `env:"NOTION_DATABASE_ID" validate:"required"`
	NotionBaseURL    string        `env:"NOTION_BASE_URL" validate:"required,url"`
	NotionVersion    string        `env:"NOTION_VERSION" validate:"required"`
	NotionTimeout    time.Duration `env:"NOTION_TIMEOUT"`
	NotionMaxRetries int           `env:"NOTION_MAX_RETRIES" validate:"gte=0,lte=20"`
	NotionRetryBase  time.Duration `env:"NOTION_RETRY_BASE"`

	Label            string        `env:"SYNC_REQUIRED_LABEL" validate:"required"`
	LookbackMinutes  int           `env:"SYNC_LOOKBACK_MINUTES" validate:"gt=0"`
	Pacing           time.Duration `env:"SYNC_PACING"`
	CallTimeout      time.Duration `env:"SYNC_CALL_TIMEOUT"`
	RunTimeout       time.Duration `env:"SYNC_RUN_TIMEOUT"`
	FailOnError      bool          `env:"SYNC_FAIL_ON_ERROR"`
	RefreshTimestamp bool          `env:"SYNC_REFRESH_TIMESTAMP"`
	MappingFile      string        `env:"SYNC_MAPPING_FILE"`

	StepSummary string `env:"GITHUB_STEP_SUMMARY"`
}

// FromConfig reads and validates Settings. Every violation is reported in one *config.Error
func FromConfig(cfg config.Conf) (Settings, error) {
	lin := cfg.Prefix("LINEAR_")
	not := cfg.Prefix("NOTION_")
	syn := cfg.Prefix("SYNC_")

	s := Settings{
		LinearAPIKey:   lin.MayString("API_KEY", ""),
		LinearBaseURL:  lin.MayString("BASE_URL", "https://api.linear.app/graphql"),
		LinearPageSize: lin.MayInt("PAGE_SIZE", 50),
		LinearTimeout:  lin.MayDuration("TIMEOUT", 30*time.Second),

		NotionToken:      not.MayString("TOKEN", ""),
		NotionDatabaseID: not.MayString("DATABASE_ID", ""),
		NotionBaseURL:    not.MayString("BASE_URL", "https://api.notion.com/v1"),
		NotionVersion:    not.MayString("VERSION", "2022-06-28"),
		NotionTimeout:    not.MayDuration("TIMEOUT", 30*time.Second),
		NotionMaxRetries: not.MayInt("MAX_RETRIES", 5),
		NotionRetryBase:  not.MayDuration("RETRY_BASE", 400*time.Millisecond),

		Label:            syn.MayString("REQUIRED_LABEL", ""),
		LookbackMinutes:  syn.MayInt("LOOKBACK_MINUTES", 60),
		Pacing:           syn.MayDuration("PACING", 350*time.Millisecond),
		CallTimeout:      syn.MayDuration("CALL_TIMEOUT", 0),
		RunTimeout:       syn.MayDuration("RUN_TIMEOUT", 0),
		FailOnError:      syn.MayBool("FAIL_ON_ERROR", false),
		RefreshTimestamp: syn.MayBool("REFRESH_TIMESTAMP", true),
		MappingFile:      syn.MayString("MAPPING_FILE", ""),

		StepSummary: cfg.MayString("GITHUB_STEP_SUMMARY", ""),
	}
	if err := config.Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Lookback is the feed window as a duration
func (s Settings) Lookback() time.Duration { return time.Duration(s.LookbackMinutes) * time.Minute }
