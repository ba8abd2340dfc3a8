package mapper

import (
	"errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
)

// maxChunk is the destination's per rich text run ceiling
const maxChunk = 2000

// Properties names the destination columns the mapper writes
type Properties struct {
	Title       string `yaml:"title"`
	ExternalID  string `yaml:"external_id"`
	URL         string `yaml:"url"`
	Status      string `yaml:"status"`
	Priority    string `yaml:"priority"`
	Module      string `yaml:"module"`
	SubArea     string `yaml:"sub_area"`
	Type        string `yaml:"type"`
	Cycle       string `yaml:"cycle"`
	DueDate     string `yaml:"due_date"`
	Description string `yaml:"description"`
	LastSynced  string `yaml:"last_synced"`
}

// Rules drive the mapping. Precedence lists are matched case insensitively
// against the issue labels, first hit wins
type Rules struct {
	Properties   Properties `yaml:"properties"`
	Modules      []string   `yaml:"modules"`
	SubAreas     []string   `yaml:"sub_areas"`
	Types        []string   `yaml:"types"`
	TypeOverride string     `yaml:"type_override"`
	ChunkSize    int        `yaml:"chunk_size"`
	TimeZone     string     `yaml:"time_zone"`
}

// DefaultRules returns the built in mapping
func DefaultRules() Rules {
	return Rules{
		Properties: Properties{
			Title:       "Name",
			ExternalID:  "Linear ID",
			URL:         "URL",
			Status:      "Status",
			Priority:    "Priority",
			Module:      "Module",
			SubArea:     "Sub-Area",
			Type:        "Type",
			Cycle:       "Cycle",
			DueDate:     "Due Date",
			Description: "Description",
			LastSynced:  "Last Synced",
		},
		Modules:      []string{"Platform", "Integrations", "Tracking", "Reporting", "Billing", "Mobile"},
		SubAreas:     []string{"API", "UI", "Data", "Notifications", "Auth", "Performance"},
		Types:        []string{"Bug", "Improvement", "Task", "Features"},
		TypeOverride: "Features",
		ChunkSize:    1900,
	}
}

// LoadRules overlays a YAML file on the defaults. An empty path returns the defaults
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	if path == "" {
		return r, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Rules{}, perr.Wrapf(err, perr.ErrorCodeConfig, "open mapping file %s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, perr.Wrapf(err, perr.ErrorCodeConfig, "decode mapping file %s", path)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks the fields the sync cannot run without
func (r Rules) Validate() error {
	switch {
	case r.Properties.Title == "":
		return perr.WithField(perr.Configf("mapping: title property is required"), "properties.title")
	case r.Properties.ExternalID == "":
		return perr.WithField(perr.Configf("mapping: external id property is required"), "properties.external_id")
	case r.ChunkSize <= 0 || r.ChunkSize > maxChunk:
		return perr.WithField(perr.Configf("mapping: chunk_size must be within 1..%d, got %d", maxChunk, r.ChunkSize), "chunk_size")
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			return perr.WithField(perr.Wrapf(err, perr.ErrorCodeConfig, "mapping: time_zone %q", r.TimeZone), "time_zone")
		}
	}
	return nil
}
