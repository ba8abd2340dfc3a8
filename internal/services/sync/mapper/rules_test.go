package mapper

import (
	"os"
	"path/filepath"
	"testing"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadRules_Defaults(t *testing.T) {
	t.Parallel()

	r, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.ChunkSize != 1900 || r.Properties.ExternalID != "Linear ID" || r.TypeOverride != "Features" {
		t.Fatalf("defaults = %+v", r)
	}

	r, err = LoadRules(writeFile(t, ""))
	if err != nil || r.Properties.Title != "Name" {
		t.Fatalf("empty file should keep defaults: %+v %v", r, err)
	}
}

func TestLoadRules_Overlay(t *testing.T) {
	t.Parallel()

	p := writeFile(t, `
properties:
  external_id: Issue Key
  sub_area: Area
types: [Defect, Chore]
chunk_size: 1000
time_zone: America/New_York
`)
	r, err := LoadRules(p)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.Properties.ExternalID != "Issue Key" || r.Properties.SubArea != "Area" {
		t.Fatalf("properties = %+v", r.Properties)
	}
	if r.Properties.Title != "Name" || len(r.Modules) != 6 {
		t.Fatalf("unset keys must keep defaults: %+v", r)
	}
	if len(r.Types) != 2 || r.Types[0] != "Defect" || r.ChunkSize != 1000 || r.TimeZone != "America/New_York" {
		t.Fatalf("overlay = %+v", r)
	}
}

func TestLoadRules_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown key": "modulez: [A]\n",
		"chunk size":  "chunk_size: 5000\n",
		"no title":    "properties:\n  title: \"\"\n",
		"bad zone":    "time_zone: Mars/Olympus\n",
		"bad yaml":    "types: [a\n",
	}
	for name, body := range cases {
		_, err := LoadRules(writeFile(t, body))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !perr.IsCode(err, perr.ErrorCodeConfig) {
			t.Fatalf("%s: code = %v", name, perr.CodeOf(err))
		}
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("missing file err = %v", err)
	}
}
