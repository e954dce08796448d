package agent

import (
	_ "embed"
	"os"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed agents.toml
var defaultProfilesRaw []byte

// Name identifies one of the fixed agent roles
type Name string

const (
	Root     Name = "root"
	Analyst  Name = "analyst"
	Writer   Name = "writer"
	PostDemo Name = "postdemo"
	Followup Name = "followup"
)

// Names lists every agent role
func Names() []Name {
	return []Name{Root, Analyst, Writer, PostDemo, Followup}
}

var ErrUnknownAgent = goerr.New("unknown agent profile")

// Profile tunes how one agent talks to the LLM
type Profile struct {
	Instruction string   `toml:"instruction"`
	Model       string   `toml:"model"`
	Temperature *float64 `toml:"temperature"`
}

// GenerateOptions converts the profile into per-call LLM options
func (p *Profile) GenerateOptions() []adapter.GenerateOption {
	var opts []adapter.GenerateOption
	if p == nil {
		return opts
	}
	if s := strings.TrimSpace(p.Instruction); s != "" {
		opts = append(opts, adapter.WithSystem(s))
	}
	if p.Model != "" {
		opts = append(opts, adapter.WithModel(p.Model))
	}
	if p.Temperature != nil {
		opts = append(opts, adapter.WithTemperature(*p.Temperature))
	}
	return opts
}

// Profiles maps agent roles to their settings
type Profiles map[Name]*Profile

// Get returns the profile of name, or an empty profile when it is not defined
func (p Profiles) Get(name Name) *Profile {
	if prof, ok := p[name]; ok && prof != nil {
		return prof
	}
	return &Profile{}
}

// DefaultProfiles returns the embedded profiles
func DefaultProfiles() (Profiles, error) {
	return parseProfiles(defaultProfilesRaw)
}

// LoadProfiles reads path and overlays it on the embedded defaults field by
// field. An empty path returns the defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles, err := DefaultProfiles()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return profiles, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read agent profiles", goerr.V("path", path))
	}
	overrides, err := parseProfiles(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid agent profiles", goerr.V("path", path))
	}

	for name, o := range overrides {
		base := profiles.Get(name)
		if o.Instruction != "" {
			base.Instruction = o.Instruction
		}
		if o.Model != "" {
			base.Model = o.Model
		}
		if o.Temperature != nil {
			base.Temperature = o.Temperature
		}
		profiles[name] = base
	}

	return profiles, nil
}

func parseProfiles(raw []byte) (Profiles, error) {
	var decoded map[string]*Profile
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		return nil, goerr.Wrap(err, "failed to decode agent profiles")
	}

	known := make(map[Name]bool)
	for _, n := range Names() {
		known[n] = true
	}

	profiles := make(Profiles, len(decoded))
	for key, prof := range decoded {
		name := Name(key)
		if !known[name] {
			return nil, goerr.Wrap(ErrUnknownAgent, "unexpected profile section", goerr.V("name", key))
		}
		profiles[name] = prof
	}
	return profiles, nil
}
