package model

// DefaultCollection is the collection used when none has been configured.
const DefaultCollection = "DefaultCollection"

// Settings holds the connection parameters for the remote tracker and the
// vault folder notes are written to. Empty string means unset.
type Settings struct {
	Instance     string `json:"instance" mapstructure:"instance"`
	Collection   string `json:"collection" mapstructure:"collection"`
	Project      string `json:"project" mapstructure:"project"`
	Team         string `json:"team" mapstructure:"team"`
	Username     string `json:"username" mapstructure:"username"`
	AccessToken  string `json:"access_token" mapstructure:"access_token"`
	TargetFolder string `json:"target_folder" mapstructure:"target_folder"`
}

// SettingsField describes one user-editable field of Settings.
type SettingsField struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Secret bool   `json:"secret,omitempty"`
}

// SettingsFields lists every Settings field in display order.
var SettingsFields = []SettingsField{
	{Key: "instance", Label: "Instance"},
	{Key: "collection", Label: "Collection"},
	{Key: "project", Label: "Project"},
	{Key: "team", Label: "Team"},
	{Key: "username", Label: "Username"},
	{Key: "access_token", Label: "Access token", Secret: true},
	{Key: "target_folder", Label: "Target folder"},
}

// DefaultSettings returns a Settings with only the collection preset.
func DefaultSettings() *Settings {
	return &Settings{Collection: DefaultCollection}
}

// Get returns the value of the named field. The bool is false for unknown keys.
func (s *Settings) Get(key string) (string, bool) {
	p := s.field(key)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set overwrites the named field. It returns false for unknown keys.
func (s *Settings) Set(key, value string) bool {
	p := s.field(key)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (s *Settings) field(key string) *string {
	switch key {
	case "instance":
		return &s.Instance
	case "collection":
		return &s.Collection
	case "project":
		return &s.Project
	case "team":
		return &s.Team
	case "username":
		return &s.Username
	case "access_token":
		return &s.AccessToken
	case "target_folder":
		return &s.TargetFolder
	}
	return nil
}

// Redacted returns a copy with the access token masked, for display.
func (s *Settings) Redacted() *Settings {
	c := *s
	if c.AccessToken != "" {
		c.AccessToken = "********"
	}
	return &c
}
