package types

const (
	DefaultAptlyBinary     = "aptly"
	DefaultGPGBinary       = "gpg"
	DefaultKeyring         = "trustedkeys.gpg"
	DefaultKeyserver       = "hkps://keys.openpgp.org"
	DefaultMinAptlyVersion = "1.4.0"
)

// Settings is the process configuration, built once at start-up and passed
// to every component that needs it.
type Settings struct {
	AptlyBinary     string
	AptlyConfig     string
	GPGBinary       string
	Keyring         string
	Keyserver       string
	MinAptlyVersion string
}

func DefaultSettings() Settings {
	return Settings{
		AptlyBinary:     DefaultAptlyBinary,
		GPGBinary:       DefaultGPGBinary,
		Keyring:         DefaultKeyring,
		Keyserver:       DefaultKeyserver,
		MinAptlyVersion: DefaultMinAptlyVersion,
	}
}

// WithDefaults fills empty fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	defaults := DefaultSettings()
	if s.AptlyBinary == "" {
		s.AptlyBinary = defaults.AptlyBinary
	}
	if s.GPGBinary == "" {
		s.GPGBinary = defaults.GPGBinary
	}
	if s.Keyring == "" {
		s.Keyring = defaults.Keyring
	}
	if s.Keyserver == "" {
		s.Keyserver = defaults.Keyserver
	}
	if s.MinAptlyVersion == "" {
		s.MinAptlyVersion = defaults.MinAptlyVersion
	}
	return s
}
