package adapters

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/types"
)

// GPGKeyAdapter imports mirror signing keys into the keyring aptly verifies
// against (trustedkeys.gpg by default).
type GPGKeyAdapter struct {
	Runner    ports.CommandRunnerPort
	Binary    string
	Keyring   string
	Keyserver string
}

func NewGPGKeyAdapter(runner ports.CommandRunnerPort, settings types.Settings) GPGKeyAdapter {
	settings = settings.WithDefaults()
	return GPGKeyAdapter{
		Runner:    runner,
		Binary:    settings.GPGBinary,
		Keyring:   settings.Keyring,
		Keyserver: settings.Keyserver,
	}
}

// EnsureKeys receives every key id that is not in the keyring yet and
// fetches every key URL. Any gpg failure aborts.
func (a GPGKeyAdapter) EnsureKeys(ctx context.Context, keyIDs []string, keyURLs []string) error {
	if len(keyIDs) == 0 && len(keyURLs) == 0 {
		return nil
	}
	known := a.knownKeys(ctx)
	for _, key := range keyIDs {
		normalized := normalizeKeyID(key)
		if normalized == "" || known.Has(normalized) {
			continue
		}
		if _, err := a.gpg(ctx, "--keyserver", a.Keyserver, "--recv-keys", normalized); err != nil {
			return err
		}
		known.Add(normalized)
		log.Ctx(ctx).Info().Str("key", normalized).Msg("gpg key imported")
	}
	for _, url := range keyURLs {
		if strings.TrimSpace(url) == "" {
			continue
		}
		if _, err := a.gpg(ctx, "--fetch-keys", url); err != nil {
			return err
		}
		log.Ctx(ctx).Info().Str("url", url).Msg("gpg key fetched")
	}
	return nil
}

// knownKeys lists fingerprints plus long and short key ids. A missing
// keyring makes gpg fail, which simply means no key is known yet.
func (a GPGKeyAdapter) knownKeys(ctx context.Context) types.Set {
	known := types.Set{}
	result, err := a.gpg(ctx, "--list-keys", "--with-colons")
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("keyring not readable, assuming empty")
		return known
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Split(line, ":")
		if len(fields) < 10 || fields[0] != "fpr" {
			continue
		}
		fingerprint := strings.ToUpper(fields[9])
		known.Add(fingerprint)
		if len(fingerprint) >= 16 {
			known.Add(fingerprint[len(fingerprint)-16:])
		}
		if len(fingerprint) >= 8 {
			known.Add(fingerprint[len(fingerprint)-8:])
		}
	}
	return known
}

func (a GPGKeyAdapter) gpg(ctx context.Context, args ...string) (types.CommandResult, error) {
	full := append([]string{"--no-default-keyring", "--keyring", a.Keyring, "--batch"}, args...)
	return a.Runner.Run(ctx, a.Binary, full...)
}

func normalizeKeyID(key string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(key))
	trimmed = strings.TrimPrefix(trimmed, "0X")
	return strings.ReplaceAll(trimmed, " ", "")
}

var _ ports.KeyImporterPort = GPGKeyAdapter{}
