package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	debversion "github.com/knqyf263/go-deb-version"
	"github.com/rs/zerolog/log"

	"aptlyctl/internal/ports"
)

// CheckAptlyVersion fails when the installed aptly is older than minimum.
// An empty minimum disables the check.
func CheckAptlyVersion(ctx context.Context, state ports.StateReaderPort, minimum string) error {
	if strings.TrimSpace(minimum) == "" {
		return nil
	}
	required, err := debversion.NewVersion(minimum)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid minimum aptly version %q", minimum)).
			WithCause(err)
	}
	reported, err := state.Version(ctx)
	if err != nil {
		return err
	}
	installed, err := debversion.NewVersion(firstField(reported.Raw))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot parse aptly version %q", reported.Raw)).
			WithCause(err)
	}
	if installed.LessThan(required) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("aptly %s is older than required %s", installed.String(), required.String()))
	}
	log.Ctx(ctx).Debug().Str("aptly", installed.String()).Msg("aptly version accepted")
	return nil
}

// firstField drops anything after the version, e.g. "1.5.0+ds1 (devel)".
func firstField(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
