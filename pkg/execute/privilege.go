package execute

import (
	"context"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// SuperuserUID is the effective uid required to inspect every domain.
const SuperuserUID = 0

var ErrPrivilegeProbe = errors.New("probing effective uid")

// EffectiveUID runs `id -u` through r.
func EffectiveUID(ctx context.Context, r Runner) (int, error) {
	res, err := r.Run(ctx, Cmd("id", "-u"))
	if err != nil {
		return 0, errors.Errorf("%w: %s", ErrPrivilegeProbe, err)
	}
	if !res.Success() {
		return 0, errors.Errorf("%w: exit code %d: %s", ErrPrivilegeProbe, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	uid, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil || uid < 0 {
		return 0, errors.Errorf("%w: unexpected output %q", ErrPrivilegeProbe, strings.TrimSpace(res.Stdout))
	}

	return uid, nil
}

// PrivilegeSufficient reports whether the caller runs as the superuser.
// A failed or unparsable probe counts as insufficient.
func PrivilegeSufficient(ctx context.Context, r Runner) bool {
	uid, err := EffectiveUID(ctx, r)
	if err != nil {
		return false
	}
	return uid == SuperuserUID
}
