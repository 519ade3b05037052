package database

import (
	"strings"

	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

type TargetKind int

const (
	TargetUp TargetKind = iota
	TargetDown
	TargetVersion
)

// Target is the desired end state of a run
type Target struct {
	Kind    TargetKind
	Version migration.Version
}

func Up() Target {
	return Target{Kind: TargetUp}
}

func Down() Target {
	return Target{Kind: TargetDown}
}

func To(v migration.Version) Target {
	return Target{Kind: TargetVersion, Version: v}
}

// ParseTarget accepts "up", "down" or a version token, "0" reverts everything
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case "":
		return Target{}, errors.Wrap(ErrInvalidTarget, "target is empty")
	case string(DirectionUp):
		return Up(), nil
	case string(DirectionDown):
		return Down(), nil
	}

	v, err := migration.ParseVersion(s)
	if err != nil {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "%s", err.Error())
	}

	return To(v), nil
}

func (t Target) String() string {
	switch t.Kind {
	case TargetUp:
		return string(DirectionUp)
	case TargetDown:
		return string(DirectionDown)
	default:
		return t.Version.String()
	}
}
