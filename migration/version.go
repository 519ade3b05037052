package migration

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidVersion = errors.New("invalid migration version")

var versionRegexp = regexp.MustCompile(`^[0-9A-Za-z]+$`)

type (
	VersionFormat string

	// Version is the ordering token of a migration. Tokens made only of
	// digits compare numerically, anything else compares byte-wise.
	Version struct {
		Value      string
		MigratedAt time.Time
	}
)

const (
	TimestampFormat VersionFormat = "timestamp"
	DatetimeFormat  VersionFormat = "datetime"
)

// Zero is the sentinel version meaning "nothing applied"
var Zero = Version{}

// ParseVersion validates a version token. Both "" and "0" are accepted
// and yield the zero sentinel.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, nil
	}

	if !versionRegexp.MatchString(s) {
		return Zero, errors.Wrapf(ErrInvalidVersion, "[%s]", s)
	}

	v := Version{Value: s}
	if v.IsZero() {
		return Zero, nil
	}

	return v, nil
}

func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

func (v Version) IsZero() bool {
	return v.Value == "" || (isNumeric(v.Value) && strings.TrimLeft(v.Value, "0") == "")
}

func (v Version) IsNumeric() bool {
	return isNumeric(v.Value)
}

// Compare returns -1, 0 or 1. The zero sentinel is lower than any other
// version.
func (v Version) Compare(other Version) int {
	vz, oz := v.IsZero(), other.IsZero()
	switch {
	case vz && oz:
		return 0
	case vz:
		return -1
	case oz:
		return 1
	}

	if isNumeric(v.Value) && isNumeric(other.Value) {
		a := strings.TrimLeft(v.Value, "0")
		b := strings.TrimLeft(other.Value, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}

		return strings.Compare(a, b)
	}

	return strings.Compare(v.Value, other.Value)
}

func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func (v Version) canonical() string {
	if v.IsNumeric() {
		return strings.TrimLeft(v.Value, "0")
	}

	return v.Value
}

func (v Version) String() string {
	if v.IsZero() {
		return "0"
	}

	return v.Value
}

type ClockFunc func() time.Time

// GenerateVersion creates a numeric version for a new migration
func GenerateVersion(cf ClockFunc, vf VersionFormat) Version {
	if vf == TimestampFormat {
		return Version{Value: strconv.FormatInt(cf().Unix(), 10)}
	}

	return Version{Value: cf().UTC().Format("20060102150405")}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
