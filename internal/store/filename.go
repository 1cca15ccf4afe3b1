package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"talestrom/internal/domain"
)

// Recording ids double as filenames and are meant to be readable at a glance:
// local-time timestamp, duration, short random disambiguator, extension.
// Example: 2026-08-23_154233_12s_a1b2c3.webm
const idTimeLayout = "2006-01-02_150405"

var idPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{6})_(\d+)s_([0-9a-f]{6})(\.[a-z0-9]+)$`)

func newRecordingID(createdAt time.Time, duration time.Duration, ext string) string {
	seconds := int(duration.Round(time.Second).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	disambiguator := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%ds_%s%s", createdAt.Format(idTimeLayout), seconds, disambiguator, ext)
}

// parseRecordingID recovers the creation time and duration embedded in an id.
func parseRecordingID(id string) (createdAt time.Time, durationSeconds int, err error) {
	match := idPattern.FindStringSubmatch(id)
	if match == nil {
		return time.Time{}, 0, fmt.Errorf("%w: malformed id %q", domain.ErrNotFound, id)
	}
	createdAt, err = time.ParseInLocation(idTimeLayout, match[1], time.Local)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad timestamp in id %q", domain.ErrNotFound, id)
	}
	durationSeconds, err = strconv.Atoi(match[2])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad duration in id %q", domain.ErrNotFound, id)
	}
	return createdAt, durationSeconds, nil
}

// validateID rejects anything that could escape the recordings directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: invalid id %q", domain.ErrNotFound, id)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: malformed id %q", domain.ErrNotFound, id)
	}
	return nil
}
