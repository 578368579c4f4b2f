package matrixfile

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Standard output file names.
const (
	DefaultTrafficTemplate = "traffic_matrix_epoch_%d.log"
	DefaultBandwidthName   = "bandwidth_matrix.log"
)

// TrafficFileName returns the file name for a 1-based epoch index.
func TrafficFileName(template string, epoch int) string {
	if template == "" {
		template = DefaultTrafficTemplate
	}
	return fmt.Sprintf(template, epoch)
}

// ValidateTemplate checks that template has exactly one %d verb, no other
// verbs and no path separators.
func ValidateTemplate(template string) error {
	if strings.ContainsAny(template, `/\`) {
		return fmt.Errorf("template %q must be a file name, not a path", template)
	}
	bare := strings.ReplaceAll(template, "%%", "")
	if strings.Count(bare, "%") != 1 || !intVerbRE.MatchString(bare) {
		return errors.New("template must contain exactly one %d verb")
	}
	return nil
}

var intVerbRE = regexp.MustCompile(`%[-+ 0]*[0-9]*d`)

var trafficNameRE = regexp.MustCompile(`^traffic_matrix_epoch_(\d+)\.log$`)

// TrafficEpoch parses the epoch index out of a default-template file name.
func TrafficEpoch(name string) (int, bool) {
	m := trafficNameRE.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	epoch, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return epoch, true
}
