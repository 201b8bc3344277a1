package netutil

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ValidateHttpUrl validates a URL for an HTTP scheme, returning the URL with
// a scheme added if it had none.
func ValidateHttpUrl(value string, requireSecureConnection bool) (string, error) {
	parsed, err := url.Parse(value)
	if err != nil || !strings.Contains(value, "://") {
		// Add a HTTP scheme by default
		value = "http://" + value
		parsed, err = url.Parse(value)
		if err != nil {
			return "", err
		}
	}

	if requireSecureConnection && parsed.Scheme != "https" {
		return "", errors.New("url scheme must be https")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("url scheme must be http or https")
	}

	if len(parsed.Hostname()) == 0 {
		return "", errors.New("host component missing")
	} else if err := ValidateHost(parsed.Hostname()); err != nil {
		return "", errors.Wrap(err, "host is not valid")
	}

	return parsed.String(), nil
}
