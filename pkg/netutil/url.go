package netutil

import (
	"net"
	"net/url"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

const maxHostNameSize = 253

// ValidateHttpUrl validates a URL for an HTTP scheme
func ValidateHttpUrl(value string, requireSecureConnection bool) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}

	if requireSecureConnection && parsed.Scheme != "https" {
		return errors.New("url scheme must be https")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}

	if len(parsed.Host) == 0 {
		return errors.New("host component missing")
	} else if err := ValidateHostName(parsed.Hostname()); err != nil {
		return errors.Wrap(err, "host is invalid")
	}

	return nil
}

// ValidateHostName validates the string value as an IP literal or a
// registrable domain name
func ValidateHostName(value string) error {
	if len(value) == 0 {
		return errors.New("host name is empty")
	}
	if net.ParseIP(value) != nil {
		return nil
	}
	if len(value) > maxHostNameSize {
		return errors.New("host name length exceeds limit")
	}
	if _, err := idna.Registration.ToASCII(value); err != nil {
		return errors.Wrap(err, "host name is not a valid domain name")
	}
	return nil
}
