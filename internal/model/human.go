// human readable and writable stdlib types
// which can be used inside config file
package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

type URL struct {
	*url.URL
}

// ParseURL expands environment variables in s and requires an absolute
// http or https URL.
func ParseURL(s string) (URL, error) {
	var u URL
	if err := u.UnmarshalText([]byte(s)); err != nil {
		return URL{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return URL{}, fmt.Errorf("unsupported url scheme %q: use http or https", u.Scheme)
	}
	if u.Host == "" {
		return URL{}, fmt.Errorf("url %q has no host", s)
	}
	return u, nil
}

func (u URL) AsURL() *url.URL {
	return u.URL
}

// JoinPath returns a copy of u with elem appended to its path.
func (u URL) JoinPath(elem ...string) URL {
	if u.URL == nil {
		return URL{}
	}
	return URL{URL: u.URL.JoinPath(elem...)}
}

func (u *URL) UnmarshalText(text []byte) error {
	if u == nil {
		return errors.New("can't unmarshal to nil")
	}
	parsed, err := url.Parse(os.ExpandEnv(string(text)))
	if err != nil {
		return err
	}
	u.URL = parsed
	return nil
}

func (u URL) MarshalText() ([]byte, error) {
	if u.URL == nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}
