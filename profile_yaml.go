package mimic

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// ProfileFromYAML parses a fingerprint profile from YAML, for captured
// fingerprints maintained outside the built-in registry. The parsed profile
// is validated the same way registry profiles are; pass it to a session via
// SessionConfig.Profile.
func ProfileFromYAML(data []byte) (*FingerprintProfile, error) {
	var p FingerprintProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: yaml profile: %v", ErrInvalidProfileField, err)
	}
	if p.Identifier == "" {
		return nil, fmt.Errorf("%w: yaml profile has no identifier", ErrInvalidProfileField)
	}
	if len(p.CipherSuites) == 0 || len(p.Extensions) == 0 {
		return nil, fmt.Errorf("%w: yaml profile %q has an empty cipher or extension list", ErrInvalidProfileField, p.Identifier)
	}
	if err := validateProfile(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// YAML serializes the profile, the inverse of ProfileFromYAML.
func (p *FingerprintProfile) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
