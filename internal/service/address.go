package service

import (
	"fmt"
	"strings"
)

// AddressValidator decides whether a pickup address is served.
type AddressValidator interface {
	ValidateAddress(address string) error
}

// CityAddressValidator accepts addresses that mention the service city.
type CityAddressValidator struct {
	city string
}

// NewCityAddressValidator creates a validator for city. An empty city accepts everything.
func NewCityAddressValidator(city string) *CityAddressValidator {
	return &CityAddressValidator{city: strings.TrimSpace(city)}
}

// ValidateAddress reports ErrOutsideServiceArea unless address contains the city name, ignoring case.
func (v *CityAddressValidator) ValidateAddress(address string) error {
	if v.city == "" {
		return nil
	}
	if !strings.Contains(strings.ToLower(address), strings.ToLower(v.city)) {
		return fmt.Errorf("%w: we only serve %s", ErrOutsideServiceArea, v.city)
	}
	return nil
}
