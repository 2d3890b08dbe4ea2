package lambert

import (
	"fmt"
	"strings"
)

// AU is one astronomical unit in kilometers.
const AU = 1.49597870700e8

// CelestialObject defines a central body of a transfer.
type CelestialObject struct {
	Name   string
	Radius float64 // km
	μ      float64 // km^3/s^2
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// CelestialObjectFromString returns the object from its name
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "sun":
		return Sun, nil
	case "earth":
		return Earth, nil
	case "venus":
		return Venus, nil
	case "mars":
		return Mars, nil
	case "jupiter":
		return Jupiter, nil
	case "saturn":
		return Saturn, nil
	case "uranus":
		return Uranus, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined body '%s'", name)
	}
}

/* Definitions */

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700, 1.32712440017987e11}

// Venus is poisonous.
var Venus = CelestialObject{"Venus", 6051.8, 3.24858599e5}

// Earth is home.
var Earth = CelestialObject{"Earth", 6378.1363, 3.98600433e5}

// Mars is the vacation place.
var Mars = CelestialObject{"Mars", 3396.19, 4.28283100e4}

// Jupiter is big.
var Jupiter = CelestialObject{"Jupiter", 71492.0, 1.266865361e8}

// Saturn floats and that's really cool.
var Saturn = CelestialObject{"Saturn", 60268.0, 3.7931208e7}

// Uranus is no joke.
var Uranus = CelestialObject{"Uranus", 25559.0, 5.7939513e6}
