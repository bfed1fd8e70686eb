package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount is a non-negative number entered on a deal form (money, a percentage
// or a day count). Decoding never fails: empty, malformed, negative or
// non-finite input is read as zero so a half-filled form still prices.
type Amount float64

// Float returns the amount as a float64, with invalid values mapped to zero.
func (a Amount) Float() float64 {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// ParseAmount reads user-entered text such as "$425,000", "3.5%" or " 182 ".
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return Amount(f).sanitized()
}

func (a Amount) sanitized() Amount {
	return Amount(a.Float())
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = 0
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = ParseAmount(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			*a = 0
			return nil
		}
		*a = Amount(f).sanitized()
	}
	return nil
}

// Count is a whole number of days entered on a deal form. Like Amount it
// decodes leniently; fractions are truncated.
type Count int

// UnmarshalJSON accepts numbers, numeric strings and null.
func (c *Count) UnmarshalJSON(data []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = Count(int(a.Float()))
	return nil
}
