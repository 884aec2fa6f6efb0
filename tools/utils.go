package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/shopspring/decimal"
)

// decimal places of the numbers printed in progress messages
const LogFloatPlaces = 6

func FmtJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "marshal data fail"
	}
	return string(data)
}

// Formats a float with a fixed number of decimal places, without exponent
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).StringFixed(LogFloatPlaces)
}

func FormatVector(v r3.Vector) string {
	return FormatFloat(v.X) + ", " + FormatFloat(v.Y) + ", " + FormatFloat(v.Z)
}

const (
	FloatMin = 0.000001
)

func IsFloatEqual(f1, f2 float64) bool {
	return math.Abs(f1-f2) < FloatMin
}
