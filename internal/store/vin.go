package store

import (
	"fmt"
	"math/rand"
)

// wmiPrefixes are real-world manufacturer identifiers used as VIN openers.
var wmiPrefixes = []string{"WP0", "1HG", "WBA", "JTD", "WVW", "1G1", "KNA", "YV1", "TMB", "VF3"}

var brands = []string{
	"Porsche", "BMW", "Mercedes-Benz", "Audi", "Toyota",
	"Honda", "Ford", "Chevrolet", "Volkswagen", "Nissan",
}

var countries = []string{"DE", "US", "JP", "UK", "FR", "IT", "KR", "SE", "CZ", "ES"}

// vinCharset is the VIN alphabet: uppercase letters minus I, O and Q, plus
// digits.
const vinCharset = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

// GenerateVIN builds a 17-character VIN from a manufacturer prefix, eight
// random serial characters and the zero-padded row index. Indexes past
// 999999 overflow the padded field and are truncated from the right.
func GenerateVIN(rnd *rand.Rand, index int) string {
	serial := make([]byte, 8)
	for i := range serial {
		serial[i] = vinCharset[rnd.Intn(len(vinCharset))]
	}
	vin := fmt.Sprintf("%s%s%06d", wmiPrefixes[rnd.Intn(len(wmiPrefixes))], serial, index)
	if len(vin) > 17 {
		vin = vin[:17]
	}
	return vin
}

// vehicleRow is one generated row for population.
type vehicleRow struct {
	VIN     string
	Brand   string
	Country string
	Fleet   bool
}

func randomVehicle(rnd *rand.Rand, index int) vehicleRow {
	return vehicleRow{
		VIN:     GenerateVIN(rnd, index),
		Brand:   brands[rnd.Intn(len(brands))],
		Country: countries[rnd.Intn(len(countries))],
		Fleet:   rnd.Intn(2) == 0,
	}
}
