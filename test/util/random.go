package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"txschools-scraper/internal/record"
)

// RandomSwitch returns a function that will output various integers at different weights.
//
// Ex. RandomSwitch(2, 3, 5) will return a function that will output:
//   - `0` 20% of the time
//   - `1` 30% of the time
//   - `2` 50% of the time
func RandomSwitch(weights ...int) func(rndm *rand.Rand) int {
	if len(weights) == 0 {
		panic("a random switch must have at least 1 probability")
	}

	var sum int
	for _, p := range weights {
		if p == 0 {
			panic("cannot have weight that is 0")
		}
		sum += p
	}

	return func(rndm *rand.Rand) int {
		value := rndm.Intn(sum)

		threshold := 0
		for i := 0; i < len(weights); i++ {
			threshold += weights[i]
			if value < threshold {
				return i
			}
		}

		panic(fmt.Sprintf("random value generated was out of bounds: %d", value))
	}
}

// RandomString generates a random lowercase string given the pseudo random source.
func RandomString(rndm *rand.Rand, length int) string {
	str := make([]rune, length)
	for i := range length {
		str[i] = 'a' + rune(rndm.Intn(26))
	}
	return string(str)
}

func randomDigits(rndm *rand.Rand, length int) string {
	var sb strings.Builder
	for range length {
		sb.WriteByte(byte('0' + rndm.Intn(10)))
	}
	return sb.String()
}

func capitalize(s string) string {
	return strings.ToUpper(s[:1]) + s[1:]
}

var states = []string{"TX", "tx", "CA", "NY", "DC", "wy", "Fl"}

var phoneFormats = []string{"%s-%s-%s", "(%s) %s-%s", "%s.%s.%s", "%s %s %s", "%s%s%s"}

// RandomValidRecord generates a record whose required fields all pass validation.
func RandomValidRecord(rndm *rand.Rand) record.Record {
	rec := record.New(1 + rndm.Intn(30))
	rec[record.Name] = capitalize(RandomString(rndm, 3+rndm.Intn(10))) + " Elementary"
	rec[record.Address1] = fmt.Sprintf("%d %s St", 1+rndm.Intn(9999), capitalize(RandomString(rndm, 6)))
	rec[record.City] = capitalize(RandomString(rndm, 4+rndm.Intn(6)))
	if rndm.Intn(2) == 0 {
		rec[record.City] += " " + capitalize(RandomString(rndm, 5))
	}
	rec[record.State] = states[rndm.Intn(len(states))]
	rec[record.Zip] = randomDigits(rndm, 5)
	rec[record.Phone] = fmt.Sprintf(
		phoneFormats[rndm.Intn(len(phoneFormats))],
		randomDigits(rndm, 3), randomDigits(rndm, 3), randomDigits(rndm, 4),
	)
	scheme := "https://"
	if rndm.Intn(3) == 0 {
		scheme = "http://"
	}
	rec[record.Website] = scheme + RandomString(rndm, 8) + ".org"
	rec[record.ParentOrg] = capitalize(RandomString(rndm, 6)) + " ISD"
	rec[record.Category] = "PK-5"
	rec[record.ContactName] = capitalize(RandomString(rndm, 5)) + " " + capitalize(RandomString(rndm, 7))
	return rec
}

// BreakRandomField replaces one required field of rec with a value that fails validation and
// returns the field it broke. The returned field is either set to the sentinel or to a
// malformed value, choose decides which (0 = sentinel, 1 = malformed).
func BreakRandomField(rndm *rand.Rand, rec record.Record) record.Field {
	field := record.Required[rndm.Intn(len(record.Required))]
	choose := RandomSwitch(1, 3)
	if choose(rndm) == 0 {
		rec[field] = record.Sentinel
		return field
	}
	switch field {
	case record.Zip:
		rec[field] = randomDigits(rndm, 4)
	case record.State:
		rec[field] = "XX"
	case record.Phone:
		rec[field] = randomDigits(rndm, 9)
	case record.Website:
		rec[field] = "ftp://" + RandomString(rndm, 5) + ".com"
	case record.Name:
		rec[field] = "12"
	case record.City:
		rec[field] = capitalize(RandomString(rndm, 4)) + "123"
	case record.ContactName:
		rec[field] = capitalize(RandomString(rndm, 6))
	default:
		rec[field] = record.Sentinel
	}
	return field
}
