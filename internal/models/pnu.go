package models

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed field widths of a parcel number (PNU).
const (
	LegalDistrictCodeLength = 10
	LotNumberLength         = 4
	ParcelNumberLength      = LegalDistrictCodeLength + 1 + 2*LotNumberLength
)

// Mountain flag values used in the 11th PNU character.
const (
	MountainFlagNormal   = "1"
	MountainFlagMountain = "2"
)

var (
	ErrInvalidLotNumber    = errors.New("invalid lot number")
	ErrInvalidDistrictCode = errors.New("invalid legal district code")
	ErrInvalidParcelNumber = errors.New("invalid parcel number")
)

// ParcelNumber is the 19-digit Korean parcel identifier:
// legal district code (10) + mountain flag (1) + main lot (4) + sub lot (4).
type ParcelNumber string

// ParcelNumberParts holds the fixed-width fields of a ParcelNumber.
type ParcelNumberParts struct {
	LegalDistrictCode string
	IsMountainLot     bool
	MainLotNumber     string // zero-padded, 4 digits
	SubLotNumber      string // zero-padded, 4 digits
}

// BuildParcelNumber assembles a PNU from geocoder output.
// Main and sub lot numbers are zero-padded independently; an empty sub lot
// becomes "0000". Non-numeric or over-long lot numbers return ErrInvalidLotNumber.
func BuildParcelNumber(legalDistrictCode string, isMountainLot bool, mainLotNumber, subLotNumber string) (ParcelNumber, error) {
	if len(legalDistrictCode) != LegalDistrictCodeLength || !isDigits(legalDistrictCode) {
		return "", fmt.Errorf("%w: %q must be %d digits", ErrInvalidDistrictCode, legalDistrictCode, LegalDistrictCodeLength)
	}

	mainLot, err := padLotNumber(mainLotNumber, false)
	if err != nil {
		return "", fmt.Errorf("main lot: %w", err)
	}
	subLot, err := padLotNumber(subLotNumber, true)
	if err != nil {
		return "", fmt.Errorf("sub lot: %w", err)
	}

	flag := MountainFlagNormal
	if isMountainLot {
		flag = MountainFlagMountain
	}

	return ParcelNumber(legalDistrictCode + flag + mainLot + subLot), nil
}

// ParseParcelNumber splits a PNU back into its fixed-width fields.
func ParseParcelNumber(pnu string) (ParcelNumberParts, error) {
	if len(pnu) != ParcelNumberLength || !isDigits(pnu) {
		return ParcelNumberParts{}, fmt.Errorf("%w: %q", ErrInvalidParcelNumber, pnu)
	}

	flag := pnu[10:11]
	if flag != MountainFlagNormal && flag != MountainFlagMountain {
		return ParcelNumberParts{}, fmt.Errorf("%w: mountain flag %q", ErrInvalidParcelNumber, flag)
	}

	return ParcelNumberParts{
		LegalDistrictCode: pnu[:10],
		IsMountainLot:     flag == MountainFlagMountain,
		MainLotNumber:     pnu[11:15],
		SubLotNumber:      pnu[15:19],
	}, nil
}

// String implements fmt.Stringer.
func (p ParcelNumber) String() string {
	return string(p)
}

// Parts is a convenience wrapper around ParseParcelNumber.
func (p ParcelNumber) Parts() (ParcelNumberParts, error) {
	return ParseParcelNumber(string(p))
}

// SigunguCode returns the first five digits of the district code, as used by
// the building register.
func (p ParcelNumber) SigunguCode() string {
	if len(p) < 5 {
		return ""
	}
	return string(p[:5])
}

// BjdongCode returns digits 6-10 of the district code.
func (p ParcelNumber) BjdongCode() string {
	if len(p) < LegalDistrictCodeLength {
		return ""
	}
	return string(p[5:LegalDistrictCodeLength])
}

func padLotNumber(lot string, allowEmpty bool) (string, error) {
	lot = strings.TrimSpace(lot)
	if lot == "" {
		if allowEmpty {
			return strings.Repeat("0", LotNumberLength), nil
		}
		return "", fmt.Errorf("%w: empty", ErrInvalidLotNumber)
	}
	if !isDigits(lot) {
		return "", fmt.Errorf("%w: %q is not numeric", ErrInvalidLotNumber, lot)
	}

	// Leading zeros are insignificant ("0163" and "163" are the same lot).
	trimmed := strings.TrimLeft(lot, "0")
	if len(trimmed) > LotNumberLength {
		return "", fmt.Errorf("%w: %q exceeds %d digits", ErrInvalidLotNumber, lot, LotNumberLength)
	}

	return strings.Repeat("0", LotNumberLength-len(trimmed)) + trimmed, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
