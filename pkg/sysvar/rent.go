package sysvar

import (
	"soltick/pkg/account"
	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/serializer"
	"soltick/pkg/types"
)

var (
	// OwnerID owns every sysvar account.
	OwnerID = types.PubkeyFromSeed("Sysvar1111111111111111111111111111111111111")
	// RentID is the address of the rent sysvar account.
	RentID = types.PubkeyFromSeed("SysvarRent111111111111111111111111111111111")
)

// Rent holds the parameters of the rent-exemption calculation.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: constants.DefaultLamportsPerByteYear,
		ExemptionThreshold:  constants.DefaultExemptionThreshold,
		BurnPercent:         constants.DefaultBurnPercent,
	}
}

// MinimumBalance is the balance an account holding dataLen bytes needs to be
// retained indefinitely.
func (r Rent) MinimumBalance(dataLen int) types.Lamports {
	bytes := constants.AccountStorageOverhead + uint64(dataLen)
	return types.Lamports(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers MinimumBalance(dataLen).
func (r Rent) IsExempt(balance types.Lamports, dataLen int) bool {
	return balance >= r.MinimumBalance(dataLen)
}

func (r Rent) Encode() []byte {
	return serializer.Serialize(r)
}

// FromAccount reads the rent sysvar out of its account. The account must be the
// well-known rent sysvar.
func FromAccount(info *account.Info) (Rent, error) {
	if info.Key != RentID {
		return Rent{}, errors.Errorf(errors.ErrInvalidArgument, "account %s is not the rent sysvar", info.Key)
	}
	var r Rent
	if err := serializer.Deserialize(info.Data, &r); err != nil {
		return Rent{}, err
	}
	return r, nil
}

// Record builds the sysvar account for genesis.
func (r Rent) Record() account.Record {
	data := r.Encode()
	return account.Record{
		Lamports: r.MinimumBalance(len(data)),
		Owner:    OwnerID,
		Data:     data,
	}
}
