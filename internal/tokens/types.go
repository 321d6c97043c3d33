package tokens

import (
	"errors"
	"fmt"

	"ocpi/internal/models"
)

var ErrUnknownTokenType = errors.New("unknown token type")

var toIDTokenType = map[models.TokenType]models.IDTokenType{
	models.TokenRFID:      models.IDTokenISO14443,
	models.TokenAppUser:   models.IDTokenCentral,
	models.TokenAdHocUser: models.IDTokenNoAuthorization,
	models.TokenOther:     models.IDTokenLocal,
}

var toTokenType = map[models.IDTokenType]models.TokenType{
	models.IDTokenISO14443:        models.TokenRFID,
	models.IDTokenCentral:         models.TokenAppUser,
	models.IDTokenNoAuthorization: models.TokenAdHocUser,
	models.IDTokenLocal:           models.TokenOther,
}

func ToIDTokenType(t models.TokenType) (models.IDTokenType, error) {
	it, ok := toIDTokenType[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTokenType, t)
	}
	return it, nil
}

// ToTokenType falls back to OTHER for station types with no partner equivalent.
func ToTokenType(t models.IDTokenType) models.TokenType {
	if tt, ok := toTokenType[t]; ok {
		return tt
	}
	return models.TokenOther
}
