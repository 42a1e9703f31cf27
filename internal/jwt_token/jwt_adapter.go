package jwttoken

import (
	authmw "kycgate/pkg/platform/middleware/auth"
)

// Adapter exposes JWTService as the auth middleware's validator.
type Adapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		UserID: claims.Subject,
		Role:   claims.Role,
		JTI:    claims.ID,
	}, nil
}
