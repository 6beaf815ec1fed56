package services

import (
	"context"
	"errors"
	"safegate/models"
	"safegate/utils"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/sirupsen/logrus"
)

// TokenVerifier turns a bearer token into the signed-in reporter.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Reporter, error)
}

// JWTVerifier accepts tokens minted by this service.
type JWTVerifier struct {
	jwt *utils.JWTService
}

func NewJWTVerifier(jwt *utils.JWTService) *JWTVerifier {
	return &JWTVerifier{jwt: jwt}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*models.Reporter, error) {
	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &models.Reporter{
		UID:      claims.UserID,
		Name:     claims.Name,
		Email:    claims.Email,
		CampusID: utils.GenerateCampusID(claims.Email),
	}, nil
}

// FirebaseVerifier accepts Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*models.Reporter, error) {
	idToken, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	email, _ := idToken.Claims["email"].(string)
	name, _ := idToken.Claims["name"].(string)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	return &models.Reporter{
		UID:      idToken.UID,
		Name:     name,
		Email:    email,
		CampusID: utils.GenerateCampusID(email),
	}, nil
}

// ChainVerifier tries each verifier in order.
type ChainVerifier []TokenVerifier

func (c ChainVerifier) Verify(ctx context.Context, token string) (*models.Reporter, error) {
	var lastErr error
	for _, verifier := range c {
		reporter, err := verifier.Verify(ctx, token)
		if err == nil {
			return reporter, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no token verifier configured")
	}
	return nil, lastErr
}

type AuthService struct {
	jwt       *utils.JWTService
	validator *utils.ValidationService
}

func NewAuthService(jwt *utils.JWTService) *AuthService {
	return &AuthService{
		jwt:       jwt,
		validator: utils.NewValidationService(),
	}
}

// DevTokenRequest is accepted by the development-only token endpoint.
type DevTokenRequest struct {
	UID   string `json:"uid" validate:"required,max=128"`
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

type DevTokenResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	Reporter    models.Reporter `json:"reporter"`
}

// IssueDevToken mints a JWT for a local user. Production deployments sign
// in through Firebase instead.
func (as *AuthService) IssueDevToken(req DevTokenRequest) (*DevTokenResponse, []utils.FieldError, error) {
	if fieldErrors := as.validator.ValidateStruct(req); len(fieldErrors) > 0 {
		return nil, fieldErrors, nil
	}

	token, err := as.jwt.GenerateToken(req.UID, req.Name, req.Email, "user")
	if err != nil {
		logrus.Error("Failed to generate token: ", err)
		return nil, nil, utils.NewInternalError("failed to generate token", err)
	}

	return &DevTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Reporter: models.Reporter{
			UID:      req.UID,
			Name:     req.Name,
			Email:    req.Email,
			CampusID: utils.GenerateCampusID(req.Email),
		},
	}, nil, nil
}
